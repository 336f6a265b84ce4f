package model

// Profile kind tags. A "kind" groups profiles that index the same class
// of entity regardless of the embedding model behind them.
const (
	ProfileKindWork = "work"
	ProfileKindDoc  = "doc"
)

// IndexProfile binds an entity type to an embedding model, a
// text-extraction rule and a semantic kind tag. Dispatch on profiles goes
// through an explicit registry resolved at startup; there is no
// prefix-matching on type strings anywhere.
type IndexProfile struct {
	ID             string   `json:"id"`
	EntityType     string   `json:"entityType"`
	EmbeddingModel string   `json:"embeddingModel"`
	Kind           string   `json:"kind"`
	TextFields     []string `json:"textFields"`
}

// QueryText extracts the embedding input for an entity under this
// profile: first non-empty configured field, then display name, then id.
func (p IndexProfile) QueryText(e *Entity) string {
	if v := e.FirstStr(p.TextFields...); v != "" {
		return v
	}
	if v := e.DisplayName(); v != "" {
		return v
	}
	return e.ID
}
