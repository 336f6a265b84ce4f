package model

import "time"

// Entity type tags stored on graph nodes. Ingestion may introduce further
// types; the brain layer only dispatches on the ones below.
const (
	EntityWorkItem = "kg.workitem"
	EntityDocument = "kg.document"
	EntityCluster  = "kg.cluster"
)

// Scope is the (tenant, project) pair every graph read and write is
// filtered by. An empty ProjectKey on a requested scope means
// "any project within the tenant".
type Scope struct {
	TenantID   string `json:"tenantId"`
	ProjectKey string `json:"projectKey"`
}

// Admits reports whether an entity carrying scope `owned` is visible
// under the requested scope s.
func (s Scope) Admits(owned Scope) bool {
	if s.TenantID != owned.TenantID {
		return false
	}
	return s.ProjectKey == "" || s.ProjectKey == owned.ProjectKey
}

// Window is an optional [Start, End] time bound. Nil ends are open.
type Window struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

func (w Window) IsZero() bool {
	return w.Start == nil && w.End == nil
}

func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// Key renders the window as a stable string for use in cluster identity.
func (w Window) Key() string {
	if w.IsZero() {
		return ""
	}
	var start, end string
	if w.Start != nil {
		start = w.Start.UTC().Format(time.RFC3339)
	}
	if w.End != nil {
		end = w.End.UTC().Format(time.RFC3339)
	}
	return start + ".." + end
}

// Entity is a node in the knowledge graph. Props is an open string-keyed
// bag because upstream sources vary; typed accessors below cover the
// fields this layer cares about.
type Entity struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Props     map[string]any `json:"props,omitempty"`
	Scope     Scope          `json:"scope"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Prioritized property fields used when deriving display text.
var (
	// TitleFields feeds episode member titles and search-hit titles.
	TitleFields = []string{"title", "summary", "name"}
	// SummaryFields feeds episode member summaries.
	SummaryFields = []string{"summary", "description", "excerpt"}
	// PassageFields feeds prompt-pack passage extraction.
	PassageFields = []string{"content", "body", "text", "description", "summary"}
)

// Str returns the string property at key, or "" when absent or not a string.
func (e *Entity) Str(key string) string {
	if e.Props == nil {
		return ""
	}
	if v, ok := e.Props[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the boolean property at key, defaulting to false.
func (e *Entity) Bool(key string) bool {
	if e.Props == nil {
		return false
	}
	v, _ := e.Props[key].(bool)
	return v
}

// FirstStr returns the first non-empty string property among keys.
func (e *Entity) FirstStr(keys ...string) string {
	for _, k := range keys {
		if v := e.Str(k); v != "" {
			return v
		}
	}
	return ""
}

func (e *Entity) DisplayName() string {
	return e.FirstStr("name", "displayName")
}

// TitleText picks the member/hit title, falling back to the display name.
func (e *Entity) TitleText() string {
	if v := e.FirstStr(TitleFields...); v != "" {
		return v
	}
	return e.DisplayName()
}

func (e *Entity) SummaryText() string {
	if v := e.FirstStr(SummaryFields...); v != "" {
		return v
	}
	return e.DisplayName()
}

// WorkKey is the source issue key a work item surfaces (e.g. "OPS-412").
func (e *Entity) WorkKey() string {
	return e.FirstStr("issueKey", "key")
}

// DocURL is the source URL a document surfaces.
func (e *Entity) DocURL() string {
	return e.FirstStr("sourceUrl", "url")
}

func (e *Entity) Secured() bool {
	return e.Bool("secured")
}

// Recency is the timestamp used for recency sorting; entities that never
// set either timestamp sort last.
func (e *Entity) Recency() time.Time {
	if !e.UpdatedAt.IsZero() {
		return e.UpdatedAt
	}
	return e.CreatedAt
}
