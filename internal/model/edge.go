package model

// Edge types the brain layer reads and writes. Other edge types from
// ingestion pass through graph expansion untouched.
const (
	EdgeInCluster = "IN_CLUSTER"
	EdgeHasSignal = "HAS_SIGNAL"
)

// Edge is a typed, directed edge between two graph entities.
type Edge struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	SourceID string         `json:"sourceId"`
	TargetID string         `json:"targetId"`
	Scope    Scope          `json:"scope"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// LogicalKey identifies an edge for idempotent upserts: re-writing the
// same (type, source, target) triple must not create a second edge.
func (e *Edge) LogicalKey() string {
	return e.Type + "|" + e.SourceID + "|" + e.TargetID
}
