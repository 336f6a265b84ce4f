package model

// SearchHit is one ranked nearest-neighbor result from the vector index.
type SearchHit struct {
	NodeID      string  `json:"nodeId"`
	ProfileID   string  `json:"profileId"`
	ProfileKind string  `json:"profileKind"`
	Score       float64 `json:"score"`
	Title       string  `json:"title,omitempty"`
	URL         string  `json:"url,omitempty"`
}

// EpisodeHit is a cluster scored against a hit set: the score is the sum
// of the similarity scores of its members that are also search hits.
type EpisodeHit struct {
	ClusterID string   `json:"clusterId"`
	Score     float64  `json:"score"`
	MemberIDs []string `json:"memberIds"`
}

// Passage is a per-node text excerpt extracted for prompt assembly.
type Passage struct {
	NodeID string `json:"nodeId"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text"`
}

// Citation points a prompt-pack consumer back at a source node.
type Citation struct {
	NodeID string `json:"nodeId"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
}

// PromptPack is the deterministic context bundle handed to downstream
// consumers. It is a pure function of the hits, episodes and passages it
// was assembled from; identical inputs produce byte-identical markdown.
type PromptPack struct {
	ContextMarkdown string     `json:"contextMarkdown"`
	Citations       []Citation `json:"citations"`
}
