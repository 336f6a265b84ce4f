package model

import "time"

// Member kinds surfaced on hydrated episodes.
const (
	MemberKindWork  = "work"
	MemberKindDoc   = "doc"
	MemberKindOther = "other"
)

// Defaults applied when a signal instance omits severity or status.
const (
	SignalSeverityInfo = "INFO"
	SignalStatusOpen   = "OPEN"
)

// Episode is the read-only projection of a persisted cluster: hydrated
// member summaries plus linked signals. It is rebuilt on every read and
// never persisted.
type Episode struct {
	ClusterID   string          `json:"clusterId"`
	Kind        string          `json:"kind"`
	Title       string          `json:"title,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Similarity  float64         `json:"similarity"`
	MemberCount int             `json:"memberCount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Members     []EpisodeMember `json:"members"`
	Signals     []EpisodeSignal `json:"signals"`
}

// EpisodeMember is a typed member summary. Work entities surface their
// source issue key, doc entities their source URL.
type EpisodeMember struct {
	NodeID  string `json:"nodeId"`
	Kind    string `json:"kind"`
	Title   string `json:"title,omitempty"`
	Summary string `json:"summary,omitempty"`
	WorkKey string `json:"workKey,omitempty"`
	DocURL  string `json:"docUrl,omitempty"`
}

// EpisodeSignal is an alert-like finding linked to an episode member or
// to the cluster itself.
type EpisodeSignal struct {
	InstanceID   string `json:"instanceId"`
	DefinitionID string `json:"definitionId"`
	Slug         string `json:"slug,omitempty"`
	Severity     string `json:"severity"`
	Status       string `json:"status"`
	SourceNodeID string `json:"sourceNodeId"`
}
