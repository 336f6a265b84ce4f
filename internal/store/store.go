// Package store defines the collaborator contracts the brain core is
// layered on (graph store, vector index, profile registry, signal store)
// plus the Memgraph, Weaviate and in-memory implementations.
package store

import (
	"context"
	"errors"

	"github.com/agenthands/brain/internal/model"
)

// ErrScopeMismatch is returned by direct by-id lookups that resolve to an
// entity outside the requested tenant/project. Listing operations never
// return it; they filter out-of-scope rows silently instead.
var ErrScopeMismatch = errors.New("entity exists outside the requested scope")

// EntityFilter narrows ListEntities. An empty Types slice matches all.
type EntityFilter struct {
	Types []string
}

// EdgeFilter narrows ListEdges. SourceID and TargetID filter either
// endpoint; Limit caps the result (0 means unbounded).
type EdgeFilter struct {
	Types    []string
	SourceID string
	TargetID string
	Limit    int
}

// GraphStore is the persistent entity/edge graph. Every read is filtered
// by scope; upserts are idempotent on the logical key (entity id, edge
// type+source+target).
type GraphStore interface {
	// GetEntity returns nil, nil when the id is unknown and
	// ErrScopeMismatch when it exists under a different scope.
	GetEntity(ctx context.Context, id string, scope model.Scope) (*model.Entity, error)
	ListEntities(ctx context.Context, f EntityFilter, scope model.Scope) ([]*model.Entity, error)
	ListEdges(ctx context.Context, f EdgeFilter, scope model.Scope) ([]*model.Edge, error)
	UpsertEntity(ctx context.Context, e *model.Entity) error
	UpsertEdge(ctx context.Context, e *model.Edge) error
}

// VectorEntry is one indexed node under a profile.
type VectorEntry struct {
	NodeID     string
	ProfileID  string
	Embedding  []float32
	TenantID   string
	ProjectKey string
	Kind       string
	Meta       map[string]string
}

// VectorFilter scopes a vector query. Empty slices mean "no restriction".
type VectorFilter struct {
	TenantID     string
	ProjectKeyIn []string
	KindIn       []string
}

// VectorMatch is one ranked query result; higher score = more similar.
type VectorMatch struct {
	NodeID string
	Score  float64
	Meta   map[string]string
}

// VectorIndexStore is the nearest-neighbor index. The storage engine
// behind it is out of scope here.
type VectorIndexStore interface {
	UpsertEntries(ctx context.Context, entries []VectorEntry) error
	Query(ctx context.Context, profileID string, embedding []float32, topK int, f VectorFilter) ([]VectorMatch, error)
}

// IndexProfileStore resolves index profiles. GetProfile returns nil, nil
// for an unknown id; callers decide whether that is fatal.
type IndexProfileStore interface {
	ListProfiles(ctx context.Context) ([]model.IndexProfile, error)
	GetProfile(ctx context.Context, id string) (*model.IndexProfile, error)
}

// SignalDefinition names a class of alert/finding defined elsewhere.
type SignalDefinition struct {
	ID   string
	Slug string
}

// SignalInstance is a concrete alert attached to a graph entity.
type SignalInstance struct {
	ID           string
	DefinitionID string
	Severity     string
	Status       string
}

// SignalStore enriches episodes and search results with alert metadata.
// Both getters return nil, nil for unknown ids.
type SignalStore interface {
	GetDefinition(ctx context.Context, id string) (*SignalDefinition, error)
	GetInstance(ctx context.Context, id string) (*SignalInstance, error)
}
