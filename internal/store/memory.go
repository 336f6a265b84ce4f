package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/brain/internal/model"
)

// MemoryGraph is an in-memory GraphStore. It backs the dev profile and
// the test suites; ordering of list results is deterministic.
type MemoryGraph struct {
	mu       sync.RWMutex
	entities map[string]*model.Entity
	edges    map[string]*model.Edge // keyed by logical key
}

func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		entities: make(map[string]*model.Entity),
		edges:    make(map[string]*model.Edge),
	}
}

func (g *MemoryGraph) GetEntity(ctx context.Context, id string, scope model.Scope) (*model.Entity, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.entities[id]
	if !ok {
		return nil, nil
	}
	if !scope.Admits(e.Scope) {
		return nil, ErrScopeMismatch
	}
	return copyEntity(e), nil
}

func (g *MemoryGraph) ListEntities(ctx context.Context, f EntityFilter, scope model.Scope) ([]*model.Entity, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*model.Entity
	for _, e := range g.entities {
		if !scope.Admits(e.Scope) {
			continue
		}
		if len(f.Types) > 0 && !containsStr(f.Types, e.Type) {
			continue
		}
		out = append(out, copyEntity(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *MemoryGraph) ListEdges(ctx context.Context, f EdgeFilter, scope model.Scope) ([]*model.Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*model.Edge
	for _, e := range g.edges {
		if !scope.Admits(e.Scope) {
			continue
		}
		if len(f.Types) > 0 && !containsStr(f.Types, e.Type) {
			continue
		}
		if f.SourceID != "" && e.SourceID != f.SourceID {
			continue
		}
		if f.TargetID != "" && e.TargetID != f.TargetID {
			continue
		}
		out = append(out, copyEdge(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalKey() < out[j].LogicalKey() })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (g *MemoryGraph) UpsertEntity(ctx context.Context, e *model.Entity) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	stored := copyEntity(e)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	g.entities[stored.ID] = stored
	return nil
}

func (g *MemoryGraph) UpsertEdge(ctx context.Context, e *model.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := e.LogicalKey()
	if existing, ok := g.edges[key]; ok {
		// Idempotent on type+source+target: keep the original id.
		updated := copyEdge(e)
		updated.ID = existing.ID
		g.edges[key] = updated
		return nil
	}
	stored := copyEdge(e)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	g.edges[key] = stored
	return nil
}

// EdgeCount reports the number of stored edges; test helper.
func (g *MemoryGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

func copyEntity(e *model.Entity) *model.Entity {
	c := *e
	if e.Props != nil {
		c.Props = make(map[string]any, len(e.Props))
		for k, v := range e.Props {
			c.Props[k] = v
		}
	}
	return &c
}

func copyEdge(e *model.Edge) *model.Edge {
	c := *e
	if e.Meta != nil {
		c.Meta = make(map[string]any, len(e.Meta))
		for k, v := range e.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// MemoryVectorIndex is an exact cosine-similarity VectorIndexStore for
// the dev profile and tests.
type MemoryVectorIndex struct {
	mu      sync.RWMutex
	entries map[string]map[string]VectorEntry // profileID -> nodeID -> entry
}

func NewMemoryVectorIndex() *MemoryVectorIndex {
	return &MemoryVectorIndex{entries: make(map[string]map[string]VectorEntry)}
}

func (m *MemoryVectorIndex) UpsertEntries(ctx context.Context, entries []VectorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		byNode, ok := m.entries[e.ProfileID]
		if !ok {
			byNode = make(map[string]VectorEntry)
			m.entries[e.ProfileID] = byNode
		}
		byNode[e.NodeID] = e
	}
	return nil
}

func (m *MemoryVectorIndex) Query(ctx context.Context, profileID string, embedding []float32, topK int, f VectorFilter) ([]VectorMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []VectorMatch
	for _, e := range m.entries[profileID] {
		if f.TenantID != "" && e.TenantID != f.TenantID {
			continue
		}
		if len(f.ProjectKeyIn) > 0 && !containsStr(f.ProjectKeyIn, e.ProjectKey) {
			continue
		}
		if len(f.KindIn) > 0 && !containsStr(f.KindIn, e.Kind) {
			continue
		}
		score, err := cosine(embedding, e.Embedding)
		if err != nil {
			return nil, err
		}
		matches = append(matches, VectorMatch{NodeID: e.NodeID, Score: score, Meta: e.Meta})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].NodeID < matches[j].NodeID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// cosine fails on dimension mismatch: that is a configuration bug, not a
// recoverable runtime condition.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// MemorySignalStore holds signal definitions/instances for the dev
// profile and tests.
type MemorySignalStore struct {
	mu          sync.RWMutex
	definitions map[string]SignalDefinition
	instances   map[string]SignalInstance
}

func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{
		definitions: make(map[string]SignalDefinition),
		instances:   make(map[string]SignalInstance),
	}
}

func (s *MemorySignalStore) PutDefinition(d SignalDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[d.ID] = d
}

func (s *MemorySignalStore) PutInstance(i SignalInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[i.ID] = i
}

func (s *MemorySignalStore) GetDefinition(ctx context.Context, id string) (*SignalDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.definitions[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *MemorySignalStore) GetInstance(ctx context.Context, id string) (*SignalInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.instances[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}
