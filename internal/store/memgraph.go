package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/brain/internal/model"
)

// unboundedEdgeLimit is used when an EdgeFilter does not cap results;
// Cypher LIMIT must be a positive integer.
const unboundedEdgeLimit = 1_000_000

// MemgraphStore is a GraphStore backed by Memgraph (or Neo4j) over Bolt.
type MemgraphStore struct {
	driver neo4j.DriverWithContext
	log    *slog.Logger
}

func NewMemgraphStore(ctx context.Context, uri, username, password string, log *slog.Logger) (*MemgraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}
	log.Info("connected to graph store", "uri", uri)
	return &MemgraphStore{driver: driver, log: log.With("component", "store.memgraph")}, nil
}

func (s *MemgraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// BuildIndices creates the node indices this store relies on. Failures
// are logged and skipped since the index may already exist.
func (s *MemgraphStore) BuildIndices(ctx context.Context) error {
	for _, q := range indexQueries {
		if _, err := s.run(ctx, q, nil); err != nil {
			s.log.Warn("index creation skipped", "query", q, "error", err)
		}
	}
	return nil
}

func (s *MemgraphStore) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, fmt.Errorf("graph query failed: %w", err)
	}
	return result, nil
}

func (s *MemgraphStore) GetEntity(ctx context.Context, id string, scope model.Scope) (*model.Entity, error) {
	result, err := s.run(ctx, getEntityQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, nil
	}
	e, err := entityFromRecord(result.Records[0])
	if err != nil {
		return nil, err
	}
	if !scope.Admits(e.Scope) {
		return nil, ErrScopeMismatch
	}
	return e, nil
}

func (s *MemgraphStore) ListEntities(ctx context.Context, f EntityFilter, scope model.Scope) ([]*model.Entity, error) {
	types := f.Types
	if types == nil {
		types = []string{}
	}
	result, err := s.run(ctx, listEntitiesQuery, map[string]any{
		"tenant_id":   scope.TenantID,
		"project_key": scope.ProjectKey,
		"types":       types,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*model.Entity, 0, len(result.Records))
	for _, rec := range result.Records {
		e, err := entityFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemgraphStore) ListEdges(ctx context.Context, f EdgeFilter, scope model.Scope) ([]*model.Edge, error) {
	types := f.Types
	if types == nil {
		types = []string{}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = unboundedEdgeLimit
	}
	result, err := s.run(ctx, listEdgesQuery, map[string]any{
		"tenant_id":   scope.TenantID,
		"project_key": scope.ProjectKey,
		"types":       types,
		"source_id":   f.SourceID,
		"target_id":   f.TargetID,
		"limit":       limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*model.Edge, 0, len(result.Records))
	for _, rec := range result.Records {
		e, err := edgeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemgraphStore) UpsertEntity(ctx context.Context, e *model.Entity) error {
	props, err := json.Marshal(e.Props)
	if err != nil {
		return fmt.Errorf("marshal entity props: %w", err)
	}
	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err = s.run(ctx, upsertEntityQuery, map[string]any{
		"id":          id,
		"entity_type": e.Type,
		"tenant_id":   e.Scope.TenantID,
		"project_key": e.Scope.ProjectKey,
		"props":       string(props),
		"created_at":  formatTime(e.CreatedAt),
		"updated_at":  formatTime(e.UpdatedAt),
	})
	return err
}

func (s *MemgraphStore) UpsertEdge(ctx context.Context, e *model.Edge) error {
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("marshal edge meta: %w", err)
	}
	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err = s.run(ctx, upsertEdgeQuery, map[string]any{
		"id":          id,
		"edge_type":   e.Type,
		"source_id":   e.SourceID,
		"target_id":   e.TargetID,
		"tenant_id":   e.Scope.TenantID,
		"project_key": e.Scope.ProjectKey,
		"meta":        string(meta),
	})
	return err
}

func entityFromRecord(rec *neo4j.Record) (*model.Entity, error) {
	e := &model.Entity{
		ID:   recordStr(rec, "id"),
		Type: recordStr(rec, "entity_type"),
		Scope: model.Scope{
			TenantID:   recordStr(rec, "tenant_id"),
			ProjectKey: recordStr(rec, "project_key"),
		},
		CreatedAt: parseTime(recordStr(rec, "created_at")),
		UpdatedAt: parseTime(recordStr(rec, "updated_at")),
	}
	if raw := recordStr(rec, "props"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &e.Props); err != nil {
			return nil, fmt.Errorf("unmarshal props for entity %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func edgeFromRecord(rec *neo4j.Record) (*model.Edge, error) {
	e := &model.Edge{
		ID:       recordStr(rec, "id"),
		Type:     recordStr(rec, "edge_type"),
		SourceID: recordStr(rec, "source_id"),
		TargetID: recordStr(rec, "target_id"),
		Scope: model.Scope{
			TenantID:   recordStr(rec, "tenant_id"),
			ProjectKey: recordStr(rec, "project_key"),
		},
	}
	if raw := recordStr(rec, "meta"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &e.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal meta for edge %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func recordStr(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
