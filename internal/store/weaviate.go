package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/agenthands/brain/internal/model"
)

// entryNamespace seeds the deterministic Weaviate object ids so that
// re-indexing the same (profile, node) pair overwrites in place.
var entryNamespace = uuid.MustParse("9c5b9d5e-3f57-4e4d-9b2a-7a1c5d7e0f42")

// WeaviateVectorIndex is a VectorIndexStore backed by a Weaviate class.
// One class holds every profile's entries; profile, tenant, project and
// kind live as filterable properties.
type WeaviateVectorIndex struct {
	client *weaviate.Client
	class  string
	log    *slog.Logger
}

func NewWeaviateVectorIndex(rawURL, apiKey, class string, log *slog.Logger) (*WeaviateVectorIndex, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid weaviate url %q: %w", rawURL, err)
	}
	cfg := weaviate.Config{Host: u.Host, Scheme: u.Scheme}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate client: %w", err)
	}
	if class == "" {
		class = "BrainEntry"
	}
	return &WeaviateVectorIndex{
		client: client,
		class:  class,
		log:    log.With("component", "store.weaviate"),
	}, nil
}

func (w *WeaviateVectorIndex) UpsertEntries(ctx context.Context, entries []VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	objects := make([]*models.Object, 0, len(entries))
	for _, e := range entries {
		id := uuid.NewSHA1(entryNamespace, []byte(e.ProfileID+"/"+e.NodeID))
		props := map[string]any{
			"node_id":     e.NodeID,
			"profile_id":  e.ProfileID,
			"tenant_id":   e.TenantID,
			"project_key": e.ProjectKey,
			"kind":        e.Kind,
			"title":       e.Meta["title"],
			"url":         e.Meta["url"],
		}
		objects = append(objects, &models.Object{
			Class:      w.class,
			ID:         strfmt.UUID(id.String()),
			Properties: props,
			Vector:     models.C11yVector(e.Embedding),
		})
	}
	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate batch upsert: %w", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("weaviate batch upsert: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (w *WeaviateVectorIndex) Query(ctx context.Context, profileID string, embedding []float32, topK int, f VectorFilter) ([]VectorMatch, error) {
	where := w.buildWhere(profileID, f)
	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(embedding)

	// certainty is always in [0,1] regardless of the distance metric.
	fields := []graphql.Field{
		{Name: "node_id"},
		{Name: "title"},
		{Name: "url"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	resp, err := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithFields(fields...).
		WithWhere(where).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate query: %s", resp.Errors[0].Message)
	}
	return parseMatches(resp, w.class)
}

func (w *WeaviateVectorIndex) buildWhere(profileID string, f VectorFilter) *filters.WhereBuilder {
	operands := []*filters.WhereBuilder{
		filters.Where().WithPath([]string{"profile_id"}).WithOperator(filters.Equal).WithValueString(profileID),
		filters.Where().WithPath([]string{"tenant_id"}).WithOperator(filters.Equal).WithValueString(f.TenantID),
	}
	if len(f.ProjectKeyIn) > 0 {
		operands = append(operands, anyOf("project_key", f.ProjectKeyIn))
	}
	if len(f.KindIn) > 0 {
		operands = append(operands, anyOf("kind", f.KindIn))
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

func anyOf(path string, values []string) *filters.WhereBuilder {
	ors := make([]*filters.WhereBuilder, 0, len(values))
	for _, v := range values {
		ors = append(ors, filters.Where().WithPath([]string{path}).WithOperator(filters.Equal).WithValueString(v))
	}
	if len(ors) == 1 {
		return ors[0]
	}
	return filters.Where().WithOperator(filters.Or).WithOperands(ors)
}

func parseMatches(resp *models.GraphQLResponse, class string) ([]VectorMatch, error) {
	get, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	rows, ok := get[class].([]any)
	if !ok {
		return nil, nil
	}
	matches := make([]VectorMatch, 0, len(rows))
	for _, raw := range rows {
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		m := VectorMatch{Meta: map[string]string{}}
		if v, ok := row["node_id"].(string); ok {
			m.NodeID = v
		}
		if v, ok := row["title"].(string); ok && v != "" {
			m.Meta["title"] = v
		}
		if v, ok := row["url"].(string); ok && v != "" {
			m.Meta["url"] = v
		}
		if add, ok := row["_additional"].(map[string]any); ok {
			if c, ok := add["certainty"].(float64); ok {
				m.Score = c
			}
		}
		if m.NodeID == "" {
			continue
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Indexable is a convenience used by ingestion-side callers to map an
// entity into a vector entry for a profile.
func Indexable(p model.IndexProfile, e *model.Entity, embedding []float32) VectorEntry {
	return VectorEntry{
		NodeID:     e.ID,
		ProfileID:  p.ID,
		Embedding:  embedding,
		TenantID:   e.Scope.TenantID,
		ProjectKey: e.Scope.ProjectKey,
		Kind:       p.Kind,
		Meta: map[string]string{
			"title": e.TitleText(),
			"url":   e.DocURL(),
		},
	}
}
