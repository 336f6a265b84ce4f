package brain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/agenthands/brain/internal/llm"
	"github.com/agenthands/brain/internal/model"
	"github.com/agenthands/brain/internal/store"
)

// GatewayQuery is one vector search request against a named profile,
// optionally broadened to every profile whose kind matches ProfileKindIn.
type GatewayQuery struct {
	ProfileID     string
	Query         string
	TopK          int
	TenantID      string
	ProjectKeyIn  []string
	ProfileKindIn []string
}

// SearchGateway fans a query out across index profiles, embedding the
// query once per distinct embedding model, and merges results keeping the
// maximum score per node. Pure read; no retries of its own.
type SearchGateway struct {
	profiles store.IndexProfileStore
	vectors  store.VectorIndexStore
	embedder llm.EmbedderClient
	log      *slog.Logger
}

func NewSearchGateway(profiles store.IndexProfileStore, vectors store.VectorIndexStore, embedder llm.EmbedderClient, log *slog.Logger) *SearchGateway {
	return &SearchGateway{
		profiles: profiles,
		vectors:  vectors,
		embedder: embedder,
		log:      log.With("component", "brain.gateway"),
	}
}

func (g *SearchGateway) Search(ctx context.Context, q GatewayQuery) ([]model.SearchHit, error) {
	targets, err := g.resolveProfiles(ctx, q)
	if err != nil {
		return nil, err
	}

	// One embedding call per distinct model across the target set.
	embeddings := make(map[string][]float32)
	for _, p := range targets {
		if _, ok := embeddings[p.EmbeddingModel]; ok {
			continue
		}
		vecs, err := g.embedder.EmbedBatch(ctx, p.EmbeddingModel, []string{q.Query})
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		embeddings[p.EmbeddingModel] = vecs[0]
	}

	filter := store.VectorFilter{
		TenantID:     q.TenantID,
		ProjectKeyIn: q.ProjectKeyIn,
		KindIn:       q.ProfileKindIn,
	}

	var hits []model.SearchHit
	best := make(map[string]int) // node id -> index into hits
	for _, p := range targets {
		matches, err := g.vectors.Query(ctx, p.ID, embeddings[p.EmbeddingModel], q.TopK, filter)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if i, ok := best[m.NodeID]; ok {
				// Keep the maximum score seen per node.
				if m.Score > hits[i].Score {
					hits[i].Score = m.Score
					hits[i].ProfileID = p.ID
					hits[i].ProfileKind = p.Kind
				}
				continue
			}
			best[m.NodeID] = len(hits)
			hits = append(hits, model.SearchHit{
				NodeID:      m.NodeID,
				ProfileID:   p.ID,
				ProfileKind: p.Kind,
				Score:       m.Score,
				Title:       m.Meta["title"],
				URL:         m.Meta["url"],
			})
		}
	}

	// Stable sort keeps merge order on score ties.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if q.TopK > 0 && len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	return hits, nil
}

// resolveProfiles returns the explicit profile first, then every other
// profile whose kind is in ProfileKindIn, deduplicated in listing order.
func (g *SearchGateway) resolveProfiles(ctx context.Context, q GatewayQuery) ([]model.IndexProfile, error) {
	p, err := g.profiles.GetProfile(ctx, q.ProfileID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, q.ProfileID)
	}
	targets := []model.IndexProfile{*p}
	if len(q.ProfileKindIn) == 0 {
		return targets, nil
	}

	all, err := g.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	for _, candidate := range all {
		if candidate.ID == p.ID {
			continue
		}
		for _, kind := range q.ProfileKindIn {
			if candidate.Kind == kind {
				targets = append(targets, candidate)
				break
			}
		}
	}
	return targets, nil
}
