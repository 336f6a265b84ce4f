package brain

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/agenthands/brain/internal/config"
	"github.com/agenthands/brain/internal/model"
	"github.com/agenthands/brain/internal/store"
)

const (
	maxSeedsCeiling       = 200
	defaultMaxSeeds       = 25
	defaultMaxClusterSize = 5
	defaultThreshold      = 0.35
	defaultMaxNeighbors   = 8
)

// BuildRequest is one clustering run for a tenant+project.
type BuildRequest struct {
	TenantID       string
	ProjectKey     string
	Window         model.Window
	MaxSeeds       int
	MaxClusterSize int
}

// BuildResult reports what a run persisted. ClustersCreated counts only
// cluster nodes that did not exist before the call, which is what makes
// the idempotence of rebuilds observable.
type BuildResult struct {
	ClustersCreated int `json:"clustersCreated"`
	MembersLinked   int `json:"membersLinked"`
}

// ClusterBuilder groups related work/doc entities into clusters via
// vector-neighbor expansion. Cluster identity is content-addressed, so
// rebuilding an unchanged graph converges to the same clusters.
type ClusterBuilder struct {
	graph     store.GraphStore
	gateway   *SearchGateway
	profiles  store.IndexProfileStore
	log       *slog.Logger
	neighbors int
	threshold float64
}

func NewClusterBuilder(graph store.GraphStore, gateway *SearchGateway, profiles store.IndexProfileStore, cfg config.ClusterConfig, log *slog.Logger) *ClusterBuilder {
	neighbors := cfg.MaxNeighbors
	if neighbors <= 0 {
		neighbors = defaultMaxNeighbors
	}
	threshold := cfg.SimilarityThreshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	return &ClusterBuilder{
		graph:     graph,
		gateway:   gateway,
		profiles:  profiles,
		log:       log.With("component", "brain.clusterer"),
		neighbors: neighbors,
		threshold: threshold,
	}
}

// draft is a candidate cluster keyed by its content-addressed identity.
// Two seeds that produce the same member set merge into one draft.
type draft struct {
	members map[string]bool
	seeds   map[string]bool
	score   float64
}

func (b *ClusterBuilder) Build(ctx context.Context, req BuildRequest) (BuildResult, error) {
	maxSeeds := clamp(req.MaxSeeds, defaultMaxSeeds, 1, maxSeedsCeiling)
	maxCluster := req.MaxClusterSize
	if maxCluster == 0 {
		maxCluster = defaultMaxClusterSize
	}
	if maxCluster < 2 {
		maxCluster = 2
	}
	scope := model.Scope{TenantID: req.TenantID, ProjectKey: req.ProjectKey}

	seeds, err := b.loadSeeds(ctx, scope, req.Window, maxSeeds)
	if err != nil {
		return BuildResult{}, err
	}

	byType, err := b.profilesByEntityType(ctx)
	if err != nil {
		return BuildResult{}, err
	}

	// Resolved-neighbor cache lives for the run only; nil marks a
	// neighbor already found unresolvable.
	resolved := make(map[string]*model.Entity)
	drafts := make(map[string]*draft)

	for _, seed := range seeds {
		profile, ok := byType[seed.Type]
		if !ok {
			continue
		}
		// Neighbors may come from either clusterable kind; episodes mix
		// work items and documents.
		hits, err := b.gateway.Search(ctx, GatewayQuery{
			ProfileID:     profile.ID,
			Query:         profile.QueryText(seed),
			TopK:          min(b.neighbors, maxCluster-1),
			TenantID:      req.TenantID,
			ProjectKeyIn:  projectKeys(req.ProjectKey),
			ProfileKindIn: []string{model.ProfileKindWork, model.ProfileKindDoc},
		})
		if err != nil {
			// Clustering is best-effort per seed; a failed neighbor
			// fetch must not abort the whole run.
			b.log.Warn("neighbor search failed", "seed", seed.ID, "error", err)
			continue
		}

		members := map[string]bool{seed.ID: true}
		var maxScore float64
		for _, hit := range hits {
			if hit.NodeID == seed.ID {
				continue
			}
			if hit.Score > maxScore {
				maxScore = hit.Score
			}
			// Inclusive boundary: a score exactly at the threshold is
			// admitted.
			if hit.Score < b.threshold {
				continue
			}
			if len(members) >= maxCluster {
				break
			}
			neighbor, ok := resolved[hit.NodeID]
			if !ok {
				neighbor = b.resolveNeighbor(ctx, hit.NodeID, scope)
				resolved[hit.NodeID] = neighbor
			}
			if neighbor == nil {
				continue
			}
			members[neighbor.ID] = true
		}

		if len(members) < 2 {
			continue
		}

		key := model.ClusterKey(scope, req.Window, keys(members))
		d, ok := drafts[key]
		if !ok {
			d = &draft{members: map[string]bool{}, seeds: map[string]bool{}}
			drafts[key] = d
		}
		for m := range members {
			d.members[m] = true
		}
		d.seeds[seed.ID] = true
		if maxScore > d.score {
			d.score = maxScore
		}
	}

	return b.persist(ctx, scope, req.Window, drafts)
}

func (b *ClusterBuilder) loadSeeds(ctx context.Context, scope model.Scope, window model.Window, maxSeeds int) ([]*model.Entity, error) {
	entities, err := b.graph.ListEntities(ctx, store.EntityFilter{
		Types: []string{model.EntityWorkItem, model.EntityDocument},
	}, scope)
	if err != nil {
		return nil, err
	}
	seeds := entities[:0]
	for _, e := range entities {
		if !window.IsZero() && !window.Contains(e.Recency()) {
			continue
		}
		seeds = append(seeds, e)
	}
	// Most recent first; entities without timestamps sort last.
	sort.SliceStable(seeds, func(i, j int) bool {
		ri, rj := seeds[i].Recency(), seeds[j].Recency()
		if ri.IsZero() {
			return false
		}
		if rj.IsZero() {
			return true
		}
		return ri.After(rj)
	})
	if len(seeds) > maxSeeds {
		seeds = seeds[:maxSeeds]
	}
	return seeds, nil
}

// resolveNeighbor maps a vector hit back to an eligible, in-scope entity.
// Anything unresolved is skipped silently.
func (b *ClusterBuilder) resolveNeighbor(ctx context.Context, id string, scope model.Scope) *model.Entity {
	e, err := b.graph.GetEntity(ctx, id, scope)
	if err != nil {
		if !errors.Is(err, store.ErrScopeMismatch) {
			b.log.Warn("neighbor lookup failed", "node", id, "error", err)
		}
		return nil
	}
	if e == nil {
		return nil
	}
	if e.Type != model.EntityWorkItem && e.Type != model.EntityDocument {
		return nil
	}
	return e
}

func (b *ClusterBuilder) persist(ctx context.Context, scope model.Scope, window model.Window, drafts map[string]*draft) (BuildResult, error) {
	var result BuildResult
	now := time.Now().UTC()

	orderedKeys := make([]string, 0, len(drafts))
	for k := range drafts {
		orderedKeys = append(orderedKeys, k)
	}
	sort.Strings(orderedKeys)

	for _, key := range orderedKeys {
		d := drafts[key]
		clusterID := model.ClusterID(key)

		existing, err := b.graph.GetEntity(ctx, clusterID, scope)
		if err != nil && !errors.Is(err, store.ErrScopeMismatch) {
			return result, err
		}
		createdAt := now
		if existing != nil {
			createdAt = existing.CreatedAt
		} else {
			result.ClustersCreated++
		}

		cluster := &model.Entity{
			ID:    clusterID,
			Type:  model.EntityCluster,
			Scope: scope,
			Props: model.ClusterProps{
				Kind:        model.ClusterKindSemantic,
				SeedIDs:     keys(d.seeds),
				MemberCount: len(d.members),
				Similarity:  d.score,
				Algorithm:   model.ClusterAlgorithm,
				WindowStart: window.Start,
				WindowEnd:   window.End,
			}.ToProps(),
			CreatedAt: createdAt,
			UpdatedAt: now,
		}
		if err := b.graph.UpsertEntity(ctx, cluster); err != nil {
			return result, err
		}

		for _, member := range keys(d.members) {
			edge := &model.Edge{
				Type:     model.EdgeInCluster,
				SourceID: member,
				TargetID: clusterID,
				Scope:    scope,
			}
			if err := b.graph.UpsertEdge(ctx, edge); err != nil {
				return result, err
			}
			result.MembersLinked++
		}
	}

	b.log.Info("cluster build finished",
		"tenant", scope.TenantID,
		"project", scope.ProjectKey,
		"clustersCreated", result.ClustersCreated,
		"membersLinked", result.MembersLinked)
	return result, nil
}

func (b *ClusterBuilder) profilesByEntityType(ctx context.Context) (map[string]model.IndexProfile, error) {
	all, err := b.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	byType := make(map[string]model.IndexProfile, len(all))
	for _, p := range all {
		byType[p.EntityType] = p
	}
	return byType, nil
}

func projectKeys(projectKey string) []string {
	if projectKey == "" {
		return nil
	}
	return []string{projectKey}
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func clamp(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
