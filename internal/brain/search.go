package brain

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/agenthands/brain/internal/config"
	"github.com/agenthands/brain/internal/model"
	"github.com/agenthands/brain/internal/store"
)

const (
	defaultTopK              = 20
	defaultMaxEpisodes       = 10
	defaultExpandDepth       = 1
	defaultMaxNodes          = 200
	defaultPassageCharLimit  = 2000
	defaultPassageTotalLimit = 30000
	defaultEdgeFetchLimit    = 64
)

// Actor identifies the authenticated caller. Secured searches require one.
type Actor struct {
	ID string
}

// SearchFilter scopes a hybrid search. TenantID is mandatory. Secured nil
// means enforcement is on; only an explicit false disables it.
type SearchFilter struct {
	TenantID      string   `json:"tenantId"`
	ProjectKey    string   `json:"projectKey,omitempty"`
	ProfileKindIn []string `json:"profileKindIn,omitempty"`
	Secured       *bool    `json:"secured,omitempty"`
}

// SearchOptions tune fan-out and expansion. Nil fields take defaults;
// zero is a meaningful value for MaxEpisodes and ExpandDepth, so the
// fields are pointers.
type SearchOptions struct {
	TopK            *int  `json:"topK,omitempty"`
	MaxEpisodes     *int  `json:"maxEpisodes,omitempty"`
	ExpandDepth     *int  `json:"expandDepth,omitempty"`
	MaxNodes        *int  `json:"maxNodes,omitempty"`
	IncludeEpisodes *bool `json:"includeEpisodes,omitempty"`
	IncludeSignals  *bool `json:"includeSignals,omitempty"`
	IncludeClusters *bool `json:"includeClusters,omitempty"`
}

type SearchRequest struct {
	Query   string        `json:"query"`
	Filter  SearchFilter  `json:"filter"`
	Options SearchOptions `json:"options"`
	Actor   *Actor        `json:"-"`
}

// SearchResult is the full hybrid-query bundle. Nodes are sorted by id
// and edges by (type, source, target) so responses are deterministic.
type SearchResult struct {
	Hits     []model.SearchHit  `json:"hits"`
	Episodes []model.EpisodeHit `json:"episodes"`
	Nodes    []*model.Entity    `json:"nodes"`
	Edges    []*model.Edge      `json:"edges"`
	Passages []model.Passage    `json:"passages"`
	Prompt   model.PromptPack   `json:"prompt"`
}

// Searcher runs the top-level hybrid query: vector search, bounded graph
// expansion, episode scoring, passage extraction and prompt assembly.
type Searcher struct {
	graph             store.GraphStore
	gateway           *SearchGateway
	log               *slog.Logger
	defaultProfileIDs []string
	passageCharLimit  int
	passageTotalLimit int
	edgeFetchLimit    int
}

func NewSearcher(graph store.GraphStore, gateway *SearchGateway, cfg config.SearchConfig, log *slog.Logger) *Searcher {
	s := &Searcher{
		graph:             graph,
		gateway:           gateway,
		log:               log.With("component", "brain.search"),
		defaultProfileIDs: []string{store.ProfileWork, store.ProfileDoc},
		passageCharLimit:  cfg.PassageCharLimit,
		passageTotalLimit: cfg.PassageTotalLimit,
		edgeFetchLimit:    cfg.EdgeFetchLimit,
	}
	if s.passageCharLimit <= 0 {
		s.passageCharLimit = defaultPassageCharLimit
	}
	if s.passageTotalLimit <= 0 {
		s.passageTotalLimit = defaultPassageTotalLimit
	}
	if s.edgeFetchLimit <= 0 {
		s.edgeFetchLimit = defaultEdgeFetchLimit
	}
	return s
}

func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.Filter.TenantID == "" {
		return nil, ErrMissingTenant
	}
	enforceSecured := req.Filter.Secured == nil || *req.Filter.Secured
	if enforceSecured && req.Actor == nil {
		return nil, ErrUnauthenticated
	}

	topK := intOpt(req.Options.TopK, defaultTopK, 1, 200)
	maxEpisodes := intOpt(req.Options.MaxEpisodes, defaultMaxEpisodes, 0, 200)
	expandDepth := intOpt(req.Options.ExpandDepth, defaultExpandDepth, 0, 3)
	maxNodes := intOpt(req.Options.MaxNodes, defaultMaxNodes, 1, 1000)
	includeEpisodes := boolOpt(req.Options.IncludeEpisodes, true)
	includeSignals := boolOpt(req.Options.IncludeSignals, true)
	includeClusters := boolOpt(req.Options.IncludeClusters, true)

	scope := model.Scope{TenantID: req.Filter.TenantID, ProjectKey: req.Filter.ProjectKey}

	hits, err := s.runGateway(ctx, req, topK)
	if err != nil {
		return nil, err
	}

	// Resolve hit entities; missing or secured hits drop out entirely.
	nodes := make(map[string]*model.Entity)
	kept := hits[:0]
	for _, hit := range hits {
		e, err := s.graph.GetEntity(ctx, hit.NodeID, scope)
		if err != nil {
			if errors.Is(err, store.ErrScopeMismatch) {
				continue
			}
			return nil, err
		}
		if e == nil {
			continue
		}
		if enforceSecured && e.Secured() {
			continue
		}
		nodes[e.ID] = e
		kept = append(kept, hit)
	}
	hits = kept

	edges, err := s.expand(ctx, hits, nodes, scope, expandOpts{
		depth:           expandDepth,
		maxNodes:        maxNodes,
		includeSignals:  includeSignals,
		includeClusters: includeClusters,
		enforceSecured:  enforceSecured,
	})
	if err != nil {
		return nil, err
	}

	var episodes []model.EpisodeHit
	if includeEpisodes {
		episodes, err = s.scoreEpisodes(ctx, hits, scope, maxEpisodes)
		if err != nil {
			return nil, err
		}
	}

	passages := s.extractPassages(hits, nodes)

	result := &SearchResult{
		Hits:     hits,
		Episodes: episodes,
		Nodes:    sortedNodes(nodes),
		Edges:    sortedEdges(edges),
		Passages: passages,
		Prompt:   BuildPromptPack(req.Query, hits, episodes, passages),
	}
	return result, nil
}

// runGateway fans out once per default profile and merges by max score.
func (s *Searcher) runGateway(ctx context.Context, req SearchRequest, topK int) ([]model.SearchHit, error) {
	var merged []model.SearchHit
	best := make(map[string]int)
	for _, profileID := range s.defaultProfileIDs {
		hits, err := s.gateway.Search(ctx, GatewayQuery{
			ProfileID:     profileID,
			Query:         req.Query,
			TopK:          topK,
			TenantID:      req.Filter.TenantID,
			ProjectKeyIn:  projectKeys(req.Filter.ProjectKey),
			ProfileKindIn: req.Filter.ProfileKindIn,
		})
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if i, ok := best[h.NodeID]; ok {
				if h.Score > merged[i].Score {
					merged[i] = h
				}
				continue
			}
			best[h.NodeID] = len(merged)
			merged = append(merged, h)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

type expandOpts struct {
	depth           int
	maxNodes        int
	includeSignals  bool
	includeClusters bool
	enforceSecured  bool
}

// expand walks the graph breadth-first from the hit entities. Node and
// depth budgets make termination deterministic regardless of graph size.
func (s *Searcher) expand(ctx context.Context, hits []model.SearchHit, nodes map[string]*model.Entity, scope model.Scope, opts expandOpts) (map[string]*model.Edge, error) {
	edges := make(map[string]*model.Edge)

	type frontierItem struct {
		id    string
		depth int
	}
	var queue []frontierItem
	for _, h := range hits {
		if _, ok := nodes[h.NodeID]; ok {
			queue = append(queue, frontierItem{id: h.NodeID})
		}
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= opts.depth {
			continue
		}

		adjacent, err := s.adjacentEdges(ctx, item.id, scope)
		if err != nil {
			return nil, err
		}
		for _, e := range adjacent {
			if !opts.includeSignals && e.Type == model.EdgeHasSignal {
				continue
			}
			if !opts.includeClusters && e.Type == model.EdgeInCluster {
				continue
			}
			edges[e.LogicalKey()] = e

			other := e.TargetID
			if other == item.id {
				other = e.SourceID
			}
			if _, ok := nodes[other]; ok {
				continue
			}
			if len(nodes) >= opts.maxNodes {
				continue
			}
			ent, err := s.graph.GetEntity(ctx, other, scope)
			if err != nil {
				if errors.Is(err, store.ErrScopeMismatch) {
					continue
				}
				return nil, err
			}
			if ent == nil {
				continue
			}
			if opts.enforceSecured && ent.Secured() {
				continue
			}
			nodes[other] = ent
			queue = append(queue, frontierItem{id: other, depth: item.depth + 1})
		}
	}

	// Keep only edges whose endpoints both made it into the node set.
	for k, e := range edges {
		if _, ok := nodes[e.SourceID]; !ok {
			delete(edges, k)
			continue
		}
		if _, ok := nodes[e.TargetID]; !ok {
			delete(edges, k)
		}
	}
	return edges, nil
}

// adjacentEdges fetches deduplicated inbound and outbound edges for one
// node, capped per fetch.
func (s *Searcher) adjacentEdges(ctx context.Context, id string, scope model.Scope) ([]*model.Edge, error) {
	outbound, err := s.graph.ListEdges(ctx, store.EdgeFilter{SourceID: id, Limit: s.edgeFetchLimit}, scope)
	if err != nil {
		return nil, err
	}
	inbound, err := s.graph.ListEdges(ctx, store.EdgeFilter{TargetID: id, Limit: s.edgeFetchLimit}, scope)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(outbound)+len(inbound))
	var out []*model.Edge
	for _, e := range append(outbound, inbound...) {
		if seen[e.LogicalKey()] {
			continue
		}
		seen[e.LogicalKey()] = true
		out = append(out, e)
	}
	return out, nil
}

// scoreEpisodes sums hit scores per cluster over IN_CLUSTER membership.
// Members that are not hits contribute nothing.
func (s *Searcher) scoreEpisodes(ctx context.Context, hits []model.SearchHit, scope model.Scope, maxEpisodes int) ([]model.EpisodeHit, error) {
	scoreByHit := make(map[string]float64, len(hits))
	for _, h := range hits {
		scoreByHit[h.NodeID] = h.Score
	}

	type draft struct {
		score   float64
		members map[string]bool
	}
	byCluster := make(map[string]*draft)
	for _, h := range hits {
		edges, err := s.graph.ListEdges(ctx, store.EdgeFilter{
			Types:    []string{model.EdgeInCluster},
			SourceID: h.NodeID,
			Limit:    s.edgeFetchLimit,
		}, scope)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			d, ok := byCluster[e.TargetID]
			if !ok {
				d = &draft{members: map[string]bool{}}
				byCluster[e.TargetID] = d
			}
			if d.members[e.SourceID] {
				continue
			}
			d.members[e.SourceID] = true
			d.score += scoreByHit[e.SourceID]
		}
	}

	episodes := make([]model.EpisodeHit, 0, len(byCluster))
	for clusterID, d := range byCluster {
		if d.score == 0 {
			continue
		}
		episodes = append(episodes, model.EpisodeHit{
			ClusterID: clusterID,
			Score:     d.score,
			MemberIDs: keys(d.members),
		})
	}
	sort.Slice(episodes, func(i, j int) bool {
		if episodes[i].Score != episodes[j].Score {
			return episodes[i].Score > episodes[j].Score
		}
		return episodes[i].ClusterID < episodes[j].ClusterID
	})
	if len(episodes) > maxEpisodes {
		episodes = episodes[:maxEpisodes]
	}
	return episodes, nil
}

// extractPassages walks hits in rank order taking the first non-empty
// text field, truncated per node and against a global budget.
func (s *Searcher) extractPassages(hits []model.SearchHit, nodes map[string]*model.Entity) []model.Passage {
	passages := []model.Passage{}
	remaining := s.passageTotalLimit
	for _, h := range hits {
		if remaining <= 0 {
			break
		}
		e, ok := nodes[h.NodeID]
		if !ok {
			continue
		}
		text := e.FirstStr(model.PassageFields...)
		if text == "" {
			continue
		}
		if len(text) > s.passageCharLimit {
			text = text[:s.passageCharLimit]
		}
		if len(text) > remaining {
			text = text[:remaining]
		}
		passages = append(passages, model.Passage{
			NodeID: e.ID,
			Title:  e.TitleText(),
			Text:   text,
		})
		remaining -= len(text)
	}
	return passages
}

func sortedNodes(nodes map[string]*model.Entity) []*model.Entity {
	out := make([]*model.Entity, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedEdges(edges map[string]*model.Edge) []*model.Edge {
	out := make([]*model.Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalKey() < out[j].LogicalKey() })
	return out
}

func intOpt(p *int, def, lo, hi int) int {
	v := def
	if p != nil {
		v = *p
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolOpt(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
