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

const defaultSignalsPerSource = 10

// ClusterRow is the flat listing shape: a cluster and its member ids.
type ClusterRow struct {
	ClusterNodeID string   `json:"clusterNodeId"`
	ClusterKind   string   `json:"clusterKind"`
	MemberNodeIDs []string `json:"memberNodeIds"`
}

// EpisodeList is one page of hydrated episodes. TotalCount reflects the
// full scoped set, not the page.
type EpisodeList struct {
	Episodes   []*model.Episode `json:"episodes"`
	TotalCount int              `json:"totalCount"`
}

// EpisodeReader hydrates persisted clusters into episode views. Episodes
// are rebuilt on every read and never persisted.
type EpisodeReader struct {
	graph            store.GraphStore
	signals          store.SignalStore
	summarizer       *EpisodeSummarizer
	log              *slog.Logger
	signalsPerSource int
}

func NewEpisodeReader(graph store.GraphStore, signals store.SignalStore, summarizer *EpisodeSummarizer, cfg config.SearchConfig, log *slog.Logger) *EpisodeReader {
	perSource := cfg.SignalsPerSource
	if perSource <= 0 {
		perSource = defaultSignalsPerSource
	}
	return &EpisodeReader{
		graph:            graph,
		signals:          signals,
		summarizer:       summarizer,
		log:              log.With("component", "brain.episodes"),
		signalsPerSource: perSource,
	}
}

// ListClustersForProject lists persisted clusters and their deduplicated,
// sorted member-id sets for a project and optional window.
func (r *EpisodeReader) ListClustersForProject(ctx context.Context, tenantID, projectKey string, window model.Window) ([]ClusterRow, error) {
	scope := model.Scope{TenantID: tenantID, ProjectKey: projectKey}
	clusters, err := r.listScopedClusters(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	rows := make([]ClusterRow, 0, len(clusters))
	for _, c := range clusters {
		members, err := r.memberIDs(ctx, c.ID, scope)
		if err != nil {
			return nil, err
		}
		rows = append(rows, ClusterRow{
			ClusterNodeID: c.ID,
			ClusterKind:   c.Str(model.PropClusterKind),
			MemberNodeIDs: members,
		})
	}
	return rows, nil
}

// GetEpisode hydrates a single cluster by id. A cluster that exists under
// a different scope fails with store.ErrScopeMismatch; listing operations
// exclude such rows silently instead.
func (r *EpisodeReader) GetEpisode(ctx context.Context, clusterID string, scope model.Scope) (*model.Episode, error) {
	cluster, err := r.graph.GetEntity(ctx, clusterID, scope)
	if err != nil {
		return nil, err
	}
	if cluster == nil || cluster.Type != model.EntityCluster {
		return nil, ErrEpisodeNotFound
	}
	ep, err := r.hydrate(ctx, cluster, scope)
	if err != nil {
		return nil, err
	}
	if r.summarizer != nil && ep.Summary == "" {
		// Best-effort enrichment; hydration never fails on it.
		if title, summary, err := r.summarizer.Summarize(ctx, ep); err == nil {
			ep.Title = title
			ep.Summary = summary
		} else {
			r.log.Warn("episode summarization failed", "cluster", clusterID, "error", err)
		}
	}
	return ep, nil
}

// ListEpisodes paginates hydrated episodes over the recency-sorted scoped
// set.
func (r *EpisodeReader) ListEpisodes(ctx context.Context, scope model.Scope, window model.Window, offset, limit int) (*EpisodeList, error) {
	clusters, err := r.listScopedClusters(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	list := &EpisodeList{TotalCount: len(clusters), Episodes: []*model.Episode{}}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(clusters) {
		return list, nil
	}
	page := clusters[offset:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}

	for _, c := range page {
		ep, err := r.hydrate(ctx, c, scope)
		if err != nil {
			return nil, err
		}
		list.Episodes = append(list.Episodes, ep)
	}
	return list, nil
}

func (r *EpisodeReader) listScopedClusters(ctx context.Context, scope model.Scope, window model.Window) ([]*model.Entity, error) {
	clusters, err := r.graph.ListEntities(ctx, store.EntityFilter{Types: []string{model.EntityCluster}}, scope)
	if err != nil {
		return nil, err
	}
	kept := clusters[:0]
	for _, c := range clusters {
		if !window.IsZero() && !window.Contains(c.Recency()) {
			continue
		}
		kept = append(kept, c)
	}
	// Most recent first, id as tiebreak for a stable page order.
	sort.SliceStable(kept, func(i, j int) bool {
		ri, rj := kept[i].Recency(), kept[j].Recency()
		if !ri.Equal(rj) {
			return ri.After(rj)
		}
		return kept[i].ID < kept[j].ID
	})
	return kept, nil
}

func (r *EpisodeReader) memberIDs(ctx context.Context, clusterID string, scope model.Scope) ([]string, error) {
	edges, err := r.graph.ListEdges(ctx, store.EdgeFilter{
		Types:    []string{model.EdgeInCluster},
		TargetID: clusterID,
	}, scope)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(edges))
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		if seen[e.SourceID] {
			continue
		}
		seen[e.SourceID] = true
		ids = append(ids, e.SourceID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *EpisodeReader) hydrate(ctx context.Context, cluster *model.Entity, scope model.Scope) (*model.Episode, error) {
	props := model.ClusterPropsFrom(cluster)
	ep := &model.Episode{
		ClusterID:   cluster.ID,
		Kind:        props.Kind,
		Similarity:  props.Similarity,
		MemberCount: props.MemberCount,
		CreatedAt:   cluster.CreatedAt,
		UpdatedAt:   cluster.UpdatedAt,
		Members:     []model.EpisodeMember{},
		Signals:     []model.EpisodeSignal{},
	}

	memberIDs, err := r.memberIDs(ctx, cluster.ID, scope)
	if err != nil {
		return nil, err
	}

	// Per-request cache of definition slugs.
	slugs := make(map[string]string)

	for _, id := range memberIDs {
		member, err := r.graph.GetEntity(ctx, id, scope)
		if err != nil {
			if errors.Is(err, store.ErrScopeMismatch) {
				continue
			}
			return nil, err
		}
		if member == nil {
			continue
		}
		ep.Members = append(ep.Members, memberSummary(member))
		sigs, err := r.collectSignals(ctx, member.ID, scope, slugs)
		if err != nil {
			return nil, err
		}
		ep.Signals = append(ep.Signals, sigs...)
	}

	// Signals hang off the cluster node too.
	sigs, err := r.collectSignals(ctx, cluster.ID, scope, slugs)
	if err != nil {
		return nil, err
	}
	ep.Signals = append(ep.Signals, sigs...)

	return ep, nil
}

func memberSummary(e *model.Entity) model.EpisodeMember {
	m := model.EpisodeMember{
		NodeID:  e.ID,
		Kind:    model.MemberKindOther,
		Title:   e.TitleText(),
		Summary: e.SummaryText(),
	}
	switch e.Type {
	case model.EntityWorkItem:
		m.Kind = model.MemberKindWork
		m.WorkKey = e.WorkKey()
	case model.EntityDocument:
		m.Kind = model.MemberKindDoc
		m.DocURL = e.DocURL()
	}
	return m
}

// collectSignals follows HAS_SIGNAL edges from one source node, capped
// per source. Missing instances are skipped silently.
func (r *EpisodeReader) collectSignals(ctx context.Context, sourceID string, scope model.Scope, slugs map[string]string) ([]model.EpisodeSignal, error) {
	edges, err := r.graph.ListEdges(ctx, store.EdgeFilter{
		Types:    []string{model.EdgeHasSignal},
		SourceID: sourceID,
		Limit:    r.signalsPerSource,
	}, scope)
	if err != nil {
		return nil, err
	}

	var out []model.EpisodeSignal
	for _, e := range edges {
		inst, err := r.signals.GetInstance(ctx, e.TargetID)
		if err != nil || inst == nil {
			continue
		}
		sig := model.EpisodeSignal{
			InstanceID:   inst.ID,
			DefinitionID: inst.DefinitionID,
			Severity:     inst.Severity,
			Status:       inst.Status,
			SourceNodeID: sourceID,
		}
		if sig.Severity == "" {
			sig.Severity = model.SignalSeverityInfo
		}
		if sig.Status == "" {
			sig.Status = model.SignalStatusOpen
		}
		if slug, ok := slugs[inst.DefinitionID]; ok {
			sig.Slug = slug
		} else if def, err := r.signals.GetDefinition(ctx, inst.DefinitionID); err == nil && def != nil {
			slugs[inst.DefinitionID] = def.Slug
			sig.Slug = def.Slug
		}
		out = append(out, sig)
	}
	return out, nil
}
