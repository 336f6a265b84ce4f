package brain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/brain/internal/config"
	"github.com/agenthands/brain/internal/model"
	"github.com/agenthands/brain/internal/store"
)

func searchConfig() config.SearchConfig {
	return config.SearchConfig{
		PassageCharLimit:  2000,
		PassageTotalLimit: 30000,
		EdgeFetchLimit:    64,
		SignalsPerSource:  10,
	}
}

func putCluster(t *testing.T, graph *store.MemoryGraph, id string, scope model.Scope, memberIDs []string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, graph.UpsertEntity(ctx, &model.Entity{
		ID:    id,
		Type:  model.EntityCluster,
		Scope: scope,
		Props: model.ClusterProps{
			Kind:        model.ClusterKindSemantic,
			MemberCount: len(memberIDs),
			Similarity:  0.9,
			Algorithm:   model.ClusterAlgorithm,
		}.ToProps(),
		CreatedAt: at,
		UpdatedAt: at,
	}))
	for _, m := range memberIDs {
		require.NoError(t, graph.UpsertEdge(ctx, &model.Edge{
			Type:     model.EdgeInCluster,
			SourceID: m,
			TargetID: id,
			Scope:    scope,
		}))
	}
}

func TestGetEpisode_HydratesMembersAndSignals(t *testing.T) {
	ctx := context.Background()
	scope := model.Scope{TenantID: "t1", ProjectKey: "alpha"}
	graph := store.NewMemoryGraph()
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, graph.UpsertEntity(ctx, seedEntity("work-1", model.EntityWorkItem, scope, map[string]any{
		"summary":  "Investigate outage",
		"issueKey": "OPS-412",
	})))
	require.NoError(t, graph.UpsertEntity(ctx, seedEntity("doc-1", model.EntityDocument, scope, map[string]any{
		"title":     "Outage doc",
		"sourceUrl": "https://docs.example.com/outage",
	})))
	putCluster(t, graph, "cl_abc", scope, []string{"work-1", "doc-1"}, at)

	signals := store.NewMemorySignalStore()
	signals.PutDefinition(store.SignalDefinition{ID: "def-1", Slug: "stale-doc"})
	signals.PutInstance(store.SignalInstance{ID: "sig-1", DefinitionID: "def-1"})
	require.NoError(t, graph.UpsertEdge(ctx, &model.Edge{
		Type:     model.EdgeHasSignal,
		SourceID: "doc-1",
		TargetID: "sig-1",
		Scope:    scope,
	}))

	reader := NewEpisodeReader(graph, signals, nil, searchConfig(), testLogger())

	ep, err := reader.GetEpisode(ctx, "cl_abc", scope)

	require.NoError(t, err)
	assert.Equal(t, "cl_abc", ep.ClusterID)
	assert.Equal(t, model.ClusterKindSemantic, ep.Kind)
	assert.Equal(t, 0.9, ep.Similarity)
	require.Len(t, ep.Members, 2)

	// memberIDs sorts alphabetically, so doc-1 comes first.
	doc := ep.Members[0]
	assert.Equal(t, "doc-1", doc.NodeID)
	assert.Equal(t, model.MemberKindDoc, doc.Kind)
	assert.Equal(t, "Outage doc", doc.Title)
	assert.Equal(t, "https://docs.example.com/outage", doc.DocURL)

	work := ep.Members[1]
	assert.Equal(t, "work-1", work.NodeID)
	assert.Equal(t, model.MemberKindWork, work.Kind)
	assert.Equal(t, "OPS-412", work.WorkKey)

	require.Len(t, ep.Signals, 1)
	sig := ep.Signals[0]
	assert.Equal(t, "sig-1", sig.InstanceID)
	assert.Equal(t, "stale-doc", sig.Slug)
	assert.Equal(t, "doc-1", sig.SourceNodeID)
	// Unset severity and status fall back to the defaults.
	assert.Equal(t, model.SignalSeverityInfo, sig.Severity)
	assert.Equal(t, model.SignalStatusOpen, sig.Status)
}

func TestGetEpisode_NotFoundAndWrongType(t *testing.T) {
	ctx := context.Background()
	scope := model.Scope{TenantID: "t1", ProjectKey: "alpha"}
	graph := store.NewMemoryGraph()
	require.NoError(t, graph.UpsertEntity(ctx, seedEntity("work-1", model.EntityWorkItem, scope, nil)))

	reader := NewEpisodeReader(graph, store.NewMemorySignalStore(), nil, searchConfig(), testLogger())

	_, err := reader.GetEpisode(ctx, "cl_missing", scope)
	assert.ErrorIs(t, err, ErrEpisodeNotFound)

	// A node that exists but is not a cluster is not an episode.
	_, err = reader.GetEpisode(ctx, "work-1", scope)
	assert.ErrorIs(t, err, ErrEpisodeNotFound)
}

func TestGetEpisode_ForeignScopeFails(t *testing.T) {
	ctx := context.Background()
	scope := model.Scope{TenantID: "t1", ProjectKey: "alpha"}
	graph := store.NewMemoryGraph()
	putCluster(t, graph, "cl_abc", scope, nil, time.Now().UTC())

	reader := NewEpisodeReader(graph, store.NewMemorySignalStore(), nil, searchConfig(), testLogger())

	_, err := reader.GetEpisode(ctx, "cl_abc", model.Scope{TenantID: "t2"})
	assert.ErrorIs(t, err, store.ErrScopeMismatch)
}

func TestGetEpisode_SummarizerFillsTitle(t *testing.T) {
	ctx := context.Background()
	scope := model.Scope{TenantID: "t1", ProjectKey: "alpha"}
	graph := store.NewMemoryGraph()
	require.NoError(t, graph.UpsertEntity(ctx, seedEntity("work-1", model.EntityWorkItem, scope, map[string]any{"summary": "Investigate outage"})))
	putCluster(t, graph, "cl_abc", scope, []string{"work-1"}, time.Now().UTC())

	llmFake := &fakeLLM{Response: `{"title": "Outage episode", "summary": "Work around an outage."}`}
	reader := NewEpisodeReader(graph, store.NewMemorySignalStore(), NewEpisodeSummarizer(llmFake), searchConfig(), testLogger())

	ep, err := reader.GetEpisode(ctx, "cl_abc", scope)

	require.NoError(t, err)
	assert.Equal(t, "Outage episode", ep.Title)
	assert.Equal(t, "Work around an outage.", ep.Summary)
}

func TestGetEpisode_SummarizerFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	scope := model.Scope{TenantID: "t1", ProjectKey: "alpha"}
	graph := store.NewMemoryGraph()
	require.NoError(t, graph.UpsertEntity(ctx, seedEntity("work-1", model.EntityWorkItem, scope, map[string]any{"summary": "Investigate outage"})))
	putCluster(t, graph, "cl_abc", scope, []string{"work-1"}, time.Now().UTC())

	llmFake := &fakeLLM{Err: errBoom}
	reader := NewEpisodeReader(graph, store.NewMemorySignalStore(), NewEpisodeSummarizer(llmFake), searchConfig(), testLogger())

	ep, err := reader.GetEpisode(ctx, "cl_abc", scope)

	require.NoError(t, err)
	assert.Empty(t, ep.Summary)
	require.Len(t, ep.Members, 1)
}

func TestListEpisodes_Pagination(t *testing.T) {
	ctx := context.Background()
	scope := model.Scope{TenantID: "t1", ProjectKey: "alpha"}
	graph := store.NewMemoryGraph()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	putCluster(t, graph, "cl_a", scope, nil, base.Add(2*time.Hour))
	putCluster(t, graph, "cl_b", scope, nil, base.Add(time.Hour))
	putCluster(t, graph, "cl_c", scope, nil, base)

	reader := NewEpisodeReader(graph, store.NewMemorySignalStore(), nil, searchConfig(), testLogger())

	page, err := reader.ListEpisodes(ctx, scope, model.Window{}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	require.Len(t, page.Episodes, 2)
	assert.Equal(t, "cl_a", page.Episodes[0].ClusterID)
	assert.Equal(t, "cl_b", page.Episodes[1].ClusterID)

	rest, err := reader.ListEpisodes(ctx, scope, model.Window{}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, rest.TotalCount)
	require.Len(t, rest.Episodes, 1)
	assert.Equal(t, "cl_c", rest.Episodes[0].ClusterID)

	empty, err := reader.ListEpisodes(ctx, scope, model.Window{}, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, empty.Episodes)
	assert.Equal(t, 3, empty.TotalCount)
}

func TestListEpisodes_ExcludesForeignScopeSilently(t *testing.T) {
	ctx := context.Background()
	scope := model.Scope{TenantID: "t1", ProjectKey: "alpha"}
	graph := store.NewMemoryGraph()
	putCluster(t, graph, "cl_mine", scope, nil, time.Now().UTC())
	putCluster(t, graph, "cl_theirs", model.Scope{TenantID: "t2", ProjectKey: "alpha"}, nil, time.Now().UTC())

	reader := NewEpisodeReader(graph, store.NewMemorySignalStore(), nil, searchConfig(), testLogger())

	list, err := reader.ListEpisodes(ctx, scope, model.Window{}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, list.TotalCount)
	require.Len(t, list.Episodes, 1)
	assert.Equal(t, "cl_mine", list.Episodes[0].ClusterID)
}

func TestListClustersForProject(t *testing.T) {
	ctx := context.Background()
	scope := model.Scope{TenantID: "t1", ProjectKey: "alpha"}
	graph := store.NewMemoryGraph()
	putCluster(t, graph, "cl_abc", scope, []string{"work-2", "work-1"}, time.Now().UTC())

	reader := NewEpisodeReader(graph, store.NewMemorySignalStore(), nil, searchConfig(), testLogger())

	rows, err := reader.ListClustersForProject(ctx, "t1", "alpha", model.Window{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "cl_abc", rows[0].ClusterNodeID)
	assert.Equal(t, model.ClusterKindSemantic, rows[0].ClusterKind)
	assert.Equal(t, []string{"work-1", "work-2"}, rows[0].MemberNodeIDs)
}
