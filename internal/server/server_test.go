package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/brain/internal/brain"
	"github.com/agenthands/brain/internal/config"
	"github.com/agenthands/brain/internal/model"
	"github.com/agenthands/brain/internal/store"
)

type staticEmbedder struct{}

func (staticEmbedder) EmbedBatch(ctx context.Context, embeddingModel string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func testRouter(t *testing.T) (*gin.Engine, *store.MemoryGraph) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	graph := store.NewMemoryGraph()
	vectors := store.NewMemoryVectorIndex()
	profiles := store.NewStaticProfileStore(store.DefaultProfiles("nomic-embed-text"))
	signals := store.NewMemorySignalStore()
	cfg := config.Default()

	scope := model.Scope{TenantID: "t1", ProjectKey: "alpha"}
	now := time.Now().UTC()
	require.NoError(t, graph.UpsertEntity(context.Background(), &model.Entity{
		ID: "work-1", Type: model.EntityWorkItem, Scope: scope,
		Props:     map[string]any{"summary": "Investigate outage"},
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, graph.UpsertEntity(context.Background(), &model.Entity{
		ID: "doc-1", Type: model.EntityDocument, Scope: scope,
		Props:     map[string]any{"title": "Outage doc"},
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, vectors.UpsertEntries(context.Background(), []store.VectorEntry{
		{NodeID: "work-1", ProfileID: store.ProfileWork, TenantID: "t1", ProjectKey: "alpha", Kind: model.ProfileKindWork, Embedding: []float32{1, 0, 0}},
		{NodeID: "doc-1", ProfileID: store.ProfileDoc, TenantID: "t1", ProjectKey: "alpha", Kind: model.ProfileKindDoc, Embedding: []float32{0.9, 0.1, 0}},
	}))

	gateway := brain.NewSearchGateway(profiles, vectors, staticEmbedder{}, log)
	builder := brain.NewClusterBuilder(graph, gateway, profiles, cfg.Cluster, log)
	reader := brain.NewEpisodeReader(graph, signals, nil, cfg.Search, log)
	searcher := brain.NewSearcher(graph, gateway, cfg.Search, log)

	srv := NewServer(searcher, builder, reader, log)
	return srv.SetupRouter(), graph
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearchEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/search", map[string]any{
		"query":  "outage",
		"filter": map[string]any{"tenantId": "t1", "projectKey": "alpha"},
	}, map[string]string{"X-Actor-ID": "u1"})

	require.Equal(t, http.StatusOK, w.Code)
	var result brain.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "work-1", result.Hits[0].NodeID)
	assert.NotEmpty(t, result.Prompt.ContextMarkdown)
}

func TestSearchEndpoint_AuthAndValidation(t *testing.T) {
	r, _ := testRouter(t)

	// No actor header on a secured search.
	w := doJSON(t, r, http.MethodPost, "/v1/search", map[string]any{
		"query":  "outage",
		"filter": map[string]any{"tenantId": "t1"},
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Missing tenant.
	w = doJSON(t, r, http.MethodPost, "/v1/search", map[string]any{
		"query": "outage",
	}, map[string]string{"X-Actor-ID": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unsecured searches skip the actor requirement.
	w = doJSON(t, r, http.MethodPost, "/v1/search", map[string]any{
		"query":  "outage",
		"filter": map[string]any{"tenantId": "t1", "secured": false},
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRebuildAndEpisodeEndpoints(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/clusters/rebuild", map[string]any{
		"tenantId":   "t1",
		"projectKey": "alpha",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result brain.BuildResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.ClustersCreated)
	assert.Equal(t, 2, result.MembersLinked)

	w = doJSON(t, r, http.MethodGet, "/v1/clusters?tenantId=t1&projectKey=alpha", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var clusters struct {
		Clusters []brain.ClusterRow `json:"clusters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &clusters))
	require.Len(t, clusters.Clusters, 1)
	assert.ElementsMatch(t, []string{"work-1", "doc-1"}, clusters.Clusters[0].MemberNodeIDs)

	w = doJSON(t, r, http.MethodGet, "/v1/episodes?tenantId=t1&projectKey=alpha", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list brain.EpisodeList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.TotalCount)

	clusterID := clusters.Clusters[0].ClusterNodeID
	w = doJSON(t, r, http.MethodGet, "/v1/episodes/"+clusterID+"?tenantId=t1&projectKey=alpha", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Foreign tenant sees a scope error, not the episode.
	w = doJSON(t, r, http.MethodGet, "/v1/episodes/"+clusterID+"?tenantId=t2", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/episodes/cl_missing?tenantId=t1", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEpisodesEndpoint_RequiresTenant(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodGet, "/v1/episodes", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/episodes?windowStart=bogus&tenantId=t1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
