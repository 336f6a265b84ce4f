package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/brain/internal/brain"
	"github.com/agenthands/brain/internal/model"
	"github.com/agenthands/brain/internal/store"
)

// Server exposes the brain layer over HTTP. It holds no domain logic;
// every handler validates input, calls one brain operation and maps the
// error to a status code.
type Server struct {
	Searcher *brain.Searcher
	Builder  *brain.ClusterBuilder
	Episodes *brain.EpisodeReader
	Log      *slog.Logger

	rebuildMu sync.Mutex
	rebuilds  map[string]*sync.Mutex
}

func NewServer(searcher *brain.Searcher, builder *brain.ClusterBuilder, episodes *brain.EpisodeReader, log *slog.Logger) *Server {
	return &Server{
		Searcher: searcher,
		Builder:  builder,
		Episodes: episodes,
		Log:      log.With("component", "server"),
		rebuilds: make(map[string]*sync.Mutex),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/v1/search", s.Search)
	r.GET("/v1/episodes", s.ListEpisodes)
	r.GET("/v1/episodes/:id", s.GetEpisode)
	r.GET("/v1/clusters", s.ListClusters)
	r.POST("/v1/clusters/rebuild", s.RebuildClusters)

	return r
}

func (s *Server) Search(c *gin.Context) {
	var req brain.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if actorID := c.GetHeader("X-Actor-ID"); actorID != "" {
		req.Actor = &brain.Actor{ID: actorID}
	}

	result, err := s.Searcher.Search(c.Request.Context(), req)
	if err != nil {
		s.fail(c, "search failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ListEpisodes(c *gin.Context) {
	scope := scopeFromQuery(c)
	if scope.TenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}
	window, err := windowFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offset := intQuery(c, "offset", 0)
	limit := intQuery(c, "limit", 20)

	list, err := s.Episodes.ListEpisodes(c.Request.Context(), scope, window, offset, limit)
	if err != nil {
		s.fail(c, "episode list failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) GetEpisode(c *gin.Context) {
	scope := scopeFromQuery(c)
	if scope.TenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	ep, err := s.Episodes.GetEpisode(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		s.fail(c, "episode fetch failed", err)
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (s *Server) ListClusters(c *gin.Context) {
	scope := scopeFromQuery(c)
	if scope.TenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}
	window, err := windowFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := s.Episodes.ListClustersForProject(c.Request.Context(), scope.TenantID, scope.ProjectKey, window)
	if err != nil {
		s.fail(c, "cluster list failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": rows})
}

type rebuildRequest struct {
	TenantID       string `json:"tenantId"`
	ProjectKey     string `json:"projectKey"`
	WindowStart    string `json:"windowStart,omitempty"`
	WindowEnd      string `json:"windowEnd,omitempty"`
	MaxSeeds       int    `json:"maxSeeds,omitempty"`
	MaxClusterSize int    `json:"maxClusterSize,omitempty"`
}

func (s *Server) RebuildClusters(c *gin.Context) {
	var req rebuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.TenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}
	window, err := parseWindow(req.WindowStart, req.WindowEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// One rebuild at a time per tenant+project; concurrent requests for
	// the same pair queue up rather than race on cluster writes.
	lock := s.rebuildLock(req.TenantID + "|" + req.ProjectKey)
	lock.Lock()
	defer lock.Unlock()

	result, err := s.Builder.Build(c.Request.Context(), brain.BuildRequest{
		TenantID:       req.TenantID,
		ProjectKey:     req.ProjectKey,
		Window:         window,
		MaxSeeds:       req.MaxSeeds,
		MaxClusterSize: req.MaxClusterSize,
	})
	if err != nil {
		s.fail(c, "cluster rebuild failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) rebuildLock(key string) *sync.Mutex {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()
	lock, ok := s.rebuilds[key]
	if !ok {
		lock = &sync.Mutex{}
		s.rebuilds[key] = lock
	}
	return lock
}

func (s *Server) fail(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, brain.ErrMissingTenant):
		status = http.StatusBadRequest
	case errors.Is(err, brain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, store.ErrScopeMismatch):
		status = http.StatusForbidden
	case errors.Is(err, brain.ErrEpisodeNotFound), errors.Is(err, brain.ErrProfileNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.Log.Error(msg, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func scopeFromQuery(c *gin.Context) model.Scope {
	return model.Scope{
		TenantID:   c.Query("tenantId"),
		ProjectKey: c.Query("projectKey"),
	}
}

func windowFromQuery(c *gin.Context) (model.Window, error) {
	return parseWindow(c.Query("windowStart"), c.Query("windowEnd"))
}

func parseWindow(start, end string) (model.Window, error) {
	var w model.Window
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return w, errors.New("windowStart must be RFC3339")
		}
		w.Start = &t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return w, errors.New("windowEnd must be RFC3339")
		}
		w.End = &t
	}
	return w, nil
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
