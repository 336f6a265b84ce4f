package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "memory", cfg.Graph.Backend)
	assert.Equal(t, "memory", cfg.Vector.Backend)
	assert.Equal(t, 0.35, cfg.Cluster.SimilarityThreshold)
	assert.Equal(t, 8, cfg.Cluster.MaxNeighbors)
	assert.Equal(t, 2000, cfg.Search.PassageCharLimit)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[graph]
backend = "memgraph"
uri = "bolt://memgraph:7687"

[cluster]
similarity_threshold = 0.5

[server]
port = "9090"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memgraph", cfg.Graph.Backend)
	assert.Equal(t, "bolt://memgraph:7687", cfg.Graph.URI)
	assert.Equal(t, 0.5, cfg.Cluster.SimilarityThreshold)
	assert.Equal(t, "9090", cfg.Server.Port)
	// Sections absent from the file keep their defaults.
	assert.Equal(t, "memory", cfg.Vector.Backend)
	assert.Equal(t, 8, cfg.Cluster.MaxNeighbors)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GRAPH_BACKEND", "memgraph")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("PORT", "3000")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "memgraph", cfg.Graph.Backend)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "3000", cfg.Server.Port)
	// Unset vars leave file/default values alone.
	assert.Equal(t, "memory", cfg.Vector.Backend)
}
