package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type GraphConfig struct {
	Backend  string `toml:"backend"` // "memgraph" or "memory"
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type VectorConfig struct {
	Backend string `toml:"backend"` // "weaviate" or "memory"
	URL     string `toml:"url"`
	APIKey  string `toml:"api_key"`
	Class   string `toml:"class"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type ClusterConfig struct {
	MaxNeighbors        int     `toml:"max_neighbors"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	DefaultMaxSeeds     int     `toml:"default_max_seeds"`
	DefaultMaxCluster   int     `toml:"default_max_cluster_size"`
}

type SearchConfig struct {
	PassageCharLimit  int `toml:"passage_char_limit"`
	PassageTotalLimit int `toml:"passage_total_limit"`
	EdgeFetchLimit    int `toml:"edge_fetch_limit"`
	SignalsPerSource  int `toml:"signals_per_source"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type Config struct {
	Graph   GraphConfig   `toml:"graph"`
	Vector  VectorConfig  `toml:"vector"`
	LLM     LLMConfig     `toml:"llm"`
	Cluster ClusterConfig `toml:"cluster"`
	Search  SearchConfig  `toml:"search"`
	Server  ServerConfig  `toml:"server"`
}

func Default() *Config {
	return &Config{
		Graph:  GraphConfig{Backend: "memory", URI: "bolt://localhost:7687"},
		Vector: VectorConfig{Backend: "memory", URL: "http://localhost:8081", Class: "BrainEntry"},
		LLM: LLMConfig{
			Provider:       "ollama",
			Model:          "gpt-oss:latest",
			EmbeddingModel: "nomic-embed-text",
			BaseURL:        "http://localhost:11434",
		},
		Cluster: ClusterConfig{
			MaxNeighbors:        8,
			SimilarityThreshold: 0.35,
			DefaultMaxSeeds:     25,
			DefaultMaxCluster:   5,
		},
		Search: SearchConfig{
			PassageCharLimit:  2000,
			PassageTotalLimit: 30000,
			EdgeFetchLimit:    64,
			SignalsPerSource:  10,
		},
		Server: ServerConfig{Port: "8080"},
	}
}

// Load reads a TOML config over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides file config with environment variables when set.
func (c *Config) ApplyEnv() {
	setEnv(&c.Graph.Backend, "GRAPH_BACKEND")
	setEnv(&c.Graph.URI, "GRAPH_URI")
	setEnv(&c.Graph.User, "GRAPH_USER")
	setEnv(&c.Graph.Password, "GRAPH_PASSWORD")
	setEnv(&c.Vector.Backend, "VECTOR_BACKEND")
	setEnv(&c.Vector.URL, "VECTOR_URL")
	setEnv(&c.Vector.APIKey, "VECTOR_API_KEY")
	setEnv(&c.Vector.Class, "VECTOR_CLASS")
	setEnv(&c.LLM.Provider, "LLM_PROVIDER")
	setEnv(&c.LLM.Model, "LLM_MODEL")
	setEnv(&c.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	setEnv(&c.LLM.APIKey, "LLM_API_KEY")
	setEnv(&c.LLM.BaseURL, "LLM_BASE_URL")
	setEnv(&c.Server.Port, "PORT")
}

func setEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
