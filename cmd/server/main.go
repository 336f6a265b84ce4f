package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/agenthands/brain/internal/brain"
	"github.com/agenthands/brain/internal/config"
	"github.com/agenthands/brain/internal/llm"
	"github.com/agenthands/brain/internal/server"
	"github.com/agenthands/brain/internal/store"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Warn("config file not loaded, using defaults", "path", cfgPath, "error", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	ctx := context.Background()

	var graph store.GraphStore
	switch cfg.Graph.Backend {
	case "memgraph":
		mg, err := store.NewMemgraphStore(ctx, cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, log)
		if err != nil {
			log.Error("failed to connect to memgraph", "uri", cfg.Graph.URI, "error", err)
			os.Exit(1)
		}
		defer mg.Close(ctx)
		if err := mg.BuildIndices(ctx); err != nil {
			log.Warn("index setup incomplete", "error", err)
		}
		graph = mg
	default:
		graph = store.NewMemoryGraph()
	}

	var vectors store.VectorIndexStore
	switch cfg.Vector.Backend {
	case "weaviate":
		wv, err := store.NewWeaviateVectorIndex(cfg.Vector.URL, cfg.Vector.APIKey, cfg.Vector.Class, log)
		if err != nil {
			log.Error("failed to connect to weaviate", "url", cfg.Vector.URL, "error", err)
			os.Exit(1)
		}
		vectors = wv
	default:
		vectors = store.NewMemoryVectorIndex()
	}

	llmClient, embedder, err := llm.NewClients(ctx, cfg.LLM)
	if err != nil {
		log.Error("failed to initialize llm clients", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	if embedder == nil {
		log.Error("provider has no embedding support, search needs one", "provider", cfg.LLM.Provider)
		os.Exit(1)
	}

	profiles := store.NewStaticProfileStore(store.DefaultProfiles(cfg.LLM.EmbeddingModel))
	signals := store.NewMemorySignalStore()

	gateway := brain.NewSearchGateway(profiles, vectors, embedder, log)
	builder := brain.NewClusterBuilder(graph, gateway, profiles, cfg.Cluster, log)
	reader := brain.NewEpisodeReader(graph, signals, brain.NewEpisodeSummarizer(llmClient), cfg.Search, log)
	searcher := brain.NewSearcher(graph, gateway, cfg.Search, log)

	srv := server.NewServer(searcher, builder, reader, log)
	r := srv.SetupRouter()

	log.Info("starting server", "port", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
