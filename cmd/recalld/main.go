package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/driftlock/recall/internal/chat"
	"github.com/driftlock/recall/internal/config"
	"github.com/driftlock/recall/internal/llm"
	"github.com/driftlock/recall/internal/memory"
	"github.com/driftlock/recall/internal/profilestore"
	"github.com/driftlock/recall/internal/server"
	"github.com/driftlock/recall/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Profile store.
	profiles, err := newProfileStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize profile store: %v", err)
	}
	defer profiles.Close()

	// Vector store.
	provider, err := vectorstore.NewProvider(vectorstore.ProviderConfig{
		Backend: cfg.Vector.Backend,
		Pinecone: vectorstore.PineconeConfig{
			APIKey: cfg.Vector.PineconeAPIKey,
			Cloud:  cfg.Vector.PineconeCloud,
			Region: cfg.Vector.PineconeRegion,
		},
		PostgresDSN: cfg.Vector.PostgresDSN,
		ChromemPath: cfg.Vector.ChromemPath,
	})
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}
	vectors := vectorstore.NewManager(provider, vectorstore.ManagerConfig{
		SharedIndex: cfg.Vector.SharedIndex,
		Dimension:   cfg.Vector.Dimension,
	})
	defer vectors.Close()

	// LLM clients.
	clients, err := llm.NewClients(cfg.LLM.Provider,
		llm.OpenAIConfig{
			APIKey:     cfg.LLM.OpenAIAPIKey,
			ChatModel:  cfg.LLM.OpenAIModel,
			EmbedModel: cfg.LLM.OpenAIEmbedModel,
			Dimensions: cfg.Vector.Dimension,
		},
		llm.OllamaConfig{
			BaseURL:    cfg.LLM.OllamaURL,
			ChatModel:  cfg.LLM.OllamaModel,
			EmbedModel: cfg.LLM.OllamaEmbedModel,
		})
	if err != nil {
		log.Fatalf("Failed to initialize LLM clients: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Memory service with enrichment workers.
	mem := memory.NewService(profiles, vectors, clients.Embedder, clients.Generator, memory.Config{
		NumWorkers:      cfg.Memory.NumWorkers,
		QueueSize:       cfg.Memory.QueueSize,
		ShutdownTimeout: time.Duration(cfg.Memory.ShutdownTimeout) * time.Second,
	})

	chatSvc := chat.NewService(mem, clients.Streamer, clients.Generator, cfg.Memory.TopK)

	srv := server.New(cfg, mem, chatSvc)

	mem.Start(ctx)

	addr, err := srv.Start()
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("recall running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	if err := mem.Stop(ctx); err != nil {
		log.Printf("Error stopping memory service: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
}

func newProfileStore(cfg *config.Config) (profilestore.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return profilestore.NewPostgresStore(cfg.Storage.PostgresDSN)
	default:
		if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return profilestore.NewSQLiteStore(cfg.Storage.SQLitePath)
	}
}
