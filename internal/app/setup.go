package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	chromem "github.com/philippgille/chromem-go"

	"github.com/agnometry/founderchat/internal/config"
	"github.com/agnometry/founderchat/internal/embedding"
	"github.com/agnometry/founderchat/internal/ingest"
	"github.com/agnometry/founderchat/internal/knowledge"
	"github.com/agnometry/founderchat/internal/llm"
	"github.com/agnometry/founderchat/internal/rag"
)

const collectionName = "founder_knowledge"

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	db, err := provideVectorDB(cfg, logger)
	if err != nil {
		return nil, err
	}

	embedder := provideEmbedder(cfg)

	store, err := knowledge.NewStore(db, collectionName, embedder.Func(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge store: %w", err)
	}
	a.Knowledge = store

	// Ingestion failure is survivable: the server still answers, just
	// without grounding context.
	loader := ingest.New(store, logger)
	if err := loader.IngestFile(ctx, cfg.FAQPath); err != nil {
		if !errors.Is(err, ingest.ErrIngestion) {
			return nil, err
		}
		logger.Error("knowledge ingestion failed, continuing with existing index", "error", err)
	}

	a.Composer = rag.NewComposer(store, cfg.TopK, logger)
	a.LLM = llm.New(os.Getenv("GROQ_API_KEY"), cfg.ProviderBaseURL, cfg.ModelName, logger)

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	StartHeartbeat(runCtx, cfg.HeartbeatInterval, logger)

	return a, nil
}

// provideVectorDB opens the vector database, persistent when a path is
// configured and in-memory otherwise.
func provideVectorDB(cfg *config.Config, logger *slog.Logger) (*chromem.DB, error) {
	if cfg.PersistPath == "" {
		logger.Info("using in-memory vector store")
		return chromem.NewDB(), nil
	}

	db, err := chromem.NewPersistentDB(cfg.PersistPath, true)
	if err != nil {
		return nil, fmt.Errorf("opening vector store at %s: %w", cfg.PersistPath, err)
	}
	logger.Info("using persistent vector store", "path", cfg.PersistPath)
	return db, nil
}

// provideEmbedder builds the embedding client. Embeddings go to the OpenAI
// API directly; the completion provider has no embeddings endpoint.
func provideEmbedder(cfg *config.Config) *embedding.Client {
	return embedding.New(os.Getenv("OPENAI_API_KEY"), "", cfg.EmbedderModel)
}
