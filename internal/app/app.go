// Package app wires the application together: vector store, embedder,
// knowledge ingestion, prompt composition, and the streaming LLM client.
package app

import (
	"context"
	"log/slog"

	"github.com/agnometry/founderchat/internal/config"
	"github.com/agnometry/founderchat/internal/knowledge"
	"github.com/agnometry/founderchat/internal/llm"
	"github.com/agnometry/founderchat/internal/rag"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Knowledge *knowledge.Store
	Composer  *rag.Composer
	LLM       *llm.Client

	// Lifecycle management
	cancel context.CancelFunc
}

// Close shuts down background work. The vector store needs no teardown:
// persistence is write-through and the in-memory index dies with the
// process.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}
