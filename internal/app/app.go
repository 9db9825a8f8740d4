// Package app wires the application together: configuration, logging,
// database, AI providers, retrieval components and the chat agent.
package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorlens/creatorlens/internal/assembler"
	"github.com/creatorlens/creatorlens/internal/catalog"
	"github.com/creatorlens/creatorlens/internal/chat"
	"github.com/creatorlens/creatorlens/internal/config"
	"github.com/creatorlens/creatorlens/internal/embedding"
	"github.com/creatorlens/creatorlens/internal/session"
	"github.com/creatorlens/creatorlens/internal/vectorstore"
)

// App is the assembled application. Construct with Setup, release with
// Close.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Genkit    *genkit.Genkit
	Pool      *pgxpool.Pool
	Embedder  ai.Embedder
	Provider  *embedding.Provider
	Vectors   *vectorstore.Manager
	Catalog   *catalog.Store
	Indexer   *embedding.Indexer
	Assembler *assembler.Assembler
	Sessions  *session.Store
	Agent     *chat.Agent

	closeOnce sync.Once
	cleanups  []func(context.Context) error
}

// Close releases resources in reverse construction order: flush traces,
// then close the database pool. Safe to call more than once.
func (a *App) Close(ctx context.Context) {
	a.closeOnce.Do(func() {
		for i := len(a.cleanups) - 1; i >= 0; i-- {
			if err := a.cleanups[i](ctx); err != nil {
				a.Logger.Warn("cleanup failed", "error", err)
			}
		}
		a.Logger.Debug("application closed")
	})
}
