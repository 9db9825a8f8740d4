package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/creatorlens/creatorlens/db"
	"github.com/creatorlens/creatorlens/internal/assembler"
	"github.com/creatorlens/creatorlens/internal/catalog"
	"github.com/creatorlens/creatorlens/internal/chat"
	"github.com/creatorlens/creatorlens/internal/config"
	"github.com/creatorlens/creatorlens/internal/embedding"
	"github.com/creatorlens/creatorlens/internal/observability"
	"github.com/creatorlens/creatorlens/internal/session"
	"github.com/creatorlens/creatorlens/internal/vectorstore"
)

// embedRateLimit throttles embedding calls: 5/sec sustained, burst of 10.
// Provider quotas are per-minute; this keeps bulk indexing under them.
var embedRateLimit = rate.NewLimiter(5, 10)

// Setup builds the full application from configuration. Components that
// need releasing register cleanups; the caller must Close the returned App.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	if cfg.Tracing.Enabled {
		shutdown, err := observability.SetupTracing(ctx, observability.Config{
			AgentHost:   cfg.Tracing.AgentHost,
			Environment: cfg.Tracing.Environment,
			ServiceName: cfg.Tracing.ServiceName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.cleanups = append(a.cleanups, shutdown)
	}

	pool, err := providePool(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Pool = pool
	a.cleanups = append(a.cleanups, func(context.Context) error {
		pool.Close()
		return nil
	})

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Genkit = g

	a.Embedder = provideEmbedder(g, cfg)
	if a.Embedder == nil {
		a.Close(ctx)
		return nil, fmt.Errorf("embedder %q not available for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	a.Provider, err = embedding.NewProvider(a.Embedder, embedRateLimit, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Vectors, err = vectorstore.NewManager(cfg.VectorStoreDir, cfg.EmbedderModel, logger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	a.Catalog = catalog.New(pool, logger)
	a.Sessions = session.New(pool, logger)

	a.Indexer, err = embedding.NewIndexer(a.Catalog, a.Provider, a.Vectors, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Assembler, err = assembler.New(a.Catalog, a.Provider, a.Vectors, cfg.RetrievalTopN, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Agent, err = chat.New(chat.Config{
		Genkit:       g,
		Assembler:    a.Assembler,
		Sessions:     a.Sessions,
		Logger:       logger,
		ModelName:    cfg.FullModelName(),
		HistoryLimit: int(cfg.HistoryLimit),
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("creating chat agent: %w", err)
	}

	logger.Info("application ready",
		"provider", cfg.Provider,
		"model", cfg.FullModelName(),
		"embedder", cfg.EmbedderModel)
	return a, nil
}

// providePool runs migrations and opens the connection pool.
func providePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit
	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
	default: // gemini / googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
	}
	slog.Debug("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName)
	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}
