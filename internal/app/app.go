// Package app builds the service object graph shared by the server and catalogctl.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/govmatch/internal/ai"
	"github.com/david/govmatch/internal/config"
	"github.com/david/govmatch/internal/db"
	"github.com/david/govmatch/internal/ingest"
	"github.com/david/govmatch/internal/logger"
	"github.com/david/govmatch/internal/search"
)

type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Store     db.Catalog
	Registry  *ingest.Registry
	Importer  *ingest.Importer
	Scheduler *ingest.Scheduler
	Search    *search.Service

	pool *pgxpool.Pool
}

// New connects the catalog (PostgreSQL, or memory when no database URL is set), loads
// the source registry and builds the importer, scheduler and search service.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Config: cfg, Log: log}

	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL is not set; using the in-memory catalog")
		a.Store = db.NewMemoryStore()
	} else {
		pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if cfg.Database.Migrate {
			if err := db.ApplyMigrations(ctx, pool, log); err != nil {
				pool.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		a.pool = pool
		a.Store = db.NewStore(pool)
	}

	registry, err := ingest.LoadRegistry(cfg.Sources.Registry)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load source registry: %w", err)
	}
	a.Registry = registry
	a.Importer = ingest.NewImporter(a.Store, registry, ingest.WithImporterLogger(log.With("component", "importer")))
	a.Scheduler = ingest.NewScheduler(a.Importer, cfg.Scheduler.Interval, cfg.Scheduler.Parallelism, log.With("component", "scheduler"))

	capability, err := ai.NewCapability(ai.Config{
		Provider:  cfg.Search.Provider,
		Model:     cfg.Search.Model,
		APIKey:    cfg.Search.APIKey,
		BaseURL:   cfg.Search.BaseURL,
		Timeout:   cfg.Search.Timeout,
		MaxTokens: cfg.Search.MaxTokens,
		CacheTTL:  cfg.Search.CacheTTL,
	}, log.With("component", "capability"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build search capability: %w", err)
	}
	if capability == nil {
		log.Info("Web search fallback disabled")
	}

	a.Search = search.NewService(a.Store, capability,
		search.WithConfig(search.Config{
			ResultLimit: cfg.Search.ResultLimit,
			WebTimeout:  cfg.Search.Timeout,
			Weights:     search.Weights(cfg.Scoring),
		}),
		search.WithLogger(log.With("component", "search")))

	log.Info("Service ready",
		"catalog", fmt.Sprintf("%T", a.Store),
		"sources", len(registry.Sources),
		"search_provider", cfg.Search.Provider)
	return a, nil
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
