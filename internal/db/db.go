package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/govmatch/internal/models"
)

// Connect opens a pool against databaseURL and checks it answers.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing db config: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging db: %w", err)
	}

	return pool, nil
}

// Catalog is everything the service needs from a catalog store. Store and MemoryStore
// both implement it.
type Catalog interface {
	QueryOpportunities(ctx context.Context, q models.CatalogQuery) ([]models.Opportunity, error)
	UpsertOpportunities(ctx context.Context, opps []models.Opportunity) (int, error)
	DeactivateMissing(ctx context.Context, source string, keep []string) (int, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	ListSources(ctx context.Context) ([]models.SourceSummary, error)
	StartRun(ctx context.Context, run models.ImportRun) error
	FinishRun(ctx context.Context, run models.ImportRun) error
	ListRuns(ctx context.Context, source string, limit int) ([]models.ImportRun, error)
	Ping(ctx context.Context) error
}

var (
	_ Catalog = (*Store)(nil)
	_ Catalog = (*MemoryStore)(nil)
)
