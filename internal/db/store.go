package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/govmatch/internal/models"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

const (
	defaultCatalogLimit = 20
	maxCatalogLimit     = 200
	upsertChunkSize     = 500
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is what pgxpool.Pool and pgx.Tx have in common.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// Store is the PostgreSQL catalog.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// WithinTx runs fn in one transaction. Store calls made with the context fn receives
// join that transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// selectCols is the column list every opportunity query reads, in scanOpportunity order.
var selectCols = []string{
	"id", "source", "source_kind", "source_id", "source_id_derived",
	"title", "description", "agency", "bid_type",
	"open_date", "close_date", "is_continuous",
	"commodity_code", "commodity_description", "naics_codes", "set_asides", "estimated_value",
	"contact_name", "contact_phone", "contact_email", "source_url",
	"state", "county", "is_active", "created_at", "updated_at",
}

func scanOpportunity(scan func(dest ...any) error) (models.Opportunity, error) {
	var o models.Opportunity
	var kind string
	err := scan(
		&o.ID, &o.Source, &kind, &o.SourceID, &o.SourceIDDerived,
		&o.Title, &o.Description, &o.Agency, &o.BidType,
		&o.OpenDate, &o.CloseDate, &o.IsContinuous,
		&o.CommodityCode, &o.CommodityDescription, &o.NAICSCodes, &o.SetAsides, &o.EstimatedValue,
		&o.ContactName, &o.ContactPhone, &o.ContactEmail, &o.SourceURL,
		&o.State, &o.County, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.SourceKind = models.SourceKind(kind)
	return o, nil
}

// searchableCols are matched by CatalogQuery.Text.
var searchableCols = []string{"title", "description", "agency", "commodity_code", "commodity_description"}

// buildCatalogQuery turns a CatalogQuery into SQL. Kept separate from the I/O so the
// generated statement can be checked without a database.
func buildCatalogQuery(q models.CatalogQuery) (string, []any, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	if limit > maxCatalogLimit {
		limit = maxCatalogLimit
	}

	b := psql.Select(selectCols...).From("opportunities")
	if !q.IncludeInactive {
		b = b.Where(sq.Eq{"is_active": true})
	}
	if len(q.Kinds) > 0 {
		kinds := make([]string, len(q.Kinds))
		for i, k := range q.Kinds {
			kinds[i] = string(k)
		}
		b = b.Where(sq.Eq{"source_kind": kinds})
	}
	if len(q.Sources) > 0 {
		b = b.Where(sq.Eq{"source": q.Sources})
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + escapeLike(text) + "%"
		or := sq.Or{}
		for _, col := range searchableCols {
			or = append(or, sq.ILike{col: pattern})
		}
		b = b.Where(or)
	}

	// Dated listings first, soonest closing first; then continuous; unknown deadlines last.
	b = b.OrderBy("close_date ASC NULLS LAST", "is_continuous DESC", "title ASC").Limit(uint64(limit))
	return b.ToSql()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// QueryOpportunities runs a catalog lookup.
func (s *Store) QueryOpportunities(ctx context.Context, q models.CatalogQuery) ([]models.Opportunity, error) {
	sql, args, err := buildCatalogQuery(q)
	if err != nil {
		return nil, fmt.Errorf("build catalog query: %w", err)
	}

	rows, err := s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// upsertCols are written on insert and overwritten on conflict.
var upsertCols = []string{
	"source", "source_kind", "source_id", "source_id_derived",
	"title", "description", "agency", "bid_type",
	"open_date", "close_date", "is_continuous",
	"commodity_code", "commodity_description", "naics_codes", "set_asides", "estimated_value",
	"contact_name", "contact_phone", "contact_email", "source_url",
	"state", "county", "is_active",
}

func buildUpsert(opps []models.Opportunity) (string, []any, error) {
	b := psql.Insert("opportunities").Columns(upsertCols...)
	for _, o := range opps {
		b = b.Values(
			o.Source, string(o.SourceKind), o.SourceID, o.SourceIDDerived,
			o.Title, o.Description, o.Agency, o.BidType,
			o.OpenDate, o.CloseDate, o.IsContinuous,
			o.CommodityCode, o.CommodityDescription, nonNil(o.NAICSCodes), nonNil(o.SetAsides), o.EstimatedValue,
			o.ContactName, o.ContactPhone, o.ContactEmail, o.SourceURL,
			o.State, o.County, true,
		)
	}

	set := make([]string, 0, len(upsertCols))
	for _, col := range upsertCols {
		if col == "source" || col == "source_id" {
			continue
		}
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	set = append(set, "updated_at = NOW()")
	b = b.Suffix("ON CONFLICT (source, source_id) DO UPDATE SET " + strings.Join(set, ", "))
	return b.ToSql()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// UpsertOpportunities inserts or overwrites records keyed by (source, source_id). Rows
// are written in chunks to stay under the bind-parameter limit; run it inside WithinTx
// to make the whole batch atomic.
func (s *Store) UpsertOpportunities(ctx context.Context, opps []models.Opportunity) (int, error) {
	total := 0
	for start := 0; start < len(opps); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(opps))
		sql, args, err := buildUpsert(opps[start:end])
		if err != nil {
			return total, fmt.Errorf("build upsert: %w", err)
		}
		tag, err := s.q(ctx).Exec(ctx, sql, args...)
		if err != nil {
			return total, fmt.Errorf("upsert opportunities: %w", err)
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

// DeactivateMissing marks active records of source whose source_id is not in keep.
func (s *Store) DeactivateMissing(ctx context.Context, source string, keep []string) (int, error) {
	b := psql.Update("opportunities").
		Set("is_active", false).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"source": source, "is_active": true})
	if len(keep) > 0 {
		b = b.Where("NOT (source_id = ANY(?))", keep)
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build deactivate: %w", err)
	}
	tag, err := s.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate missing: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetOpportunity loads one record by id, active or not.
func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	sql, args, err := psql.Select(selectCols...).From("opportunities").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	o, err := scanOpportunity(s.q(ctx).QueryRow(ctx, sql, args...).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return &o, nil
}

// ListSources summarizes the catalog per source.
func (s *Store) ListSources(ctx context.Context) ([]models.SourceSummary, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT source,
		       MAX(source_kind),
		       COUNT(*) FILTER (WHERE is_active),
		       COUNT(*),
		       MAX(updated_at)
		FROM opportunities
		GROUP BY source
		ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []models.SourceSummary
	for rows.Next() {
		var (
			sum  models.SourceSummary
			kind string
			last time.Time
		)
		if err := rows.Scan(&sum.Source, &kind, &sum.Active, &sum.Total, &last); err != nil {
			return nil, fmt.Errorf("scan source summary: %w", err)
		}
		sum.Kind = models.SourceKind(kind)
		sum.LastImportedAt = &last
		out = append(out, sum)
	}
	return out, rows.Err()
}

// StartRun records an import run as running.
func (s *Store) StartRun(ctx context.Context, run models.ImportRun) error {
	sql, args, err := psql.Insert("ingest_runs").
		Columns("run_id", "source", "trigger", "status", "rows_read", "rows_dropped", "derived_ids", "started_at").
		Values(run.ID, run.Source, run.Trigger, run.Status, run.RowsRead, run.RowsDropped, run.DerivedIDs, run.StartedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, sql, args...)
	return err
}

// FinishRun stores the outcome of a run started with StartRun.
func (s *Store) FinishRun(ctx context.Context, run models.ImportRun) error {
	sql, args, err := psql.Update("ingest_runs").
		SetMap(map[string]any{
			"status":       run.Status,
			"imported":     run.Imported,
			"deactivated":  run.Deactivated,
			"rows_read":    run.RowsRead,
			"rows_dropped": run.RowsDropped,
			"derived_ids":  run.DerivedIDs,
			"error":        run.Error,
			"finished_at":  run.FinishedAt,
		}).
		Where(sq.Eq{"run_id": run.ID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, sql, args...)
	return err
}

// ListRuns returns the most recent runs, newest first, optionally for one source.
func (s *Store) ListRuns(ctx context.Context, source string, limit int) ([]models.ImportRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	b := psql.Select("run_id", "source", "trigger", "status", "rows_read", "rows_dropped",
		"imported", "deactivated", "derived_ids", "error", "started_at", "finished_at").
		From("ingest_runs").
		OrderBy("started_at DESC").
		Limit(uint64(limit))
	if source != "" {
		b = b.Where(sq.Eq{"source": source})
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ImportRun
	for rows.Next() {
		var r models.ImportRun
		if err := rows.Scan(&r.ID, &r.Source, &r.Trigger, &r.Status, &r.RowsRead, &r.RowsDropped,
			&r.Imported, &r.Deactivated, &r.DerivedIDs, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
