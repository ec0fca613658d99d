package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/david/govmatch/internal/models"
)

func TestBuildCatalogQuery(t *testing.T) {
	sql, args, err := buildCatalogQuery(models.CatalogQuery{
		Kinds: []models.SourceKind{models.KindCounty, models.KindCity},
		Text:  "50%_off",
		Limit: 1000,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	mustContain := []string{
		"FROM opportunities",
		"is_active = $1",
		"source_kind IN ($2,$3)",
		"title ILIKE",
		"commodity_description ILIKE",
		"ORDER BY close_date ASC NULLS LAST, is_continuous DESC, title ASC",
		"LIMIT 200",
	}
	for _, token := range mustContain {
		if !strings.Contains(sql, token) {
			t.Fatalf("catalog query missing %q: %s", token, sql)
		}
	}
	if strings.Contains(sql, "source IN") {
		t.Errorf("no source filter was requested: %s", sql)
	}

	var pattern string
	for _, a := range args {
		if s, ok := a.(string); ok && strings.HasPrefix(s, "%") {
			pattern = s
			break
		}
	}
	if pattern != `%50\%\_off%` {
		t.Errorf("LIKE wildcards in user text must be escaped, got %q", pattern)
	}
}

func TestBuildCatalogQuery_Defaults(t *testing.T) {
	sql, args, err := buildCatalogQuery(models.CatalogQuery{IncludeInactive: true, Sources: []string{"la_county"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, where, ok := strings.Cut(sql, " WHERE ")
	if !ok {
		t.Fatalf("missing WHERE clause: %s", sql)
	}
	if strings.Contains(where, "is_active = $") || strings.Contains(where, "ILIKE") {
		t.Errorf("unexpected filters: %s", where)
	}
	if !strings.Contains(sql, "source IN ($1)") || !strings.Contains(sql, "LIMIT 20") {
		t.Errorf("unexpected statement: %s", sql)
	}
	if len(args) != 1 || args[0] != "la_county" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestBuildUpsert(t *testing.T) {
	sql, args, err := buildUpsert([]models.Opportunity{
		{Source: "la_county", SourceID: "A", Title: "Paving"},
		{Source: "la_county", SourceID: "B", Title: "Striping"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(sql, "ON CONFLICT (source, source_id) DO UPDATE SET") {
		t.Fatalf("missing conflict clause: %s", sql)
	}
	if strings.Contains(sql, "source = EXCLUDED.source,") || strings.Contains(sql, "source_id = EXCLUDED.source_id") {
		t.Errorf("conflict key columns must not be overwritten: %s", sql)
	}
	for _, col := range []string{"title = EXCLUDED.title", "is_active = EXCLUDED.is_active", "updated_at = NOW()"} {
		if !strings.Contains(sql, col) {
			t.Errorf("missing %q in %s", col, sql)
		}
	}
	if len(args) != 2*len(upsertCols) {
		t.Errorf("expected %d args, got %d", 2*len(upsertCols), len(args))
	}
}

// Integration test against a real database; skipped when none is reachable.
func TestStore_ImportCycle(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dbURL, 4)
	if err != nil {
		t.Skipf("Database not reachable, skipping integration test: %v", err)
	}
	defer pool.Close()
	if err := ApplyMigrations(ctx, pool, nil); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	store := NewStore(pool)
	source := "itest_" + uuid.NewString()[:8]
	closeAt := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	mk := func(id, title string) models.Opportunity {
		return models.Opportunity{Source: source, SourceKind: models.KindCounty, SourceID: id, Title: title, CloseDate: &closeAt, IsActive: true}
	}

	err = store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := store.UpsertOpportunities(ctx, []models.Opportunity{mk("A", "Paving"), mk("B", "Striping")}); err != nil {
			return err
		}
		_, err := store.DeactivateMissing(ctx, source, []string{"A", "B"})
		return err
	})
	if err != nil {
		t.Fatalf("first import: %v", err)
	}

	err = store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := store.UpsertOpportunities(ctx, []models.Opportunity{mk("B", "Striping"), mk("C", "Lighting")}); err != nil {
			return err
		}
		n, err := store.DeactivateMissing(ctx, source, []string{"B", "C"})
		if err == nil && n != 1 {
			t.Errorf("expected 1 deactivated, got %d", n)
		}
		return err
	})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}

	got, err := store.QueryOpportunities(ctx, models.CatalogQuery{Sources: []string{source}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected B and C active, got %d rows", len(got))
	}
	for _, o := range got {
		if o.SourceID == "A" {
			t.Error("A should be inactive")
		}
	}

	if _, err := store.GetOpportunity(ctx, uuid.New()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, _ = pool.Exec(ctx, "DELETE FROM opportunities WHERE source = $1", source)
}
