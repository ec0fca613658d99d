package ingest

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/david/govmatch/internal/logger"
	"github.com/david/govmatch/internal/models"
)

// CatalogWriter is the slice of the catalog store the importer writes through.
type CatalogWriter interface {
	// UpsertOpportunities inserts or overwrites records keyed by (source, source_id).
	UpsertOpportunities(ctx context.Context, opps []models.Opportunity) (int, error)
	// DeactivateMissing marks every active record of source whose source_id is not in
	// keep as inactive and returns how many changed.
	DeactivateMissing(ctx context.Context, source string, keep []string) (int, error)
}

// Transactor is implemented by stores that can run the upsert and the deactivation
// atomically. fn receives a context bound to the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunRecorder is implemented by stores that keep import history.
type RunRecorder interface {
	StartRun(ctx context.Context, run models.ImportRun) error
	FinishRun(ctx context.Context, run models.ImportRun) error
}

// Import triggers recorded on runs.
const (
	TriggerManual   = "manual"
	TriggerFeed     = "feed"
	TriggerSchedule = "schedule"
)

// ImportResult reports one completed import.
type ImportResult struct {
	RunID       uuid.UUID `json:"run_id"`
	Source      string    `json:"source"`
	Imported    int       `json:"imported"`
	Deactivated int       `json:"deactivated"`
	RowsRead    int       `json:"rows_read"`
	RowsDropped int       `json:"rows_dropped"`
	DerivedIDs  int       `json:"derived_ids"`
}

// Importer turns portal exports into catalog records. Imports of the same source are
// serialized; different sources run in parallel.
type Importer struct {
	store    CatalogWriter
	registry *Registry
	log      *logger.Logger
	locks    *sourceLocks
	now      func() time.Time

	fetcherMu sync.Mutex
	fetchers  map[string]Fetcher
	fetcher   Fetcher // overrides per-source fetchers when set
}

type ImporterOption func(*Importer)

func WithImporterLogger(l *logger.Logger) ImporterOption {
	return func(i *Importer) {
		if l != nil {
			i.log = l
		}
	}
}

// WithFetcher makes every feed import use f instead of the one built from the registry.
func WithFetcher(f Fetcher) ImporterOption {
	return func(i *Importer) { i.fetcher = f }
}

func NewImporter(store CatalogWriter, registry *Registry, opts ...ImporterOption) *Importer {
	if registry == nil {
		registry = &Registry{}
	}
	i := &Importer{
		store:    store,
		registry: registry,
		log:      logger.Nop(),
		locks:    newSourceLocks(),
		now:      time.Now,
		fetchers: make(map[string]Fetcher),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Registry exposes the source registry the importer resolves ids against.
func (i *Importer) Registry() *Registry { return i.registry }

// Import reads a delimited payload for sourceID and makes it the authoritative listing
// for that source: mapped rows are upserted and every other active record of the source
// is deactivated. The import either fully applies or fails without deactivating anything.
func (i *Importer) Import(ctx context.Context, sourceID string, payload io.Reader) (*ImportResult, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidImport)
	}
	return i.run(ctx, i.registry.Resolve(sourceID), payload, TriggerManual)
}

// ImportFromFeed downloads the source's registry feed and imports it.
func (i *Importer) ImportFromFeed(ctx context.Context, sourceID string) (*ImportResult, error) {
	src, ok := i.registry.Lookup(strings.TrimSpace(sourceID))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, sourceID)
	}
	return i.importFeed(ctx, src, TriggerFeed)
}

func (i *Importer) importFeed(ctx context.Context, src SourceConfig, trigger string) (*ImportResult, error) {
	if src.FeedURL == "" {
		return nil, fmt.Errorf("%w: source %q has no feed_url", ErrInvalidImport, src.ID)
	}

	doc, err := i.fetcherFor(src).Fetch(ctx, src.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, src.ID, err)
	}
	defer doc.Body.Close()

	i.log.Info("Fetched source feed", "source", src.ID, "url", doc.URL, "content_type", doc.ContentType)
	return i.run(ctx, src, doc.Body, trigger)
}

func (i *Importer) fetcherFor(src SourceConfig) Fetcher {
	if i.fetcher != nil {
		return i.fetcher
	}
	i.fetcherMu.Lock()
	defer i.fetcherMu.Unlock()
	f, ok := i.fetchers[src.ID]
	if !ok {
		f = NewFetcher(src.Fetch, i.log.With("source", src.ID))
		i.fetchers[src.ID] = f
	}
	return f
}

// batch is the mapped, deduplicated content of one payload.
type batch struct {
	opps       []models.Opportunity
	keys       []string
	rowsRead   int
	dropped    int
	untitled   int
	derivedIDs int
}

func (i *Importer) run(ctx context.Context, src SourceConfig, payload io.Reader, trigger string) (*ImportResult, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: payload is required", ErrInvalidImport)
	}
	br := bufio.NewReader(payload)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: payload is empty", ErrInvalidImport)
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}

	log := i.log.With("source", src.ID, "trigger", trigger)

	b, err := i.mapPayload(src, br, log)
	if err != nil {
		return nil, err
	}

	release, err := i.locks.acquire(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	run := models.ImportRun{
		ID:          uuid.New(),
		Source:      src.ID,
		Trigger:     trigger,
		Status:      models.RunRunning,
		RowsRead:    b.rowsRead,
		RowsDropped: b.dropped + b.untitled,
		DerivedIDs:  b.derivedIDs,
		StartedAt:   i.now().UTC(),
	}
	recorder, _ := i.store.(RunRecorder)
	if recorder != nil {
		if err := recorder.StartRun(ctx, run); err != nil {
			log.Warn("Failed to record import run start", "run_id", run.ID, "error", err)
		}
	}

	imported, deactivated, applyErr := i.apply(ctx, src.ID, b)

	finished := i.now().UTC()
	run.FinishedAt = &finished
	run.Imported = imported
	run.Deactivated = deactivated
	run.Status = models.RunCompleted
	if applyErr != nil {
		run.Status = models.RunFailed
		run.Imported, run.Deactivated = 0, 0
		run.Error = applyErr.Error()
	}
	if recorder != nil {
		// The request context may be gone by now; the history row should still close.
		if err := recorder.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("Failed to record import run result", "run_id", run.ID, "error", err)
		}
	}

	if applyErr != nil {
		log.Error("Import failed", "run_id", run.ID, "error", applyErr)
		return nil, applyErr
	}

	log.Info("Import completed",
		"run_id", run.ID,
		"imported", imported,
		"deactivated", deactivated,
		"rows_read", b.rowsRead,
		"rows_dropped", run.RowsDropped,
		"derived_ids", b.derivedIDs,
		"duration", run.Duration())

	return &ImportResult{
		RunID:       run.ID,
		Source:      src.ID,
		Imported:    imported,
		Deactivated: deactivated,
		RowsRead:    b.rowsRead,
		RowsDropped: run.RowsDropped,
		DerivedIDs:  b.derivedIDs,
	}, nil
}

func (i *Importer) mapPayload(src SourceConfig, payload io.Reader, log *logger.Logger) (*batch, error) {
	reader := NewTabularReader(payload,
		WithDelimiter(delimiterFromConfig(src.Delimiter)),
		WithTabularLogger(log))
	mapper := MapperFor(src.SourceFormat())
	mc := src.MapContext()

	b := &batch{}
	index := make(map[string]int)
	for row := range reader.Rows() {
		opp := mapper.Map(row, mc)
		if opp == nil {
			b.untitled++
			continue
		}
		NormalizeOpportunity(opp)
		if opp.SourceID == "" {
			opp.SourceID = contentHashID(opp)
			opp.SourceIDDerived = true
			b.derivedIDs++
		}
		// Later rows win: exports list amendments after the original notice.
		if pos, dup := index[opp.SourceID]; dup {
			b.opps[pos] = *opp
			continue
		}
		index[opp.SourceID] = len(b.opps)
		b.opps = append(b.opps, *opp)
		b.keys = append(b.keys, opp.SourceID)
	}

	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if reader.Header() == nil {
		return nil, fmt.Errorf("%w: payload has no header row", ErrInvalidImport)
	}

	b.rowsRead = reader.RowsRead()
	b.dropped = reader.Dropped()
	if b.untitled > 0 {
		log.Warn("Dropped rows without a title", "count", b.untitled)
	}
	if b.derivedIDs > 0 {
		log.Info("Derived content-hash ids for rows without a source id", "count", b.derivedIDs)
	}
	if b.rowsRead > 0 && len(b.opps) == 0 {
		return nil, fmt.Errorf("%w: %d rows read, none mapped with format %s", ErrNoUsableRows, b.rowsRead, src.SourceFormat())
	}
	return b, nil
}

// apply upserts then deactivates. With a transactional store both steps commit together;
// otherwise deactivation only runs after a successful upsert.
func (i *Importer) apply(ctx context.Context, source string, b *batch) (imported, deactivated int, err error) {
	step := func(ctx context.Context) error {
		n, err := i.store.UpsertOpportunities(ctx, b.opps)
		if err != nil {
			return fmt.Errorf("upsert opportunities: %w", err)
		}
		d, err := i.store.DeactivateMissing(ctx, source, b.keys)
		if err != nil {
			return fmt.Errorf("deactivate missing opportunities: %w", err)
		}
		imported, deactivated = n, d
		return nil
	}

	if tx, ok := i.store.(Transactor); ok {
		err = tx.WithinTx(ctx, step)
	} else {
		err = step(ctx)
	}
	if err != nil {
		return 0, 0, err
	}
	return imported, deactivated, nil
}

// contentHashID keys rows whose export carries no id. Two rows with the same title,
// agency, close date and link are the same listing.
func contentHashID(opp *models.Opportunity) string {
	closeDate := ""
	switch {
	case opp.CloseDate != nil:
		closeDate = opp.CloseDate.UTC().Format(time.RFC3339)
	case opp.IsContinuous:
		closeDate = "continuous"
	}
	parts := []string{
		strings.ToLower(opp.Title),
		strings.ToLower(opp.Agency),
		closeDate,
		strings.ToLower(opp.SourceURL),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "h:" + hex.EncodeToString(sum[:16])
}

// sourceLocks hands out one context-aware mutex per source id.
type sourceLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newSourceLocks() *sourceLocks {
	return &sourceLocks{locks: make(map[string]chan struct{})}
}

func (l *sourceLocks) acquire(ctx context.Context, source string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[source]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[source] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
