package db

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/david/govmatch/internal/models"
)

// MemoryStore is an in-process catalog with the same semantics as Store. It backs
// `catalogctl` runs without a database and the package tests of its callers.
type MemoryStore struct {
	mu   sync.RWMutex
	opps map[memKey]models.Opportunity
	runs []models.ImportRun
	now  func() time.Time

	// txMu serializes WithinTx callers so a rollback never discards another writer's work.
	txMu sync.Mutex
}

type memKey struct{ source, sourceID string }

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{opps: make(map[memKey]models.Opportunity), now: time.Now}
}

type memTxKey struct{}

// WithinTx runs fn against the store and restores the previous contents if fn fails.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := make(map[memKey]models.Opportunity, len(m.opps))
	for k, v := range m.opps {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.opps = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemoryStore) QueryOpportunities(ctx context.Context, q models.CatalogQuery) ([]models.Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	if limit > maxCatalogLimit {
		limit = maxCatalogLimit
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))

	m.mu.RLock()
	var out []models.Opportunity
	for _, o := range m.opps {
		if !q.IncludeInactive && !o.IsActive {
			continue
		}
		if len(q.Kinds) > 0 && !slices.Contains(q.Kinds, o.SourceKind) {
			continue
		}
		if len(q.Sources) > 0 && !slices.Contains(q.Sources, o.Source) {
			continue
		}
		if text != "" && !matchesText(o, text) {
			continue
		}
		out = append(out, cloneOpportunity(o))
	}
	m.mu.RUnlock()

	sortByDeadline(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesText(o models.Opportunity, lowerText string) bool {
	for _, field := range []string{o.Title, o.Description, o.Agency, o.CommodityCode, o.CommodityDescription} {
		if strings.Contains(strings.ToLower(field), lowerText) {
			return true
		}
	}
	return false
}

// sortByDeadline mirrors the SQL ordering: close date ascending with nulls last,
// continuous before unknown, then title.
func sortByDeadline(opps []models.Opportunity) {
	rank := func(o models.Opportunity) int {
		switch {
		case o.CloseDate != nil:
			return 0
		case o.IsContinuous:
			return 1
		}
		return 2
	}
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		ra, rb := rank(a), rank(b)
		if ra != rb {
			return ra < rb
		}
		if ra == 0 && !a.CloseDate.Equal(*b.CloseDate) {
			return a.CloseDate.Before(*b.CloseDate)
		}
		return a.Title < b.Title
	})
}

func (m *MemoryStore) UpsertOpportunities(ctx context.Context, opps []models.Opportunity) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range opps {
		k := memKey{o.Source, o.SourceID}
		o = cloneOpportunity(o)
		o.IsActive = true
		o.UpdatedAt = now
		if existing, ok := m.opps[k]; ok {
			o.ID = existing.ID
			o.CreatedAt = existing.CreatedAt
		} else {
			o.ID = uuid.New()
			o.CreatedAt = now
		}
		m.opps[k] = o
	}
	return len(opps), nil
}

func (m *MemoryStore) DeactivateMissing(ctx context.Context, source string, keep []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}
	now := m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, o := range m.opps {
		if k.source != source || !o.IsActive {
			continue
		}
		if _, ok := keepSet[k.sourceID]; ok {
			continue
		}
		o.IsActive = false
		o.UpdatedAt = now
		m.opps[k] = o
		n++
	}
	return n, nil
}

func (m *MemoryStore) GetOpportunity(_ context.Context, id uuid.UUID) (*models.Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.opps {
		if o.ID == id {
			c := cloneOpportunity(o)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListSources(_ context.Context) ([]models.SourceSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bySource := make(map[string]*models.SourceSummary)
	for k, o := range m.opps {
		sum, ok := bySource[k.source]
		if !ok {
			sum = &models.SourceSummary{Source: k.source, Kind: o.SourceKind}
			bySource[k.source] = sum
		}
		sum.Total++
		if o.IsActive {
			sum.Active++
		}
		if sum.LastImportedAt == nil || o.UpdatedAt.After(*sum.LastImportedAt) {
			t := o.UpdatedAt
			sum.LastImportedAt = &t
		}
	}

	out := make([]models.SourceSummary, 0, len(bySource))
	for _, sum := range bySource {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

func (m *MemoryStore) StartRun(_ context.Context, run models.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *MemoryStore) FinishRun(_ context.Context, run models.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *MemoryStore) ListRuns(_ context.Context, source string, limit int) ([]models.ImportRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ImportRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if source == "" || m.runs[i].Source == source {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

func cloneOpportunity(o models.Opportunity) models.Opportunity {
	o.NAICSCodes = slices.Clone(o.NAICSCodes)
	o.SetAsides = slices.Clone(o.SetAsides)
	return o
}
