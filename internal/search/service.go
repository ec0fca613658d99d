package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/david/govmatch/internal/ai"
	"github.com/david/govmatch/internal/ingest"
	"github.com/david/govmatch/internal/logger"
	"github.com/david/govmatch/internal/models"
)

var (
	// ErrInvalidRequest marks a request rejected before any I/O.
	ErrInvalidRequest = errors.New("invalid search request")
	// ErrUpstream wraps catalog or search-capability failures.
	ErrUpstream = errors.New("search upstream unavailable")

	ErrCatalogUnavailable    = fmt.Errorf("%w: catalog", ErrUpstream)
	ErrCapabilityUnavailable = fmt.Errorf("%w: web search", ErrUpstream)
)

// Search methods reported in responses.
const (
	MethodDatabase = "database"
	MethodWeb      = "web"
	MethodBoth     = "both"
)

// solicitationTitleTerms guard structured web items against generic pages.
var solicitationTitleTerms = []string{"rfp", "grant", "contract", "solicitation", "bid", "funding"}

const maxSnippetLen = 1000

// Catalog is the read side of the catalog store.
type Catalog interface {
	QueryOpportunities(ctx context.Context, q models.CatalogQuery) ([]models.Opportunity, error)
}

type Request struct {
	Query                string                      `json:"query"`
	GeographicPreference models.GeographicPreference `json:"geographicPreference"`
	Location             *models.Location            `json:"location,omitempty"`
	Profile              models.RequesterProfile     `json:"profile"`
	SourceFilter         []string                    `json:"sourceFilter,omitempty"`
	IncludeWeb           bool                        `json:"includeWeb"`
}

type Response struct {
	Opportunities []models.SearchResult `json:"opportunities"`
	SearchMethod  string                `json:"searchMethod"`
	Count         int                   `json:"count"`
}

type Config struct {
	ResultLimit int           // catalog rows per search, at most 20
	WebTimeout  time.Duration // bound on one capability call
	Weights     Weights
}

func DefaultConfig() Config {
	return Config{ResultLimit: 20, WebTimeout: 45 * time.Second, Weights: DefaultWeights()}
}

// Service answers searches from the catalog first and the web second.
type Service struct {
	catalog    Catalog
	capability ai.SearchCapability
	scorer     *Scorer
	config     Config
	log        *logger.Logger
	newID      func() string
}

type Option func(*Service)

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.config = cfg }
}

// NewService wires a catalog and an optional web capability. With a nil capability
// the web fallback is skipped.
func NewService(catalog Catalog, capability ai.SearchCapability, opts ...Option) *Service {
	s := &Service{
		catalog:    catalog,
		capability: capability,
		config:     DefaultConfig(),
		log:        logger.Nop(),
		newID:      func() string { return "web-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.ResultLimit <= 0 || s.config.ResultLimit > 20 {
		s.config.ResultLimit = 20
	}
	if s.config.WebTimeout <= 0 {
		s.config.WebTimeout = 45 * time.Second
	}
	s.scorer = NewScorer(s.config.Weights)
	return s
}

// Search looks the query up in the catalog and, when that finds nothing (or the request
// asks for web results too), in the web capability. Results are scored against the
// requester profile and sorted best first.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	pref := req.GeographicPreference
	if pref == "" {
		pref = req.Profile.GeographicPreference
	}
	pref, ok := models.ParseGeographicPreference(string(pref))
	if !ok {
		return nil, fmt.Errorf("%w: unknown geographicPreference %q", ErrInvalidRequest, req.GeographicPreference)
	}
	loc := req.Location
	if loc == nil {
		loc = req.Profile.Location
	}

	composed := Compose(query, pref, loc)
	filter := composed.Filter
	filter.Sources = req.SourceFilter
	filter.Limit = s.config.ResultLimit

	log := s.log.With("query", query, "preference", pref)

	opps, err := s.catalog.QueryOpportunities(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	results := make([]models.SearchResult, 0, len(opps))
	for _, o := range opps {
		results = append(results, models.ResultFromOpportunity(o))
	}

	method := MethodDatabase
	switch {
	case len(results) == 0 && s.capability != nil:
		log.Info("Catalog miss, falling back to web search", "expanded", composed.Expanded)
		web, err := s.searchWeb(ctx, composed.Expanded, loc)
		if err != nil {
			return nil, err
		}
		results, method = web, MethodWeb

	case req.IncludeWeb && s.capability != nil:
		web, err := s.searchWeb(ctx, composed.Expanded, loc)
		if err != nil {
			// Blending is best effort; the catalog answer stands on its own.
			log.Warn("Web search failed, returning catalog results only", "error", err)
			break
		}
		results, method = blend(results, web), MethodBoth
	}

	s.scorer.Rank(results, req.Profile)
	log.Debug("Search done", "method", method, "count", len(results))

	return &Response{Opportunities: results, SearchMethod: method, Count: len(results)}, nil
}

func (s *Service) searchWeb(ctx context.Context, expanded string, loc *models.Location) ([]models.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.WebTimeout)
	defer cancel()

	res, err := s.capability.Invoke(ctx, webPrompt(expanded, loc), true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	if res == nil {
		return []models.SearchResult{}, nil
	}

	var candidates []WebCandidate
	for _, item := range res.StructuredItems {
		if !titleLooksLikeSolicitation(item.Title) {
			continue
		}
		candidates = append(candidates, WebCandidate{
			Title:          item.Title,
			URL:            item.URL,
			Snippet:        item.Snippet,
			DueDate:        item.DueDate,
			EstimatedValue: item.EstimatedValue,
			Agency:         item.Agency,
		})
	}
	for _, block := range res.TextBlocks {
		found, ok := ExtractJSONCandidates(block)
		if !ok {
			continue
		}
		candidates = append(candidates, found...)
	}

	out := make([]models.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, s.webResult(c))
	}
	return dedupe(out), nil
}

func (s *Service) webResult(c WebCandidate) models.SearchResult {
	r := models.SearchResult{
		ID:           s.newID(),
		Title:        strings.TrimSpace(c.Title),
		Description:  ingest.TruncateText(ingest.HTMLToText(c.Snippet), maxSnippetLen),
		Agency:       strings.TrimSpace(c.Agency),
		Source:       "web",
		SourceURL:    strings.TrimSpace(c.URL),
		FromDatabase: false,
	}
	if c.DueDate != "" {
		if ingest.IsContinuousMarker(c.DueDate) {
			r.IsContinuous = true
		} else {
			r.DueDate = ingest.NormalizeDate(c.DueDate)
		}
	}
	if v := strings.TrimSpace(c.EstimatedValue); v != "" {
		r.EstimatedValue = &v
	}
	return r
}

func titleLooksLikeSolicitation(title string) bool {
	lower := strings.ToLower(title)
	for _, term := range solicitationTitleTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// dedupe drops later results that repeat an earlier URL, then ones that repeat an
// earlier title.
func dedupe(results []models.SearchResult) []models.SearchResult {
	return blend(nil, results)
}

// blend keeps every catalog row and appends the web results that repeat neither a
// catalog row nor an earlier web result by URL or title.
func blend(catalog, web []models.SearchResult) []models.SearchResult {
	seen := resultKeys{url: make(map[string]bool), title: make(map[string]bool)}
	out := make([]models.SearchResult, 0, len(catalog)+len(web))
	for _, r := range catalog {
		seen.add(r)
		out = append(out, r)
	}
	for _, r := range web {
		if seen.has(r) {
			continue
		}
		seen.add(r)
		out = append(out, r)
	}
	return out
}

type resultKeys struct {
	url, title map[string]bool
}

func (k resultKeys) has(r models.SearchResult) bool {
	if u := normalizeURL(r.SourceURL); u != "" && k.url[u] {
		return true
	}
	t := normalizeTitle(r.Title)
	return t != "" && k.title[t]
}

func (k resultKeys) add(r models.SearchResult) {
	if u := normalizeURL(r.SourceURL); u != "" {
		k.url[u] = true
	}
	if t := normalizeTitle(r.Title); t != "" {
		k.title[t] = true
	}
}

func normalizeTitle(t string) string {
	return strings.ToLower(strings.Join(strings.Fields(t), " "))
}

func normalizeURL(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	return strings.TrimRight(u, "/")
}

func webPrompt(expanded string, loc *models.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search the web for open government contracting or grant opportunities matching: %s\n", expanded)
	if loc != nil && (loc.City != "" || loc.County != "" || loc.State != "") {
		fmt.Fprintf(&b, "The business is located in %s.\n", strings.Join(appendNonEmpty(nil, loc.City, countyName(loc), loc.State), ", "))
	}
	b.WriteString("Report each opportunity with the report_web_result tool. If you cannot use tools, answer with a JSON array of objects ")
	b.WriteString(`with the keys "title", "url", "snippet", "due_date", "estimated_value" and "agency". `)
	b.WriteString("Leave due_date and estimated_value empty unless the listing publishes them.")
	return b.String()
}
