package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/david/govmatch/internal/logger"
)

// CollyFetcher fetches feeds through a colly collector. It honours robots.txt, which some
// state portals enforce on their export endpoints.
type CollyFetcher struct {
	UserAgent       string
	MaxRetries      int
	RequestTimeout  time.Duration
	DomainDelay     time.Duration
	IgnoreRobotsTxt bool
	MaxBodySize     int // bytes, 0 = unlimited

	log *logger.Logger
}

// NewCollyFetcher creates a CollyFetcher from a source's fetch settings.
func NewCollyFetcher(cfg FetchConfig, log *logger.Logger) *CollyFetcher {
	cfg = withFetchDefaults(cfg)
	if log == nil {
		log = logger.Nop()
	}
	return &CollyFetcher{
		UserAgent:      feedUserAgent,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		DomainDelay:    time.Duration(float64(time.Second) / cfg.RateLimitRPS),
		MaxBodySize:    50 * 1024 * 1024,
		log:            log,
	}
}

func (f *CollyFetcher) buildCollector(host string) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.AllowedDomains(host),
		colly.DetectCharset(),
	}

	c := colly.NewCollector(opts...)
	// colly v2 skips robots.txt unless told otherwise.
	c.IgnoreRobotsTxt = f.IgnoreRobotsTxt
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       f.DomainDelay,
	})
	c.SetRequestTimeout(f.RequestTimeout)
	return c
}

type collyOutcome struct {
	doc *FetchedDocument
	err error
}

// Fetch implements the Fetcher interface.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*FetchedDocument, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid feed URL %q", targetURL)
	}

	c := f.buildCollector(parsedURL.Hostname())
	done := make(chan collyOutcome, 1)
	// First outcome wins; colly can report a failed request both to OnError and from Visit.
	send := func(o collyOutcome) {
		select {
		case done <- o:
		default:
		}
	}

	c.OnResponse(func(r *colly.Response) {
		send(collyOutcome{doc: &FetchedDocument{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        io.NopCloser(bytes.NewReader(r.Body)),
			FetchedAt:   time.Now(),
			Headers:     map[string][]string(r.Headers.Clone()),
		}})
	})

	c.OnError(func(r *colly.Response, err error) {
		retries, _ := r.Request.Ctx.GetAny("retries").(int)
		if retries < f.MaxRetries && ctx.Err() == nil {
			r.Request.Ctx.Put("retries", retries+1)
			f.log.Warn("Colly fetch failed, retrying", "url", r.Request.URL.String(), "attempt", retries+1, "error", err)
			time.Sleep(time.Duration(retries+1) * time.Second)
			if rerr := r.Request.Retry(); rerr == nil {
				return
			}
		}
		send(collyOutcome{err: fmt.Errorf("fetch failed after %d retries: %w", retries, err)})
	})

	go func() {
		if err := c.Visit(targetURL); err != nil {
			send(collyOutcome{err: fmt.Errorf("visit failed: %w", err)})
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.doc, out.err
	}
}

// NewFetcher picks the fetcher a source's fetch strategy asks for.
func NewFetcher(cfg FetchConfig, log *logger.Logger) Fetcher {
	if cfg.Strategy == "colly" {
		return NewCollyFetcher(cfg, log)
	}
	return NewHTTPFetcher(cfg, WithFetcherLogger(log))
}
