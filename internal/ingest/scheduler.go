package ingest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/david/govmatch/internal/logger"
)

// Scheduler re-imports every scheduled registry feed on a fixed interval.
type Scheduler struct {
	importer    *Importer
	interval    time.Duration
	parallelism int
	log         *logger.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewScheduler(importer *Importer, interval time.Duration, parallelism int, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if parallelism <= 0 {
		parallelism = 2
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{importer: importer, interval: interval, parallelism: parallelism, log: log}
}

// Start runs one pass immediately, then one per interval, until ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-stop:
				cancel()
			case <-runCtx.Done():
			}
		}()

		s.RunOnce(runCtx)
		for {
			select {
			case <-ticker.C:
				s.RunOnce(runCtx)
			case <-runCtx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight pass to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// RunOnce imports every scheduled source, a few at a time. A failing source is logged
// and does not stop the others. It returns the per-source results of the pass.
func (s *Scheduler) RunOnce(ctx context.Context) map[string]error {
	sources := s.importer.Registry().Scheduled()
	if len(sources) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		results = make(map[string]error, len(sources))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, src := range sources {
		g.Go(func() error {
			res, err := s.importer.importFeed(gctx, src, TriggerSchedule)
			mu.Lock()
			results[src.ID] = err
			mu.Unlock()
			if err != nil {
				s.log.Error("Scheduled import failed", "source", src.ID, "error", err)
				return nil
			}
			s.log.Info("Scheduled import done", "source", src.ID, "imported", res.Imported, "deactivated", res.Deactivated)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
