package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/govmatch/internal/api"
	"github.com/david/govmatch/internal/app"
	"github.com/david/govmatch/internal/config"
	"github.com/david/govmatch/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "config file (default: $GOVMATCH_CONFIG or ./govmatch.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	lg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("Failed to start", "error", err)
	}
	defer a.Close()

	if cfg.Scheduler.Enabled {
		a.Scheduler.Start(ctx)
		defer a.Scheduler.Stop()
		lg.Info("Feed scheduler started", "interval", cfg.Scheduler.Interval, "sources", len(a.Registry.Scheduled()))
	}

	srv, err := api.NewServer(cfg.Server, a.Store, a.Importer, a.Search, lg.With("component", "api"))
	if err != nil {
		lg.Fatal("Failed to build server", "error", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Echo.Shutdown(shutdownCtx); err != nil {
			lg.Error("Shutdown failed", "error", err)
		}
	}()

	lg.Info("Server starting", "port", cfg.Server.Port)
	if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Error("Server stopped", "error", err)
	}
}
