package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docmark/internal/api"
	"github.com/dgallion1/docmark/internal/config"
	"github.com/dgallion1/docmark/internal/fetch"
	"github.com/dgallion1/docmark/internal/highlight"
	"github.com/dgallion1/docmark/internal/pipeline"
	"github.com/dgallion1/docmark/internal/sessions"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats := highlight.NewStats(time.Hour)

	// Live sessions.
	store := sessions.NewStore(sessions.Options{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
		Debounce:    cfg.DebounceDelay,
		Highlight: highlight.Options{
			Mode:      cfg.Mode(),
			Emphasis:  cfg.EmphasisDuration,
			AutoFocus: cfg.AutoFocus,
			Stats:     stats,
		},
	}, log)
	go store.Janitor(ctx, time.Minute)

	var fetcher *fetch.Client
	if cfg.FetchEnabled {
		fetcher = fetch.NewClient(fetch.Options{
			Timeout:      cfg.FetchTimeout,
			RPS:          cfg.FetchRPS,
			Burst:        cfg.FetchBurst,
			MaxBytes:     cfg.FetchMaxBytes,
			AllowPrivate: cfg.FetchAllowPrivate,
		}, log)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, stats, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, store, fetcher, stats, log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: session websockets are long lived.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		cancel()
		store.CloseAll()
		if fetcher != nil {
			fetcher.Close()
		}
	}()

	log.Info("starting docmark", "port", cfg.Port, "match_mode", cfg.Mode(), "fetch_enabled", cfg.FetchEnabled)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
