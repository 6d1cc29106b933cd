// Package main provides the HTTP server for nutristat.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/nutristat/internal/config"
	"github.com/raphaelgruber/nutristat/internal/dataset"
	"github.com/raphaelgruber/nutristat/internal/metrics"
	"github.com/raphaelgruber/nutristat/internal/server"
	"github.com/raphaelgruber/nutristat/internal/service"
	"github.com/raphaelgruber/nutristat/internal/store"
)

const version = "0.1.0"

func main() {
	// Parse flags
	wipe := flag.Bool("wipe", false, "wipe all stored results on startup")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *wipe {
		cfg.WipeResults = true
	}

	// Setup logger (dual output: stderr text + rotated file JSON)
	logger, closeLog := config.SetupLogger(cfg)
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		_ = closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	logger.Info("starting nutristat-server",
		"version", version,
		"port", cfg.Port,
		"workers", cfg.NumWorkers,
		"backend", cfg.ResultBackend,
	)

	ds, err := dataset.Load(cfg.DatasetPath, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := store.Open(ctx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Error("failed to close result store", "error", err)
		}
	}()

	// Wipe results if requested (via flag or env var)
	if cfg.WipeResults {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := st.Wipe(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("wipe results: %w", err)
		}
		logger.Info("stored results wiped")
	}

	// Resume ids after whatever a previous run left behind
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	firstID, err := service.NextIDAfter(ctx, st)
	cancel()
	if err != nil {
		return err
	}

	jobs := service.NewJobService(dataset.NewProvider(ds), st, service.Options{
		Workers:     cfg.NumWorkers,
		PollTimeout: cfg.PollTimeout,
		FirstID:     firstID,
		Metrics:     metrics.NewCollector(),
		Logger:      logger,
	})
	jobs.Start()
	logger.Info("job service ready", "next_job_id", firstID.String())

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.New(jobs, logger).Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP API available", "url", fmt.Sprintf("http://localhost:%s/", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err, ok := <-serverErr:
		if ok {
			jobs.Shutdown()
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	jobs.Shutdown()

	logger.Info("server stopped")
	return nil
}
