// Package main is the entry point for the social backend API.
//
// main stays minimal: read configuration, build the logger, hand everything
// else to run. run returns instead of exiting so its deferred cleanup (the
// trace flush) happens on every path.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/social-backend/internal/config"
	"github.com/sakif/social-backend/internal/server"
	"github.com/sakif/social-backend/internal/telemetry"
)

// initTracing is swapped in tests.
var initTracing = telemetry.Init

func main() {
	// === 1. READ CONFIGURATION ===
	// .env first (if present), then the real environment.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Production gets JSON at info for the log pipeline; everything else gets
	// human-readable text at debug.
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// === 3. TRACING ===
	// A no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
	shutdownTracing, err := initTracing(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Env)
	if err != nil {
		logger.Warn("tracing disabled", slog.String("error", err.Error()))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("flushing traces", slog.String("error", err.Error()))
		}
	}()

	// === 4. CREATE AND START THE SERVER ===
	// Failing to reach the database is fatal.
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	srv, err := server.New(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
