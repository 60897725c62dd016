package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-backend/internal/config"
	"github.com/sakif/social-backend/internal/telemetry"
)

func TestRun_FlushesTracingWhenStartupFails(t *testing.T) {
	flushed := false
	orig := initTracing
	initTracing = func(context.Context, string, string, string) (telemetry.ShutdownFunc, error) {
		return func(context.Context) error {
			flushed = true
			return nil
		}, nil
	}
	t.Cleanup(func() { initTracing = orig })

	// No identity key or secret: building the token verifier fails.
	cfg := &config.Config{Env: "test", Store: config.StoreMemory, ServiceName: "social-backend-test"}
	err := run(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.Error(t, err)
	assert.ErrorContains(t, err, "creating server")
	assert.True(t, flushed)
}

func TestNewLogger(t *testing.T) {
	prod := newLogger(&config.Config{Env: "production"})
	assert.False(t, prod.Enabled(context.Background(), slog.LevelDebug))

	dev := newLogger(&config.Config{Env: "development"})
	assert.True(t, dev.Enabled(context.Background(), slog.LevelDebug))
}
