package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAndFromContext(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithContext(context.Background(), logger)

	assert.Equal(t, logger, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	// Must never return nil; callers log unconditionally
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	logger.Info("should not panic")
}

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx, enriched := WithRequestID(context.Background(), logger, "req-123")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	assert.Equal(t, enriched, FromContext(ctx))

	enriched.Info("payment confirmed")
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
}

func TestWithAdminID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx, enriched := WithAdminID(context.Background(), logger, "admin-7")

	assert.Equal(t, "admin-7", GetAdminID(ctx))

	enriched.Info("charge marked paid")
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "admin-7", entries[0].ContextMap()["admin_id"])
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestGetAdminID_Missing(t *testing.T) {
	assert.Empty(t, GetAdminID(context.Background()))
}

func TestEnrichmentStacks(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx, _ := WithRequestID(context.Background(), logger, "req-9")
	ctx, enriched := WithAdminID(ctx, FromContext(ctx), "admin-1")

	enriched.Info("rent recalculated")
	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "admin-1", fields["admin_id"])
}
