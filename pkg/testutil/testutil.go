// Package testutil provides testing utilities for lakeflow
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// ObservedLogger returns a logger whose entries at or above level can be
// inspected by the test.
func ObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// TestContext creates a test context with a 30-second timeout that is
// cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
