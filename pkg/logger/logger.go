// Package logger provides structured logging for lakeflow
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// contextKey is the type for context keys
type contextKey string

const (
	// RunIDKey is the context key for the run identifier
	RunIDKey contextKey = "run_id"
	// PipelineKey is the context key for the pipeline name (ingest or export)
	PipelineKey contextKey = "pipeline"
	// DatasetKey is the context key for the dataset or analytic table being processed
	DatasetKey contextKey = "dataset"
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
}

// New creates a new zap logger
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "console"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return logger, nil
}

// Get returns the process-wide fallback logger used when a component is
// constructed without one.
func Get() *zap.Logger {
	once.Do(func() {
		l, err := New(Config{Level: "info", Encoding: "json"})
		if err != nil {
			l = zap.NewNop()
		}
		globalLogger = l
	})
	return globalLogger
}

// WithRunID returns a context carrying the run identifier and pipeline name
func WithRunID(ctx context.Context, runID, pipeline string) context.Context {
	ctx = context.WithValue(ctx, RunIDKey, runID)
	return context.WithValue(ctx, PipelineKey, pipeline)
}

// WithDataset returns a context carrying the dataset or table name
func WithDataset(ctx context.Context, dataset string) context.Context {
	return context.WithValue(ctx, DatasetKey, dataset)
}

// RunID extracts the run identifier from ctx, if any
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(RunIDKey).(string)
	return id
}

// FromContext enriches base with the values stored in ctx
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	logger := base

	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		logger = logger.With(zap.String("run_id", runID))
	}

	if pipeline, ok := ctx.Value(PipelineKey).(string); ok {
		logger = logger.With(zap.String("pipeline", pipeline))
	}

	if dataset, ok := ctx.Value(DatasetKey).(string); ok {
		logger = logger.With(zap.String("dataset", dataset))
	}

	return logger
}
