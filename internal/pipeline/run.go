package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/pkg/logger"
	"github.com/ajitpratap0/lakeflow/pkg/metrics"
	"github.com/ajitpratap0/lakeflow/pkg/observability"
)

// Pipeline names, used in logs, spans and metric groupings
const (
	NameIngest = "ingest"
	NameExport = "export"
)

// run carries the per-run state shared by both pipelines
type run struct {
	id      string
	name    string
	started time.Time
	// base is handed to components, which add the context fields themselves
	base    *zap.Logger
	logger  *zap.Logger
	metrics *metrics.Run
}

func newRun(ctx context.Context, name string, base *zap.Logger) (context.Context, *run) {
	id := uuid.NewString()
	ctx = logger.WithRunID(ctx, id, name)
	return ctx, &run{
		id:      id,
		name:    name,
		started: time.Now(),
		base:    base,
		logger:  logger.FromContext(ctx, base),
		metrics: metrics.NewRun(name, id),
	}
}

// step runs fn inside a span and records its duration
func (r *run) step(ctx context.Context, name string, fn func(ctx context.Context, span *observability.Span) error) error {
	timer := metrics.NewTimer(name)
	err := observability.Trace(ctx, r.name+"."+name, func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("run_id", r.id)
		return fn(ctx, span)
	})
	d := r.metrics.ObserveStep(timer)
	r.logger.Debug("step finished", zap.String("step", name), zap.Duration("duration", d), zap.Error(err))
	return err
}

// finish records the outcome and pushes metrics when a gateway is configured.
// A failed push is logged and never fails the run.
func (r *run) finish(ctx context.Context, success bool, pushgatewayURL string) {
	r.metrics.Finish(success)
	if pushgatewayURL == "" {
		return
	}
	if err := r.metrics.Push(context.WithoutCancel(ctx), pushgatewayURL); err != nil {
		r.logger.Warn("failed to push metrics", zap.String("url", pushgatewayURL), zap.Error(err))
	}
}
