// Package observability provides run tracing for lakeflow
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/lakeflow"

var (
	mu     sync.RWMutex
	tracer trace.Tracer = otel.Tracer(instrumentationName)
)

// GetTracer returns the tracer installed by InitTracing, or the global
// (no-op until configured) tracer.
func GetTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}

func setTracer(t trace.Tracer) {
	mu.Lock()
	tracer = t
	mu.Unlock()
}

// Span wraps a trace span and buffers attributes until End
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan starts a span named operationName
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := GetTracer().Start(ctx, operationName)
	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// RecordError marks the span failed
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End sets buffered attributes and ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.SetAttributes(attribute.Int64("duration_ms", time.Since(s.startTime).Milliseconds()))
	s.span.End()
}

// Trace runs fn inside a span named operation and records its error
func Trace(ctx context.Context, operation string, fn func(ctx context.Context, span *Span) error) error {
	ctx, span := NewSpan(ctx, operation)
	defer span.End()

	err := fn(ctx, span)
	if err != nil {
		span.RecordError(err)
	} else {
		span.span.SetStatus(codes.Ok, "")
	}
	return err
}
