package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	SamplingRate   float64
	// Writer receives exported spans; defaults to stderr since stdout
	// carries the run summary.
	Writer       io.Writer
	BatchTimeout time.Duration
}

// ShutdownFunc flushes and stops the tracer provider
type ShutdownFunc func(ctx context.Context) error

// InitTracing installs a stdout-exporter tracer provider when enabled.
// The returned function must be called before the process exits.
func InitTracing(config TracingConfig) (ShutdownFunc, error) {
	if !config.Enabled {
		setTracer(otel.Tracer(instrumentationName))
		return func(context.Context) error { return nil }, nil
	}
	return initTracing(config, nil)
}

func initTracing(config TracingConfig, exporter sdktrace.SpanExporter) (ShutdownFunc, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if exporter == nil {
		w := config.Writer
		if w == nil {
			w = os.Stderr
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	}

	var sampler sdktrace.Sampler
	switch {
	case config.SamplingRate <= 0 || config.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	batchTimeout := config.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)

	otel.SetTracerProvider(tp)
	setTracer(tp.Tracer(instrumentationName))

	return tp.Shutdown, nil
}
