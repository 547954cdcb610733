// Package metrics provides run-level Prometheus metrics for lakeflow.
//
// Every ingest or export process is a short-lived batch job, so metrics are
// collected on a per-run registry and pushed to a Prometheus Pushgateway when
// the run ends, instead of being scraped.
//
// # Basic Usage
//
//	run := metrics.NewRun("ingest", runID)
//	timer := metrics.NewTimer("fetch")
//	ds, err := client.Fetch(ctx, "products")
//	run.ObserveStep(timer)
//	run.RecordsFetched.WithLabelValues("products").Add(float64(ds.Len()))
//	...
//	_ = run.Push(ctx, pushgatewayURL)
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "lakeflow"

// Run holds the collectors of a single pipeline run.
type Run struct {
	pipeline string
	runID    string
	registry *prometheus.Registry

	RecordsFetched  *prometheus.CounterVec   // by dataset
	RecordsLoaded   *prometheus.CounterVec   // by dataset
	RecordsExported *prometheus.CounterVec   // by table
	ObjectsWritten  *prometheus.CounterVec   // by bucket
	BytesWritten    *prometheus.CounterVec   // by bucket
	TableFailures   *prometheus.CounterVec   // by table
	StepDuration    *prometheus.HistogramVec // by step
	RunSuccess      prometheus.Gauge
	LastCompletion  prometheus.Gauge
}

// NewRun creates the collectors for one run on a fresh registry.
func NewRun(pipeline, runID string) *Run {
	r := &Run{
		pipeline: pipeline,
		runID:    runID,
		registry: prometheus.NewRegistry(),
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Records fetched from the HTTP source",
		}, []string{"dataset"}),
		RecordsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Rows inserted into staging tables",
		}, []string{"dataset"}),
		RecordsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_exported_total",
			Help:      "Rows exported to the curated zone",
		}, []string{"table"}),
		ObjectsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_written_total",
			Help:      "Objects uploaded to the object store",
		}, []string{"bucket"}),
		BytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_bytes_written_total",
			Help:      "Bytes uploaded to the object store",
		}, []string{"bucket"}),
		TableFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_table_failures_total",
			Help:      "Analytic tables that failed to export",
		}, []string{"table"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of pipeline steps",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"}),
		RunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 if the last run completed without a fatal error",
		}),
		LastCompletion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_last_completion_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}

	r.registry.MustRegister(
		r.RecordsFetched,
		r.RecordsLoaded,
		r.RecordsExported,
		r.ObjectsWritten,
		r.BytesWritten,
		r.TableFailures,
		r.StepDuration,
		r.RunSuccess,
		r.LastCompletion,
	)

	return r
}

// ObserveStep records the elapsed time of t under its name.
func (r *Run) ObserveStep(t *Timer) time.Duration {
	d := t.Stop()
	r.StepDuration.WithLabelValues(t.name).Observe(d.Seconds())
	return d
}

// Finish sets the run outcome gauges.
func (r *Run) Finish(success bool) {
	if success {
		r.RunSuccess.Set(1)
	} else {
		r.RunSuccess.Set(0)
	}
	r.LastCompletion.SetToCurrentTime()
}

// Push sends the registry to a Pushgateway. An empty url is a no-op.
func (r *Run) Push(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, namespace+"_"+r.pipeline).
		Gatherer(r.registry).
		Grouping("pipeline", r.pipeline).
		Grouping("run_id", r.runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Timer measures the duration of a named step.
//
// Example:
//
//	timer := metrics.NewTimer("load_products")
//	n, err := loader.Replace(ctx, ds)
//	duration := run.ObserveStep(timer)
type Timer struct {
	start time.Time
	name  string
}

// NewTimer starts a timer
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the step name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
