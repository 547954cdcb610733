package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCounters(t *testing.T) {
	run := NewRun("ingest", "run-1")

	run.RecordsFetched.WithLabelValues("products").Add(20)
	run.RecordsLoaded.WithLabelValues("products").Add(20)
	run.Finish(true)

	assert.Equal(t, float64(20), testutil.ToFloat64(run.RecordsFetched.WithLabelValues("products")))
	assert.Equal(t, float64(1), testutil.ToFloat64(run.RunSuccess))

	run.Finish(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(run.RunSuccess))
}

func TestRunsDoNotShareRegistry(t *testing.T) {
	a := NewRun("export", "a")
	b := NewRun("export", "b")

	a.RecordsExported.WithLabelValues("dim_products").Add(2)

	assert.Equal(t, float64(0), testutil.ToFloat64(b.RecordsExported.WithLabelValues("dim_products")))
}

func TestObserveStep(t *testing.T) {
	run := NewRun("ingest", "run-1")
	timer := NewTimer("fetch_products")

	d := run.ObserveStep(timer)
	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	assert.Equal(t, "fetch_products", timer.Name())
	assert.Equal(t, 1, testutil.CollectAndCount(run.StepDuration))
}

func TestPushEmptyURL(t *testing.T) {
	assert.NoError(t, NewRun("ingest", "x").Push(context.Background(), ""))
}

func TestPushSendsToGateway(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		body = string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	run := NewRun("export", "run-9")
	run.RecordsExported.WithLabelValues("dim_products").Add(2)

	require.NoError(t, run.Push(context.Background(), srv.URL))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.HasPrefix(path, "/metrics/job/lakeflow_export"), path)
	assert.Contains(t, path, "run_id/run-9")
	assert.NotEmpty(t, body)
}

func TestPushGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, NewRun("ingest", "x").Push(context.Background(), srv.URL))
}
