package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/lakeflow/pkg/config"
	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/models"
	"github.com/ajitpratap0/lakeflow/pkg/testutil"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.SourceConfig{BaseURL: srv.URL, Timeout: timeout}, testutil.TestLogger(t))
	c.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFetchProducts(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"title":"Backpack","price":109.95,"rating":{"rate":3.9,"count":120}},{"id":2,"title":"Shirt"}]`))
	}, time.Second)

	ds, err := c.Fetch(context.Background(), models.DatasetProducts)
	require.NoError(t, err)

	assert.Equal(t, "/products", path)
	assert.Equal(t, models.DatasetProducts, ds.Name)
	require.Equal(t, 2, ds.Len())
	assert.JSONEq(t, `{"id":1,"title":"Backpack","price":109.95,"rating":{"rate":3.9,"count":120}}`, string(ds.Records[0]))
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), ds.FetchedAt)
}

func TestFetchEmptyCollection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(" [] \n"))
	}, time.Second)

	ds, err := c.Fetch(context.Background(), models.DatasetUsers)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
	assert.NotNil(t, ds.Records)
}

func TestFetchSourceUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "object body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			},
		},
		{
			name: "null body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`null`))
			},
		},
		{
			name: "truncated array",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`[{"id":1},`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, time.Second)
			_, err := c.Fetch(context.Background(), models.DatasetCarts)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnavailable), "got %v", err)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := c.Fetch(context.Background(), models.DatasetProducts)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnavailable))
}

func TestFetchUnknownDataset(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, time.Second)

	_, err := c.Fetch(context.Background(), "orders")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.False(t, called)
}

func TestEndpoint(t *testing.T) {
	c := NewClient(config.SourceConfig{BaseURL: "https://fakestoreapi.com", Timeout: time.Second}, nil)
	for _, ds := range models.Datasets() {
		url, err := c.Endpoint(ds)
		require.NoError(t, err)
		assert.Equal(t, "https://fakestoreapi.com/"+ds, url)
	}
}
