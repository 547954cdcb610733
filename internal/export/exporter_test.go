package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/json"
	"github.com/ajitpratap0/lakeflow/pkg/models"
	"github.com/ajitpratap0/lakeflow/pkg/objectstore"
	"github.com/ajitpratap0/lakeflow/pkg/testutil"
)

// fakeQuerier answers queries by the analytics table they select from
type fakeQuerier struct {
	rows    map[string][]models.Row
	fail    map[string]error
	queries []string
}

func (f *fakeQuerier) Query(_ context.Context, sql string, _ ...interface{}) ([]models.Row, error) {
	f.queries = append(f.queries, sql)
	for name, err := range f.fail {
		if strings.Contains(sql, "analytics."+name) {
			return nil, err
		}
	}
	for name, rows := range f.rows {
		if strings.Contains(sql, "analytics."+name+"\n") || strings.HasSuffix(sql, "analytics."+name) {
			return rows, nil
		}
	}
	return nil, nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExporter(t *testing.T, q *fakeQuerier, cfg Config) (*Exporter, *objectstore.MemoryStore) {
	t.Helper()
	store := objectstore.NewMemoryStore()
	require.NoError(t, store.EnsureBucket(testutil.TestContext(t), "curated-zone"))
	cfg.Bucket = "curated-zone"
	e := NewExporter(q, store, cfg, testutil.TestLogger(t))
	e.now = func() time.Time { return fixedNow }
	return e, store
}

func productRows() []models.Row {
	cols := []string{"product_id", "product_name", "price"}
	return []models.Row{
		models.NewRow(cols, []interface{}{int32(1), "Backpack", "109.95"}),
		models.NewRow(cols, []interface{}{int32(2), "Shirt", "22.30"}),
	}
}

func TestExportTableWritesObject(t *testing.T) {
	q := &fakeQuerier{rows: map[string][]models.Row{"dim_products": productRows()}}
	e, store := newTestExporter(t, q, Config{})

	n, err := e.ExportTable(testutil.TestContext(t), "dim_products", "SELECT product_id, product_name, price FROM analytics.dim_products")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	obj, ok := store.Object("curated-zone", "dim_products/20240301_120000.json")
	require.True(t, ok)
	assert.Equal(t, models.ContentTypeJSON, obj.ContentType)
	assert.JSONEq(t, `[
		{"product_id":1,"product_name":"Backpack","price":"109.95"},
		{"product_id":2,"product_name":"Shirt","price":"22.30"}
	]`, string(obj.Body))
	assert.Less(t, strings.Index(string(obj.Body), "product_id"), strings.Index(string(obj.Body), "product_name"))
}

func TestExportTableEmptyResult(t *testing.T) {
	q := &fakeQuerier{}
	e, store := newTestExporter(t, q, Config{})

	n, err := e.ExportTable(testutil.TestContext(t), "dim_users", "SELECT * FROM analytics.dim_users")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.Keys("curated-zone"))
}

func TestExportTableUploadFailure(t *testing.T) {
	q := &fakeQuerier{rows: map[string][]models.Row{"dim_products": productRows()}}
	e, store := newTestExporter(t, q, Config{})
	store.FailPut = func(string, string) error { return fmt.Errorf("disk full") }

	n, err := e.ExportTable(testutil.TestContext(t), "dim_products", "SELECT * FROM analytics.dim_products")
	require.Error(t, err)
	assert.Zero(t, n)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExportQuery))
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorageWrite))
}

func TestRunPartialFailureIsIsolated(t *testing.T) {
	q := &fakeQuerier{
		rows: map[string][]models.Row{"dim_products": productRows()},
		fail: map[string]error{"fct_daily_sales": fmt.Errorf(`relation "analytics.fct_daily_sales" does not exist`)},
	}
	e, store := newTestExporter(t, q, Config{})

	summary, err := e.Run(testutil.TestContext(t))
	require.NoError(t, err)

	assert.Len(t, q.queries, 7)
	assert.Equal(t, 2, summary.Total)
	assert.True(t, summary.Degraded())

	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "fct_daily_sales", failed[0].Table)
	assert.True(t, errors.IsType(failed[0].Err, errors.ErrorTypeExportQuery))

	assert.Equal(t, []string{"dim_products/20240301_120000.json"}, store.Keys("curated-zone"))
	obj, _ := store.Object("curated-zone", "dim_products/20240301_120000.json")
	var records []json.RawMessage
	require.NoError(t, json.Unmarshal(obj.Body, &records))
	assert.Len(t, records, 2)
}

func TestRunFailFast(t *testing.T) {
	q := &fakeQuerier{
		rows: map[string][]models.Row{"dim_products": productRows()},
		fail: map[string]error{"dim_users": fmt.Errorf("boom")},
	}
	e, _ := newTestExporter(t, q, Config{Policy: FailFast})

	summary, err := e.Run(testutil.TestContext(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExportQuery))
	assert.Len(t, q.queries, 2)
	assert.Equal(t, 2, summary.Total)
	assert.Len(t, summary.Results, 2)
}

func TestRunCancelled(t *testing.T) {
	e, _ := newTestExporter(t, &fakeQuerier{}, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

func TestRunCleanSummary(t *testing.T) {
	e, _ := newTestExporter(t, &fakeQuerier{}, Config{})
	summary, err := e.Run(testutil.TestContext(t))
	require.NoError(t, err)
	assert.False(t, summary.Degraded())
	assert.Zero(t, summary.Total)
	assert.Len(t, summary.Results, 7)
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())
	assert.Equal(t, []string{
		"dim_products", "dim_users", "dim_user_segments", "fct_carts",
		"fct_daily_sales", "fct_category_performance", "dim_product_rankings",
	}, c.Names())
	assert.Contains(t, c.Tables[4].Query, "ORDER BY sale_date DESC")
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAKEFLOW_TEST_SCHEMA", "analytics")

	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tables:
  - name: dim_products
    query: SELECT product_id FROM ${LAKEFLOW_TEST_SCHEMA}.dim_products
`), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Tables, 1)
	assert.Equal(t, "SELECT product_id FROM analytics.dim_products", c.Tables[0].Query)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`tables:
  - name: ../escape
    query: SELECT 1
`), 0o600))
	_, err = LoadCatalog(bad)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = LoadCatalog(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCatalogValidate(t *testing.T) {
	assert.Error(t, Catalog{}.Validate())
	assert.Error(t, Catalog{Tables: []Table{{Name: "a", Query: "q"}, {Name: "a", Query: "q"}}}.Validate())
	assert.Error(t, Catalog{Tables: []Table{{Name: "a"}}}.Validate())
}

func TestParseErrorPolicy(t *testing.T) {
	p, err := ParseErrorPolicy("fail-fast")
	require.NoError(t, err)
	assert.Equal(t, FailFast, p)
	assert.Equal(t, "fail-fast", p.String())

	p, err = ParseErrorPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ContinueOnError, p)

	_, err = ParseErrorPolicy("sometimes")
	assert.Error(t, err)
}
