// Package export copies analytic tables into the curated zone as JSON
// snapshots.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/logger"
	"github.com/ajitpratap0/lakeflow/pkg/models"
	"github.com/ajitpratap0/lakeflow/pkg/objectstore"
	"github.com/ajitpratap0/lakeflow/pkg/postgres"
)

// ErrorPolicy decides what a failed table does to the rest of the run
type ErrorPolicy int

const (
	// ContinueOnError records the failure and moves on to the next table
	ContinueOnError ErrorPolicy = iota
	// FailFast stops at the first failed table
	FailFast
)

// ParseErrorPolicy parses "continue" or "fail-fast"
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue", "continue-on-error":
		return ContinueOnError, nil
	case "fail-fast", "failfast":
		return FailFast, nil
	default:
		return ContinueOnError, errors.Newf(errors.ErrorTypeConfig, "unknown error policy %q", s)
	}
}

func (p ErrorPolicy) String() string {
	if p == FailFast {
		return "fail-fast"
	}
	return "continue"
}

// Config configures an Exporter
type Config struct {
	Bucket  string
	Catalog Catalog
	Policy  ErrorPolicy
}

// TableResult is the outcome of exporting one table
type TableResult struct {
	Table    string
	Records  int
	Key      string
	Duration time.Duration
	Err      error
}

// Exporter runs catalog queries and uploads non-empty results
type Exporter struct {
	db     postgres.Querier
	store  objectstore.Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewExporter creates an exporter. An empty catalog means DefaultCatalog.
func NewExporter(db postgres.Querier, store objectstore.Store, cfg Config, log *zap.Logger) *Exporter {
	if log == nil {
		log = logger.Get()
	}
	if len(cfg.Catalog.Tables) == 0 {
		cfg.Catalog = DefaultCatalog()
	}
	return &Exporter{
		db:     db,
		store:  store,
		cfg:    cfg,
		logger: log.With(zap.String("component", "export")),
		now:    time.Now,
	}
}

// ExportTable runs query and uploads the rows under <name>/<timestamp>.json.
// An empty result writes nothing and returns 0.
func (e *Exporter) ExportTable(ctx context.Context, name, query string) (int, error) {
	res := e.exportTable(ctx, Table{Name: name, Query: query})
	return res.Records, res.Err
}

func (e *Exporter) exportTable(ctx context.Context, t Table) TableResult {
	start := time.Now()
	res := TableResult{Table: t.Name}
	log := logger.FromContext(ctx, e.logger).With(zap.String("table", t.Name))

	fail := func(err error, msg string) TableResult {
		res.Err = errors.Wrap(err, errors.ErrorTypeExportQuery, msg).
			WithDetail("table", t.Name)
		res.Duration = time.Since(start)
		return res
	}

	rows, err := e.db.Query(ctx, t.Query)
	if err != nil {
		return fail(err, fmt.Sprintf("could not query %s", t.Name))
	}

	if len(rows) == 0 {
		log.Warn("no data found, nothing exported")
		res.Duration = time.Since(start)
		return res
	}

	body, err := models.EncodeRows(rows)
	if err != nil {
		return fail(err, fmt.Sprintf("could not serialize %s", t.Name))
	}

	key := models.ObjectKey(t.Name, e.now().UTC())
	if err := e.store.PutObject(ctx, e.cfg.Bucket, key, body, models.ContentTypeJSON); err != nil {
		return fail(err, fmt.Sprintf("could not upload %s", t.Name))
	}

	res.Records = len(rows)
	res.Key = key
	res.Duration = time.Since(start)
	log.Info("exported table",
		zap.Int("records", res.Records),
		zap.String("bucket", e.cfg.Bucket),
		zap.String("key", key),
		zap.Duration("duration", res.Duration))
	return res
}

// Run exports every catalog table in order. Under ContinueOnError the
// returned error is always nil and failures are only in the summary; under
// FailFast the first failure ends the run and is returned.
func (e *Exporter) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{Bucket: e.cfg.Bucket}

	for _, t := range e.cfg.Catalog.Tables {
		if err := ctx.Err(); err != nil {
			return summary, errors.Wrap(err, errors.ErrorTypeTimeout, "export cancelled")
		}

		res := e.exportTable(ctx, t)
		summary.add(res)

		if res.Err != nil {
			if e.cfg.Policy == FailFast {
				return summary, res.Err
			}
			logger.FromContext(ctx, e.logger).Warn("could not export table",
				zap.String("table", t.Name),
				zap.Error(res.Err))
		}
	}

	return summary, nil
}

// Summary is the outcome of an export run
type Summary struct {
	Bucket  string
	Results []TableResult
	Total   int
}

func (s *Summary) add(r TableResult) {
	s.Results = append(s.Results, r)
	s.Total += r.Records
}

// Failed returns the results that carry an error
func (s *Summary) Failed() []TableResult {
	var failed []TableResult
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Degraded reports whether any table failed
func (s *Summary) Degraded() bool {
	return len(s.Failed()) > 0
}
