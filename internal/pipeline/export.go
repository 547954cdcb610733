package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/internal/export"
	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/logger"
	"github.com/ajitpratap0/lakeflow/pkg/objectstore"
	"github.com/ajitpratap0/lakeflow/pkg/observability"
)

// ExportConfig configures an export run
type ExportConfig struct {
	CuratedBucket  string
	Catalog        export.Catalog
	Policy         export.ErrorPolicy
	PushgatewayURL string
}

// Export copies analytic tables to the curated zone
type Export struct {
	store  objectstore.Store
	scope  Scope
	cfg    ExportConfig
	logger *zap.Logger
}

// NewExport creates an export pipeline. An empty catalog means
// export.DefaultCatalog.
func NewExport(store objectstore.Store, scope Scope, cfg ExportConfig, log *zap.Logger) *Export {
	if log == nil {
		log = logger.Get()
	}
	if len(cfg.Catalog.Tables) == 0 {
		cfg.Catalog = export.DefaultCatalog()
	}
	return &Export{
		store:  store,
		scope:  scope,
		cfg:    cfg,
		logger: log,
	}
}

// Run executes one export. Table failures under export.ContinueOnError
// leave err nil and mark the report degraded.
func (p *Export) Run(ctx context.Context) (*ExportReport, error) {
	ctx, r := newRun(ctx, NameExport, p.logger)
	report := &ExportReport{RunID: r.id, Started: r.started}

	r.logger.Info("starting export",
		zap.Strings("tables", p.cfg.Catalog.Names()),
		zap.String("bucket", p.cfg.CuratedBucket),
		zap.Stringer("policy", p.cfg.Policy))

	err := p.run(ctx, r, report)
	report.Finished = time.Now()
	r.finish(ctx, err == nil, p.cfg.PushgatewayURL)

	if err != nil {
		report.Err = err
		r.logger.Error("export failed",
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Error(err))
		return report, err
	}

	if report.Degraded() {
		r.logger.Warn("export completed with failed tables",
			zap.Int("failed", len(report.Summary.Failed())),
			zap.Int("records", report.Total()))
	} else {
		r.logger.Info("export complete", zap.Int("records", report.Total()))
	}
	return report, nil
}

func (p *Export) run(ctx context.Context, r *run, report *ExportReport) error {
	err := r.step(ctx, "ensure_bucket", func(ctx context.Context, _ *observability.Span) error {
		return p.store.EnsureBucket(ctx, p.cfg.CuratedBucket)
	})
	if err != nil {
		return err
	}

	return r.step(ctx, "export_tables", func(ctx context.Context, span *observability.Span) error {
		return p.scope(ctx, func(db Database) error {
			exporter := export.NewExporter(db, p.store, export.Config{
				Bucket:  p.cfg.CuratedBucket,
				Catalog: p.cfg.Catalog,
				Policy:  p.cfg.Policy,
			}, r.base)

			summary, err := exporter.Run(ctx)
			report.Summary = summary
			if summary != nil {
				for _, res := range summary.Results {
					if res.Err != nil {
						r.metrics.TableFailures.WithLabelValues(res.Table).Inc()
						continue
					}
					r.metrics.RecordsExported.WithLabelValues(res.Table).Add(float64(res.Records))
					if res.Key != "" {
						r.metrics.ObjectsWritten.WithLabelValues(p.cfg.CuratedBucket).Inc()
					}
				}
				span.SetAttribute("records", summary.Total)
			}
			return err
		})
	})
}
