package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/internal/source"
	"github.com/ajitpratap0/lakeflow/internal/staging"
	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/logger"
	"github.com/ajitpratap0/lakeflow/pkg/models"
	"github.com/ajitpratap0/lakeflow/pkg/objectstore"
	"github.com/ajitpratap0/lakeflow/pkg/observability"
)

// IngestConfig configures an ingest run
type IngestConfig struct {
	RawBucket     string
	CuratedBucket string
	// Datasets to ingest, in order; empty means models.Datasets()
	Datasets       []string
	PushgatewayURL string
}

// Ingest moves source datasets into the raw and staging zones
type Ingest struct {
	source source.Fetcher
	store  objectstore.Store
	scope  Scope
	cfg    IngestConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewIngest creates an ingest pipeline
func NewIngest(src source.Fetcher, store objectstore.Store, scope Scope, cfg IngestConfig, log *zap.Logger) *Ingest {
	if log == nil {
		log = logger.Get()
	}
	if len(cfg.Datasets) == 0 {
		cfg.Datasets = models.Datasets()
	}
	return &Ingest{
		source: src,
		store:  store,
		scope:  scope,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

// Run executes one ingest. The report is returned even when err is set and
// describes everything that completed before the failure.
func (p *Ingest) Run(ctx context.Context) (*IngestReport, error) {
	ctx, r := newRun(ctx, NameIngest, p.logger)
	report := &IngestReport{RunID: r.id, Started: r.started}

	r.logger.Info("starting ingest",
		zap.Strings("datasets", p.cfg.Datasets),
		zap.String("raw_bucket", p.cfg.RawBucket))

	err := p.run(ctx, r, report)
	report.Finished = time.Now()
	r.finish(ctx, err == nil, p.cfg.PushgatewayURL)

	if err != nil {
		report.Err = err
		r.logger.Error("ingest failed",
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Bool("retryable", errors.IsRetryable(err)),
			zap.Error(err))
		return report, err
	}

	r.logger.Info("ingest complete",
		zap.Int("objects", len(report.Objects)),
		zap.Int("rows", report.RowsLoaded()),
		zap.Duration("duration", report.Finished.Sub(report.Started)))
	return report, nil
}

func (p *Ingest) run(ctx context.Context, r *run, report *IngestReport) error {
	for _, name := range p.cfg.Datasets {
		if !models.IsDataset(name) {
			return errors.Newf(errors.ErrorTypeValidation, "unknown dataset %q", name)
		}
	}

	err := r.step(ctx, "ensure_buckets", func(ctx context.Context, _ *observability.Span) error {
		for _, bucket := range []string{p.cfg.RawBucket, p.cfg.CuratedBucket} {
			if err := p.store.EnsureBucket(ctx, bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// raw zone: every dataset is fetched and written before any staging load
	datasets := make(map[string]*models.Dataset, len(p.cfg.Datasets))
	for _, name := range p.cfg.Datasets {
		dctx := logger.WithDataset(ctx, name)
		var ds *models.Dataset
		err := r.step(dctx, "fetch_"+name, func(ctx context.Context, span *observability.Span) error {
			var err error
			ds, err = p.source.Fetch(ctx, name)
			if err != nil {
				return err
			}
			span.SetAttribute("records", ds.Len())
			return nil
		})
		if err != nil {
			return err
		}
		r.metrics.RecordsFetched.WithLabelValues(name).Add(float64(ds.Len()))

		obj, err := p.writeRaw(dctx, r, ds)
		if err != nil {
			return err
		}
		report.Objects = append(report.Objects, obj)
		datasets[name] = ds
	}

	// staging zone
	return r.step(ctx, "load_staging", func(ctx context.Context, _ *observability.Span) error {
		return p.scope(ctx, func(db Database) error {
			if err := db.EnsureSchema(ctx); err != nil {
				return err
			}
			results, err := staging.NewLoader(db, r.base).ReplaceAll(ctx, datasets)
			for _, res := range results {
				r.metrics.RecordsLoaded.WithLabelValues(res.Dataset).Add(float64(res.Rows))
			}
			report.Loads = results
			return err
		})
	})
}

func (p *Ingest) writeRaw(ctx context.Context, r *run, ds *models.Dataset) (ObjectResult, error) {
	obj := ObjectResult{Name: ds.Name, Bucket: p.cfg.RawBucket, Records: ds.Len()}

	err := r.step(ctx, "write_raw_"+ds.Name, func(ctx context.Context, span *observability.Span) error {
		body, err := ds.Encode()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to encode dataset").
				WithDetail("dataset", ds.Name)
		}
		obj.Key = models.ObjectKey(ds.Name, p.now().UTC())
		obj.Bytes = len(body)
		span.SetAttribute("key", obj.Key)

		return p.store.PutObject(ctx, p.cfg.RawBucket, obj.Key, body, models.ContentTypeJSON)
	})
	if err != nil {
		return obj, err
	}

	r.metrics.ObjectsWritten.WithLabelValues(p.cfg.RawBucket).Inc()
	r.metrics.BytesWritten.WithLabelValues(p.cfg.RawBucket).Add(float64(obj.Bytes))
	logger.FromContext(ctx, r.base).Info("wrote raw object",
		zap.String("bucket", obj.Bucket),
		zap.String("key", obj.Key),
		zap.Int("records", obj.Records))
	return obj, nil
}
