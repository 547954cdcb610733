// Package staging replaces the contents of the raw.* staging tables with the
// latest fetched datasets.
package staging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/logger"
	"github.com/ajitpratap0/lakeflow/pkg/models"
	"github.com/ajitpratap0/lakeflow/pkg/postgres"
)

// Store runs a function inside one transaction
type Store interface {
	InTx(ctx context.Context, fn func(postgres.Execer) error) error
}

// Result is the outcome of one table replacement
type Result struct {
	Dataset  string
	Table    string
	Rows     int
	Duration time.Duration
}

// Loader performs full replacements, one transaction per table. A failed
// table leaves its previous content untouched; tables loaded before it stay
// committed.
type Loader struct {
	store  Store
	logger *zap.Logger
}

// NewLoader creates a loader writing through store
func NewLoader(store Store, log *zap.Logger) *Loader {
	if log == nil {
		log = logger.Get()
	}
	return &Loader{
		store:  store,
		logger: log.With(zap.String("component", "staging")),
	}
}

// Replace truncates the dataset's table and inserts one row per element,
// committing only if every statement succeeded.
func (l *Loader) Replace(ctx context.Context, ds *models.Dataset) (int, error) {
	if ds == nil {
		return 0, errors.New(errors.ErrorTypeValidation, "nil dataset")
	}
	t, ok := tables[ds.Name]
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeValidation, "no staging table for dataset %q", ds.Name).
			WithDetail("dataset", ds.Name)
	}

	log := logger.FromContext(logger.WithDataset(ctx, ds.Name), l.logger).
		With(zap.String("table", t.QualifiedName()))

	// map every element before touching the table
	rows := make([][]interface{}, 0, ds.Len())
	for i, record := range ds.Records {
		values, err := t.row(record)
		if err != nil {
			return 0, loadError(err, t, fmt.Sprintf("invalid element at index %d", i))
		}
		rows = append(rows, values)
	}

	insert := t.insertSQL()
	err := l.store.InTx(ctx, func(tx postgres.Execer) error {
		if _, err := tx.Exec(ctx, t.truncateSQL()); err != nil {
			return err
		}
		for i, values := range rows {
			if _, err := tx.Exec(ctx, insert, values...); err != nil {
				return fmt.Errorf("insert element %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, loadError(err, t, "failed to replace table")
	}

	log.Info("loaded staging table", zap.Int("records", len(rows)))
	return len(rows), nil
}

// ReplaceAll replaces the tables in load order (products, users, carts),
// skipping datasets not present in datasets and stopping at the first
// failure. Results of the tables committed so far are returned with the
// error.
func (l *Loader) ReplaceAll(ctx context.Context, datasets map[string]*models.Dataset) ([]Result, error) {
	var results []Result
	for _, name := range models.Datasets() {
		ds, ok := datasets[name]
		if !ok {
			continue
		}
		start := time.Now()
		n, err := l.Replace(ctx, ds)
		if err != nil {
			return results, err
		}
		results = append(results, Result{
			Dataset:  name,
			Table:    tables[name].QualifiedName(),
			Rows:     n,
			Duration: time.Since(start),
		})
	}
	return results, nil
}

// TableFor returns the staging table of dataset
func TableFor(dataset string) (string, bool) {
	t, ok := tables[dataset]
	if !ok {
		return "", false
	}
	return t.QualifiedName(), true
}

func loadError(err error, t table, msg string) error {
	return errors.Wrap(err, errors.ErrorTypeStagingLoad, msg).
		WithDetail("table", t.QualifiedName())
}
