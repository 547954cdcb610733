package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/pkg/config"
	"github.com/ajitpratap0/lakeflow/pkg/models"
	"github.com/ajitpratap0/lakeflow/pkg/postgres"
)

// Database is what a run needs from the relational store
type Database interface {
	EnsureSchema(ctx context.Context) error
	InTx(ctx context.Context, fn func(postgres.Execer) error) error
	Query(ctx context.Context, sql string, args ...interface{}) ([]models.Row, error)
}

// Scope acquires a database for the duration of fn and releases it on every
// exit path.
type Scope func(ctx context.Context, fn func(Database) error) error

// PostgresScope opens one PostgreSQL connection per call
func PostgresScope(cfg config.PostgresConfig, log *zap.Logger) Scope {
	return func(ctx context.Context, fn func(Database) error) error {
		return postgres.WithGateway(ctx, cfg, log, func(gw *postgres.Gateway) error {
			return fn(gw)
		})
	}
}
