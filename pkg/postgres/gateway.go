// Package postgres is the relational gateway: one pgx connection per run,
// the staging schema, transactional statement execution and result rows.
package postgres

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/pkg/config"
	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/logger"
	"github.com/ajitpratap0/lakeflow/pkg/models"
)

// Execer runs a statement and returns the number of affected rows
type Execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (int64, error)
}

// Querier returns result rows
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) ([]models.Row, error)
}

// Gateway owns a single connection. It is not safe for concurrent use.
type Gateway struct {
	conn   *pgx.Conn
	logger *zap.Logger
}

// Connect opens one connection described by cfg
func Connect(ctx context.Context, cfg config.PostgresConfig, log *zap.Logger) (*Gateway, error) {
	if log == nil {
		log = logger.Get()
	}
	logger.FromContext(ctx, log).Info("connecting to PostgreSQL",
		zap.String("address", cfg.Address()),
		zap.String("database", cfg.Database))

	return ConnectDSN(ctx, cfg.ConnString(), log)
}

// ConnectDSN opens one connection from a connection string
func ConnectDSN(ctx context.Context, dsn string, log *zap.Logger) (*Gateway, error) {
	if log == nil {
		log = logger.Get()
	}

	pgCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid PostgreSQL connection settings")
	}

	conn, err := pgx.ConnectConfig(ctx, pgCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to PostgreSQL").
			WithDetail("host", pgCfg.Host).
			WithDetail("database", pgCfg.Database)
	}

	return &Gateway{
		conn:   conn,
		logger: log.With(zap.String("component", "postgres")),
	}, nil
}

// WithGateway connects, runs fn and closes the connection on every exit
// path, including a panic inside fn.
func WithGateway(ctx context.Context, cfg config.PostgresConfig, log *zap.Logger, fn func(*Gateway) error) (err error) {
	gw, err := Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := gw.Close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(gw)
}

// Ping verifies the connection with a trivial query
func (g *Gateway) Ping(ctx context.Context) error {
	var one int
	if err := g.conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "validation query failed")
	}
	return nil
}

// Execute runs one statement in its own transaction and commits it
func (g *Gateway) Execute(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	var affected int64
	err := g.InTx(ctx, func(tx Execer) error {
		n, err := tx.Exec(ctx, sql, args...)
		affected = n
		return err
	})
	return affected, err
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise, including when fn panics.
func (g *Gateway) InTx(ctx context.Context, fn func(Execer) error) error {
	err := pgx.BeginFunc(ctx, g.conn, func(tx pgx.Tx) error {
		return fn(txExecer{tx: tx})
	})
	if err == nil {
		return nil
	}
	var lfErr *errors.Error
	if stderrors.As(err, &lfErr) {
		return err
	}
	return queryError(err, "transaction failed")
}

// Query runs sql and returns every row. Values that have no JSON
// representation are converted to strings.
func (g *Gateway) Query(ctx context.Context, sql string, args ...interface{}) ([]models.Row, error) {
	start := time.Now()

	rows, err := g.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, queryError(err, "query failed")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var result []models.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to get row values")
		}
		for i, v := range values {
			values[i] = ConvertValue(v, fields[i].DataTypeOID)
		}
		result = append(result, models.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(err, "failed reading rows")
	}

	g.logger.Debug("query completed",
		zap.Int("rows", len(result)),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// Close closes the connection
func (g *Gateway) Close(ctx context.Context) error {
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close(ctx)
	g.conn = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close PostgreSQL connection")
	}
	g.logger.Debug("PostgreSQL connection closed")
	return nil
}

type txExecer struct {
	tx pgx.Tx
}

func (t txExecer) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, queryError(err, "statement failed")
	}
	return tag.RowsAffected(), nil
}

// queryError wraps err as a query error carrying the server error code
func queryError(err error, msg string) error {
	wrapped := errors.Wrap(err, errors.ErrorTypeQuery, msg)
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		wrapped.WithDetail("sqlstate", pgErr.Code).
			WithDetail("table", pgErr.TableName)
	}
	return wrapped
}

var (
	_ Execer  = txExecer{}
	_ Querier = (*Gateway)(nil)
)
