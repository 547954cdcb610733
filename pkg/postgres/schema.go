package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/pkg/errors"
)

// StagingSchema is the schema holding the mirrored source tables
const StagingSchema = "raw"

// stagingDDL creates the staging schema. Every statement is idempotent.
var stagingDDL = []string{
	`CREATE SCHEMA IF NOT EXISTS raw`,
	`CREATE TABLE IF NOT EXISTS raw.products (
		id INTEGER PRIMARY KEY,
		title TEXT,
		price NUMERIC,
		description TEXT,
		category TEXT,
		image TEXT,
		rating JSONB,
		loaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS raw.users (
		id INTEGER PRIMARY KEY,
		email TEXT,
		username TEXT,
		password TEXT,
		name JSONB,
		address JSONB,
		phone TEXT,
		loaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS raw.carts (
		id INTEGER PRIMARY KEY,
		userId INTEGER,
		date TIMESTAMP,
		products JSONB,
		loaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// StagingDDL returns the statements EnsureSchema runs, in order
func StagingDDL() []string {
	return append([]string(nil), stagingDDL...)
}

// EnsureSchema creates the staging schema and tables in one transaction
func (g *Gateway) EnsureSchema(ctx context.Context) error {
	err := g.InTx(ctx, func(tx Execer) error {
		for _, stmt := range stagingDDL {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStagingLoad, "failed to create staging schema")
	}
	g.logger.Info("staging schema ready", zap.String("schema", StagingSchema))
	return nil
}
