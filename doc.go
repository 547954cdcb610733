// Package lakeflow is the data-movement layer of an e-commerce data lake.
//
// It fetches bounded JSON collections (products, users, carts) from an HTTP
// source, stores each collection immutably in the raw zone of an
// S3-compatible object store, loads it into relational staging tables and,
// after an external transformation step has built the analytics schema,
// exports analytic tables as JSON snapshots to the curated zone.
//
// # Zones
//
//	raw-zone      <dataset>/<YYYYMMDD_HHMMSS>.json   immutable source snapshots
//	raw.*         PostgreSQL staging tables           replaced on every ingest
//	analytics.*   PostgreSQL analytic tables          owned by the transform step
//	curated-zone  <table>/<YYYYMMDD_HHMMSS>.json     exported analytic snapshots
//
// # Quick Start
//
//	export POSTGRES_PASSWORD=... MINIO_PASSWORD=...
//	lakeflow ingest
//	dbt run && dbt test
//	lakeflow export
//
// # Packages
//
//   - cmd/lakeflow: the CLI (ingest, export, datasets, version)
//   - internal/pipeline: the ingest and export runs
//   - internal/source: HTTP source client
//   - internal/staging: full-replace staging loader
//   - internal/export: curated exporter and its table catalog
//   - pkg/objectstore: S3 and in-memory object stores
//   - pkg/postgres: single-connection relational gateway
//   - pkg/config, pkg/logger, pkg/errors, pkg/metrics, pkg/observability:
//     configuration, logging, error types, run metrics and tracing
//
// Runs are synchronous and single threaded. Scheduling, retries and the
// transformation engine are external.
package lakeflow
