// Package pipeline runs the two lakeflow jobs.
//
// # Ingest
//
// Ingest ensures the zone buckets exist, fetches every dataset from the
// source and writes each one to the raw zone, then connects to PostgreSQL,
// ensures the staging schema and replaces each staging table. All raw
// writes happen before the first staging load, so a database failure never
// loses fetched data.
//
// # Export
//
// Export ensures the curated bucket exists, connects to PostgreSQL and
// exports every catalog table. A failed table is isolated from the others
// unless the run uses export.FailFast.
//
// Both runs are synchronous and single threaded. Each gets a run ID that is
// attached to every log line, span and pushed metric.
package pipeline
