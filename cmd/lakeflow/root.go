package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/internal/export"
	"github.com/ajitpratap0/lakeflow/internal/pipeline"
	"github.com/ajitpratap0/lakeflow/internal/source"
	"github.com/ajitpratap0/lakeflow/internal/staging"
	"github.com/ajitpratap0/lakeflow/pkg/config"
	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/logger"
	"github.com/ajitpratap0/lakeflow/pkg/models"
	"github.com/ajitpratap0/lakeflow/pkg/objectstore"
	"github.com/ajitpratap0/lakeflow/pkg/observability"
)

var version = "0.1.0"

// Exit codes
const (
	exitOK       = 0
	exitFatal    = 1
	exitDegraded = 2
)

// exitError carries a process exit code through cobra
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// run executes the CLI and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var exitErr *exitError
	if stderrors.As(err, &exitErr) {
		if exitErr.code != exitDegraded {
			fmt.Fprintf(stderr, "error: %v\n", exitErr.err)
		}
		return exitErr.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitFatal
}

// globalFlags override configuration from the environment
type globalFlags struct {
	logLevel  string
	logFormat string
	timeout   time.Duration
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "lakeflow",
		Short: "lakeflow - e-commerce data lake ingestion and export",
		Long: `lakeflow moves e-commerce data through the lake zones.

  ingest  fetch source datasets into the raw zone and the staging tables
  export  copy analytic tables into the curated zone

Configuration is read from the environment (and a .env file if present).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format (console, json); overrides LOG_FORMAT")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 0, "Abort the run after this long (0 = no limit)")

	root.AddCommand(
		newIngestCommand(flags, stdout),
		newExportCommand(flags, stdout),
		newDatasetsCommand(stdout),
		newVersionCommand(stdout),
	)
	return root
}

// openStore and openDatabase build the backends of a run
var (
	openStore = func(ctx context.Context, cfg config.ObjectStoreConfig, log *zap.Logger) (objectstore.Store, error) {
		store, err := objectstore.NewS3Store(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	openDatabase = pipeline.PostgresScope
)

// env is everything a run needs, built once from validated configuration
type env struct {
	cfg      config.Config
	logger   *zap.Logger
	store    objectstore.Store
	shutdown observability.ShutdownFunc
}

// setup loads and validates configuration before any network call
func setup(ctx context.Context, flags *globalFlags) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, &exitError{code: exitFatal, err: err}
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(flags.logLevel)
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = strings.ToLower(flags.logFormat)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.Logging.Level,
		Encoding: cfg.Logging.Format,
	})
	if err != nil {
		return nil, &exitError{code: exitFatal, err: errors.Wrap(err, errors.ErrorTypeConfig, "invalid logging configuration")}
	}

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:        cfg.Observability.TracingEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return nil, &exitError{code: exitFatal, err: errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")}
	}

	log.Info("connecting to object store", zap.String("endpoint", cfg.ObjectStore.EndpointURL()))
	store, err := openStore(ctx, cfg.ObjectStore, log)
	if err != nil {
		_ = shutdown(ctx)
		return nil, &exitError{code: exitFatal, err: err}
	}

	return &env{cfg: cfg, logger: log, store: store, shutdown: shutdown}, nil
}

func (e *env) close(ctx context.Context) {
	if err := e.shutdown(context.WithoutCancel(ctx)); err != nil {
		e.logger.Warn("failed to flush traces", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func newIngestCommand(flags *globalFlags, stdout io.Writer) *cobra.Command {
	var datasets []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch source datasets into the raw zone and staging tables",
		Long: `Fetch products, users and carts from the source API, write each collection
to the raw zone as <dataset>/<YYYYMMDD_HHMMSS>.json and replace the raw.*
staging tables in PostgreSQL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			ctx, cancel := withTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			src := source.NewClient(e.cfg.Source, e.logger)
			defer src.Close()

			p := pipeline.NewIngest(src, e.store, openDatabase(e.cfg.Postgres, e.logger), pipeline.IngestConfig{
				RawBucket:      e.cfg.ObjectStore.RawBucket,
				CuratedBucket:  e.cfg.ObjectStore.CuratedBucket,
				Datasets:       datasets,
				PushgatewayURL: e.cfg.Observability.PushgatewayURL,
			}, e.logger)

			report, runErr := p.Run(ctx)
			if err := report.WriteSummary(stdout); err != nil {
				e.logger.Warn("failed to write summary", zap.Error(err))
			}
			if runErr != nil {
				return &exitError{code: exitFatal, err: runErr}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Datasets to ingest (default: products,users,carts)")
	return cmd
}

func newExportCommand(flags *globalFlags, stdout io.Writer) *cobra.Command {
	var (
		catalogPath    string
		errorPolicy    string
		failOnDegraded bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export analytic tables to the curated zone",
		Long: `Run the catalog queries against the analytics schema and write every
non-empty result to the curated zone as <table>/<YYYYMMDD_HHMMSS>.json.

A table that fails is reported and skipped; the run still exits 0 unless
--fail-on-degraded is set (exit code 2) or --error-policy=fail-fast is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := export.ParseErrorPolicy(errorPolicy)
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			catalog := export.DefaultCatalog()
			if catalogPath != "" {
				if catalog, err = export.LoadCatalog(catalogPath); err != nil {
					return &exitError{code: exitFatal, err: err}
				}
			}

			e, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			ctx, cancel := withTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			p := pipeline.NewExport(e.store, openDatabase(e.cfg.Postgres, e.logger), pipeline.ExportConfig{
				CuratedBucket:  e.cfg.ObjectStore.CuratedBucket,
				Catalog:        catalog,
				Policy:         policy,
				PushgatewayURL: e.cfg.Observability.PushgatewayURL,
			}, e.logger)

			report, runErr := p.Run(ctx)
			if err := report.WriteSummary(stdout); err != nil {
				e.logger.Warn("failed to write summary", zap.Error(err))
			}
			if runErr != nil {
				return &exitError{code: exitFatal, err: runErr}
			}
			if failOnDegraded && report.Degraded() {
				return &exitError{code: exitDegraded, err: fmt.Errorf("%d tables failed to export", len(report.Summary.Failed()))}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML file replacing the built-in export catalog")
	cmd.Flags().StringVar(&errorPolicy, "error-policy", "continue", "What a failed table does to the run (continue, fail-fast)")
	cmd.Flags().BoolVar(&failOnDegraded, "fail-on-degraded", false, "Exit with code 2 when any table failed to export")
	return cmd
}

func newDatasetsCommand(stdout io.Writer) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List source datasets and exported analytic tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := export.DefaultCatalog()
			if catalogPath != "" {
				var err error
				if catalog, err = export.LoadCatalog(catalogPath); err != nil {
					return &exitError{code: exitFatal, err: err}
				}
			}

			fmt.Fprintln(stdout, "Source datasets:")
			for _, name := range models.Datasets() {
				table, _ := staging.TableFor(name)
				fmt.Fprintf(stdout, "  - %-10s -> %s\n", name, table)
			}
			fmt.Fprintln(stdout, "\nAnalytic tables:")
			for _, name := range catalog.Names() {
				fmt.Fprintf(stdout, "  - %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML file replacing the built-in export catalog")
	return cmd
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "lakeflow v%s\n", version)
			fmt.Fprintf(stdout, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(stdout, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
