package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ajitpratap0/lakeflow/internal/export"
	"github.com/ajitpratap0/lakeflow/internal/staging"
)

// ObjectResult describes one object written to a zone
type ObjectResult struct {
	Name    string
	Bucket  string
	Key     string
	Records int
	Bytes   int
}

// IngestReport is the outcome of an ingest run
type IngestReport struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Objects  []ObjectResult
	Loads    []staging.Result
	Err      error
}

// RowsLoaded returns the number of rows inserted across staging tables
func (r *IngestReport) RowsLoaded() int {
	n := 0
	for _, l := range r.Loads {
		n += l.Rows
	}
	return n
}

// WriteSummary prints a human-readable summary to w
func (r *IngestReport) WriteSummary(w io.Writer) error {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(&b, rule)
	if r.Err != nil {
		fmt.Fprintln(&b, "Ingest FAILED")
	} else {
		fmt.Fprintln(&b, "Ingest complete")
	}
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "run id:   %s\n", r.RunID)
	fmt.Fprintf(&b, "duration: %s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))

	fmt.Fprintln(&b, "\nraw zone:")
	if len(r.Objects) == 0 {
		fmt.Fprintln(&b, "  (nothing written)")
	}
	for _, o := range r.Objects {
		fmt.Fprintf(&b, "  %-10s %6d records  %s/%s\n", o.Name, o.Records, o.Bucket, o.Key)
	}

	fmt.Fprintln(&b, "\nstaging:")
	if len(r.Loads) == 0 {
		fmt.Fprintln(&b, "  (nothing loaded)")
	}
	for _, l := range r.Loads {
		fmt.Fprintf(&b, "  %-14s %6d rows\n", l.Table, l.Rows)
	}

	if r.Err != nil {
		fmt.Fprintf(&b, "\nerror: %v\n", r.Err)
	} else {
		fmt.Fprintln(&b, "\nnext steps:")
		fmt.Fprintln(&b, "  1. dbt run    (build the analytics models)")
		fmt.Fprintln(&b, "  2. dbt test   (validate them)")
		fmt.Fprintln(&b, "  3. lakeflow export")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// ExportReport is the outcome of an export run
type ExportReport struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Summary  *export.Summary
	Err      error
}

// Total returns the number of exported records
func (r *ExportReport) Total() int {
	if r.Summary == nil {
		return 0
	}
	return r.Summary.Total
}

// Degraded reports whether at least one table failed to export
func (r *ExportReport) Degraded() bool {
	return r.Summary != nil && r.Summary.Degraded()
}

// WriteSummary prints a human-readable summary to w
func (r *ExportReport) WriteSummary(w io.Writer) error {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(&b, rule)
	switch {
	case r.Err != nil:
		fmt.Fprintln(&b, "Export FAILED")
	case r.Degraded():
		fmt.Fprintln(&b, "Export complete with failures")
	default:
		fmt.Fprintln(&b, "Export complete")
	}
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "run id:   %s\n", r.RunID)
	fmt.Fprintf(&b, "duration: %s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))

	if r.Summary != nil {
		fmt.Fprintln(&b, "\ncurated zone:")
		for _, res := range r.Summary.Results {
			switch {
			case res.Err != nil:
				fmt.Fprintf(&b, "  %-26s FAILED  %v\n", res.Table, res.Err)
			case res.Records == 0:
				fmt.Fprintf(&b, "  %-26s %6d records  (no data, nothing written)\n", res.Table, 0)
			default:
				fmt.Fprintf(&b, "  %-26s %6d records  %s/%s\n", res.Table, res.Records, r.Summary.Bucket, res.Key)
			}
		}
	}

	fmt.Fprintf(&b, "\n%d total records exported\n", r.Total())
	if r.Err != nil {
		fmt.Fprintf(&b, "error: %v\n", r.Err)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
