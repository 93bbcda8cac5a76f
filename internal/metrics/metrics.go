// Package metrics records operational counters and timings for ingestion
// runs without binding the pipeline to one metrics system.
//
// The shape mirrors the store package: a narrow Backend interface, concrete
// systems (Prometheus Pushgateway, DogStatsD) isolated in subpackages, and a
// process-wide backend that defaults to a no-op so instrumentation calls are
// always safe. The helpers below are the only emission points; they fix the
// metric names and label sets, so backends can map them without guessing.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Metric names emitted by the helpers. Backends key their collectors on
// these.
const (
	// MetricRuns counts finished ingestion runs. Labels: table, status.
	MetricRuns = "gmdb_runs_total"
	// MetricRunSeconds observes wall-clock run duration. Labels: table,
	// status.
	MetricRunSeconds = "gmdb_run_duration_seconds"
	// MetricRows counts row dispositions. Labels: table, kind.
	MetricRows = "gmdb_rows_total"
	// MetricColumnFaults counts sentinel substitutions per column. Labels:
	// table, column, fault.
	MetricColumnFaults = "gmdb_column_faults_total"
)

// Row disposition kinds for MetricRows. They mirror the run result fields.
const (
	RowWritten   = "written"
	RowError     = "error"
	RowDuplicate = "duplicate"
)

// Column fault kinds for MetricColumnFaults.
const (
	FaultMissing    = "missing"
	FaultOutOfBound = "out_of_bound"
)

// Backend is the minimal interface a metrics system implements.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it (e.g.
	// Pushgateway). Safe to call repeatedly; long-lived processes flush
	// after every batch of work.
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// ObserveRun records one finished ingestion run: a completion count and the
// wall-clock duration, labeled by destination table and outcome. Failed runs
// are recorded too; the status label separates them.
func ObserveRun(table string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	lbls := Labels{
		"table":  table,
		"status": status,
	}
	backend.IncCounter(MetricRuns, 1, lbls)
	backend.ObserveHistogram(MetricRunSeconds, d.Seconds(), lbls)
}

// CountRows adds n rows of the given disposition (RowWritten, RowError,
// RowDuplicate) to the table's row counter. Zero and negative deltas are
// dropped.
func CountRows(table, kind string, n int64) {
	if n <= 0 {
		return
	}
	backend.IncCounter(MetricRows, float64(n), Labels{
		"table": table,
		"kind":  kind,
	})
}

// CountColumnFaults adds n sentinel substitutions of the given fault kind
// (FaultMissing, FaultOutOfBound) to the column's fault counter. A drifting
// flatfile export announces itself here long before anyone reads the data.
func CountColumnFaults(table, column, fault string, n int64) {
	if n <= 0 {
		return
	}
	backend.IncCounter(MetricColumnFaults, float64(n), Labels{
		"table":  table,
		"column": column,
		"fault":  fault,
	})
}
