// Package prompush is the Prometheus Pushgateway backend for the metrics
// package.
//
// A scrape endpoint fits daemons; this tool is mostly a batch run that has
// exited before any scraper comes around. Pushing the registry to a
// Pushgateway keeps the last run's counters visible. Collectors are keyed on
// the metric names the metrics package emits, one collector per name, with
// the label sets those names declare.
package prompush

import (
	"fmt"

	"gmdb/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	runCounter   *prometheus.CounterVec // metrics.MetricRuns
	runDuration  *prometheus.SummaryVec // metrics.MetricRunSeconds
	rowCounter   *prometheus.CounterVec // metrics.MetricRows
	faultCounter *prometheus.CounterVec // metrics.MetricColumnFaults
}

// NewBackend constructs a Pushgateway backend. jobName becomes the
// Pushgateway "job" grouping key; empty defaults to "gmdb". gatewayURL is
// the base URL of the Pushgateway and is required.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "gmdb"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),

		runCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.MetricRuns,
				Help: "Finished ingestion runs, partitioned by table and outcome.",
			},
			[]string{"table", "status"},
		),
		runDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.MetricRunSeconds,
				Help:       "Wall-clock ingestion run duration in seconds, partitioned by table and outcome.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"table", "status"},
		),
		rowCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.MetricRows,
				Help: "Row dispositions per table (written, error, duplicate).",
			},
			[]string{"table", "kind"},
		),
		faultCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.MetricColumnFaults,
				Help: "Sentinel substitutions per table and column (missing, out_of_bound).",
			},
			[]string{"table", "column", "fault"},
		),
	}

	for _, c := range []prometheus.Collector{b.runCounter, b.runDuration, b.rowCounter, b.faultCounter} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collectors: %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.MetricRuns:
		if b.runCounter == nil {
			return
		}
		b.runCounter.WithLabelValues(labels["table"], labels["status"]).Add(delta)

	case metrics.MetricRows:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["table"], labels["kind"]).Add(delta)

	case metrics.MetricColumnFaults:
		if b.faultCounter == nil {
			return
		}
		b.faultCounter.WithLabelValues(labels["table"], labels["column"], labels["fault"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.MetricRunSeconds || b.runDuration == nil {
		return
	}
	b.runDuration.WithLabelValues(labels["table"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway. The registry
// accumulates across pushes, so calling Flush after every ingested file (as
// watch mode does) just re-publishes the growing totals.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
