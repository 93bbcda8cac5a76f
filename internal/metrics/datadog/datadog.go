// Package datadog is the DogStatsD backend for the metrics package.
//
// The metrics package emits Prometheus-flavored names (gmdb_rows_total);
// Datadog convention is dotted names under a namespace with the unit carried
// as metadata. This backend owns that translation: it maps the generic names
// onto dotted ones, turns labels into "key:value" tags, and sends duration
// metrics as timings. Everything rides DogStatsD's UDP protocol to a local
// or remote agent.
package datadog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gmdb/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or
	// "unix:///path/to/socket". Required.
	Addr string

	// Namespace prefixes all metric names. Empty means "gmdb."; a missing
	// trailing dot is added.
	Namespace string

	// GlobalTags are applied to every metric from this backend, e.g.
	// []string{"env:prod", "service:gmdb"}.
	GlobalTags []string
}

// ddNames maps the generic metric names onto dotted DogStatsD names. The
// namespace is prepended by the client.
var ddNames = map[string]string{
	metrics.MetricRuns:         "runs",
	metrics.MetricRunSeconds:   "run.duration",
	metrics.MetricRows:         "rows",
	metrics.MetricColumnFaults: "column.faults",
}

// Backend sends metrics to a DogStatsD agent. Install it process-wide with
// metrics.SetBackend.
type Backend struct {
	client statsdClient
}

// statsdClient is the slice of *statsd.Client the backend uses, split out so
// tests can capture emissions without a UDP listener.
type statsdClient interface {
	Count(name string, value int64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
	Flush() error
}

// NewBackend connects a DogStatsD client per cfg.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "gmdb"
	}
	if !strings.HasSuffix(ns, ".") {
		ns += "."
	}

	c, err := statsd.New(cfg.Addr,
		statsd.WithNamespace(ns),
		statsd.WithTags(cfg.GlobalTags),
	)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter implements metrics.Backend. Counter deltas from the metrics
// package are whole rows or runs, so the int64 truncation is exact.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Count(ddName(name), int64(delta), labelsToTags(labels), 1)
}

// ObserveHistogram implements metrics.Backend. Names carrying a _seconds
// suffix are sent as timings, which Datadog renders with time units;
// anything else goes out as a plain histogram.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	tags := labelsToTags(labels)
	if strings.HasSuffix(name, "_seconds") {
		b.client.Timing(ddName(name), time.Duration(value*float64(time.Second)), tags, 1)
		return
	}
	b.client.Histogram(ddName(name), value, tags, 1)
}

// Flush implements metrics.Backend. It drains the client's buffer to the
// agent and leaves the client usable, so long-lived watch processes can
// flush after every ingested file. The UDP socket goes with the process.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Flush()
}

// ddName translates a generic metric name; unmapped names pass through so
// ad-hoc emissions still arrive, just undotted.
func ddName(name string) string {
	if dd, ok := ddNames[name]; ok {
		return dd
	}
	return name
}

// labelsToTags converts labels into sorted "key:value" tag strings. Sorted
// order keeps tag sets canonical across calls.
func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	tags := make([]string, 0, len(lbls))
	for k, v := range lbls {
		tags = append(tags, k+":"+v)
	}
	sort.Strings(tags)
	return tags
}
