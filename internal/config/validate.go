// Static validation for decoded Config values. Checks run without touching
// the database; format_file is the one exception, parsed here so definition
// errors surface before a run starts.

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/robfig/cron/v3"

	"gmdb/internal/flatfile"
	"gmdb/internal/schema"
	"gmdb/internal/store"
	"gmdb/internal/units"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Config.
//
// Path is a dotted path into the config (e.g. "store.driver",
// "ingest.options.columns"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateConfig performs static validation of a Config.
//
// It does not mutate the config. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
//
// Example:
//
//	c, err := config.Load(path)
//	if err != nil { ... }
//	issues := config.ValidateConfig(*c)
//	for _, iss := range issues {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidateConfig(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; metrics will be labeled with the default job name",
		})
	}
	issues = append(issues, validateStore(c.Store)...)
	issues = append(issues, validateIngest(c.Ingest)...)
	issues = append(issues, validateWatch(c.Watch)...)
	issues = append(issues, validateMetrics(c.Metrics)...)

	return issues
}

// validateStore validates the storage selection.
func validateStore(s StoreConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Driver) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "store.driver",
			Message:  "store.driver must not be empty",
		})
		return issues
	}

	// Known drivers. Unknown drivers are warnings (for forward compatibility);
	// store.Open rejects them definitively when the run starts.
	known := map[string]struct{}{
		"sqlite":   {},
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
	}
	if _, ok := known[s.Driver]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "store.driver",
			Message:  fmt.Sprintf("unknown store driver %q; ensure a matching backend is registered", s.Driver),
		})
	}

	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "store.dsn",
			Message:  "store.dsn must not be empty",
		})
	}

	return issues
}

// validateIngest validates flatfile parsing defaults.
func validateIngest(ic IngestConfig) []Issue {
	var issues []Issue

	if ic.Mode != "" {
		mode, err := store.ParseMode(ic.Mode)
		if err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "ingest.mode",
				Message:  err.Error(),
			})
		} else if mode == store.ModeRead {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "ingest.mode",
				Message:  "read mode is not usable for ingestion; use append or overwrite",
			})
		}
	}

	if ic.Format != "" && ic.FormatFile != "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.format",
			Message:  fmt.Sprintf("format %q and format_file %q are mutually exclusive", ic.Format, ic.FormatFile),
		})
	} else if ic.Format != "" {
		if _, err := flatfile.LookupFormat(ic.Format); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "ingest.format",
				Message:  err.Error(),
			})
		}
	} else if ic.FormatFile != "" {
		// Parse the definition now so a bad file fails validation, not the run.
		if _, err := flatfile.LoadFormat(ic.FormatFile); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "ingest.format_file",
				Message:  err.Error(),
			})
		}
	}

	if d := ic.Options.String("delimiter", ""); utf8.RuneCountInString(d) > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.options.delimiter",
			Message:  fmt.Sprintf("delimiter must be a single character, got %q", d),
		})
	}
	if unit := ic.Options.String("accel_unit", ""); unit != "" && !units.ValidAccelUnit(unit) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.options.accel_unit",
			Message:  fmt.Sprintf("unknown acceleration unit %q; accepted: %s", unit, strings.Join(units.AccelUnits(), ", ")),
		})
	}
	reg := schema.GroundMotion()
	for src, target := range ic.Options.StringMap("columns") {
		switch {
		case schema.IsSystemID(target):
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "ingest.options.columns",
				Message:  fmt.Sprintf("column %q maps to identity column %q, which is computed during ingestion", src, target),
			})
		case reg.Lookup(target) == nil:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "ingest.options.columns",
				Message:  fmt.Sprintf("column %q maps to unknown column %q", src, target),
			})
		}
	}

	return issues
}

// validateWatch validates the directory watcher settings.
func validateWatch(w WatchConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(w.Dir) == "" {
		// Watch is unconfigured; a schedule without a directory is the only
		// misconfiguration worth flagging.
		if w.Schedule != "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "watch.schedule",
				Message:  "watch.schedule requires watch.dir",
			})
		}
		return issues
	}

	if w.Pattern != "" {
		if _, err := filepath.Match(w.Pattern, "probe"); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "watch.pattern",
				Message:  fmt.Sprintf("invalid glob %q: %v", w.Pattern, err),
			})
		}
	}
	if w.Schedule != "" {
		if _, err := cron.ParseStandard(w.Schedule); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "watch.schedule",
				Message:  fmt.Sprintf("invalid cron expression %q: %v", w.Schedule, err),
			})
		}
	}
	if w.DebounceMS < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "watch.debounce_ms",
			Message:  "debounce_ms must not be negative",
		})
	}

	return issues
}

// validateMetrics validates the metrics backend selection.
func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"":           {},
		"none":       {},
		"prometheus": {},
		"datadog":    {},
	}
	if _, ok := known[m.Backend]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
		return issues
	}

	// Backend-specific address checks. Setup falls back to a local default,
	// which is rarely what a deployed run wants, so surface it.
	switch m.Backend {
	case "prometheus":
		if m.Options.String("gateway", "") == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.options.gateway",
				Message:  "no Pushgateway URL configured; defaulting to http://localhost:9091 (set metrics.options.gateway or PUSHGATEWAY_URL)",
			})
		}
	case "datadog":
		if m.Options.String("addr", "") == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.options.addr",
				Message:  "no DogStatsD address configured; defaulting to 127.0.0.1:8125 (set metrics.options.addr or STATSD_ADDR)",
			})
		}
	}

	return issues
}
