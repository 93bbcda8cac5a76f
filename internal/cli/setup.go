package cli

import (
	"context"
	"log"
	"os"

	"gmdb/internal/config"
	"gmdb/internal/metrics"
	"gmdb/internal/metrics/datadog"
	"gmdb/internal/metrics/prompush"
	"gmdb/internal/store"
)

// mergeStoreFlags applies the flag > config file > environment precedence
// for the backend selection, in place.
func mergeStoreFlags(cfg *config.Config, driver, dsn string) {
	if driver != "" {
		cfg.Store.Driver = driver
	}
	if dsn != "" {
		cfg.Store.DSN = dsn
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = os.Getenv("GMDB_DRIVER")
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = os.Getenv("GMDB_DSN")
	}
}

// openStore opens the configured backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	return st, nil
}

// setupMetrics installs the configured metrics backend and returns the flush
// to defer. A backend that cannot be constructed is logged and skipped; the
// nop backend stays in place so the run proceeds without metrics.
func setupMetrics(job string, mc config.MetricsConfig) func() {
	// Decide metrics backend: config → env.
	backendName := mc.Backend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}

	switch backendName {
	case "prometheus":
		// Decide Pushgateway URL: config → env → default.
		gwURL := mc.Options.String("gateway", "")
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prometheus backend: %v; using nop", err)
			break
		}
		metrics.SetBackend(b)
		log.Printf("metrics: backend=prometheus gateway=%s job=%s", gwURL, job)
	case "datadog":
		addr := mc.Options.String("addr", "")
		if addr == "" {
			addr = os.Getenv("STATSD_ADDR")
		}
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  mc.Options.String("namespace", ""),
			GlobalTags: mc.Options.StringSlice("tags"),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			break
		}
		metrics.SetBackend(b)
		log.Printf("metrics: backend=datadog addr=%s job=%s", addr, job)
	case "", "none":
		// metrics disabled; nop backend remains
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}
