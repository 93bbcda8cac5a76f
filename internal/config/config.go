// Package config defines the canonical, JSON-serializable configuration model
// for the gmdb tools. It is intentionally small and explicit so that runs can
// be loaded from disk (or assembled from flags) and passed through the program
// without additional glue code.
//
// Example (trimmed):
//
//	{
//	  "job":   "gmdb",
//	  "store": { "driver": "sqlite", "dsn": "gmdb.db" },
//	  "ingest": {
//	    "mode":    "append",
//	    "format":  "esm",
//	    "options": { "delimiter": ";", "columns": { "epicentral_distance": "repi" } }
//	  },
//	  "watch":   { "dir": "incoming", "pattern": "*.csv", "schedule": "@hourly" },
//	  "metrics": { "backend": "prometheus", "options": { "gateway": "http://localhost:9091" } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gmdb/internal/flatfile"
	"gmdb/internal/schema"
	"gmdb/internal/units"
)

// Config is the top-level object decoded from a gmdb config file.
type Config struct {
	// Job labels metrics pushed by this process. Defaults to "gmdb".
	Job string `json:"job"`

	// Store selects the backing database.
	Store StoreConfig `json:"store"`

	// Ingest configures flatfile parsing defaults for ingest and watch runs.
	Ingest IngestConfig `json:"ingest"`

	// Watch configures the directory watcher.
	Watch WatchConfig `json:"watch"`

	// Metrics selects the optional metrics backend.
	Metrics MetricsConfig `json:"metrics"`
}

// StoreConfig identifies the backing database.
type StoreConfig struct {
	// Driver selects the storage backend: sqlite, postgres, mysql or mssql.
	Driver string `json:"driver"`

	// DSN is the driver-specific connection string (a file path for sqlite).
	DSN string `json:"dsn"`
}

// IngestConfig holds flatfile parsing defaults.
type IngestConfig struct {
	// Mode is the table open mode for ingestion runs: append or overwrite.
	Mode string `json:"mode"`

	// Format names a built-in flatfile format (e.g. "generic", "esm").
	Format string `json:"format"`

	// FormatFile points to a YAML format definition. Mutually exclusive with
	// Format.
	FormatFile string `json:"format_file"`

	// Options carries inline format overrides applied on top of the resolved
	// format. Keys: delimiter (single character), accel_unit (fallback unit
	// for a bare pga column), columns (source header -> schema column).
	Options Options `json:"options"`
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	// Dir is the directory to watch for new flatfiles.
	Dir string `json:"dir"`

	// Pattern is the glob a file base name must match to be ingested.
	// Defaults to "*.csv".
	Pattern string `json:"pattern"`

	// Schedule is an optional cron expression for periodic full rescans of
	// Dir, catching files the change notifications missed.
	Schedule string `json:"schedule"`

	// DebounceMS is the quiet period in milliseconds after the last write
	// event before a file is ingested. Defaults to 500.
	DebounceMS int `json:"debounce_ms"`

	// InitialScan ingests the files already present in Dir on startup.
	InitialScan bool `json:"initial_scan"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	// Backend is one of "", "none", "prometheus" or "datadog".
	Backend string `json:"backend"`

	// Options is interpreted by the selected backend. For prometheus:
	// gateway (Pushgateway base URL). For datadog: addr (statsd address),
	// namespace, tags (array of "key:value" strings).
	Options Options `json:"options"`
}

// Defaults fills unset fields that have a usable default.
func (c *Config) Defaults() {
	if c.Job == "" {
		c.Job = "gmdb"
	}
	if c.Ingest.Mode == "" {
		c.Ingest.Mode = "append"
	}
	if c.Watch.Pattern == "" {
		c.Watch.Pattern = "*.csv"
	}
	if c.Watch.DebounceMS == 0 {
		c.Watch.DebounceMS = 500
	}
}

// applyEnv fills connection settings from the environment when the file left
// them empty, so credentials can stay out of checked-in configs.
func (c *Config) applyEnv() {
	if c.Store.Driver == "" {
		c.Store.Driver = os.Getenv("GMDB_DRIVER")
	}
	if c.Store.DSN == "" {
		c.Store.DSN = os.Getenv("GMDB_DSN")
	}
	if c.Metrics.Backend == "prometheus" && c.Metrics.Options.String("gateway", "") == "" {
		if gw := os.Getenv("PUSHGATEWAY_URL"); gw != "" {
			c.Metrics.Options = c.Metrics.Options.with("gateway", gw)
		}
	}
	if c.Metrics.Backend == "datadog" && c.Metrics.Options.String("addr", "") == "" {
		if addr := os.Getenv("STATSD_ADDR"); addr != "" {
			c.Metrics.Options = c.Metrics.Options.with("addr", addr)
		}
	}
}

// Load reads a config file, applies environment fallbacks and defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var c Config
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	c.applyEnv()
	c.Defaults()
	return &c, nil
}

// BuildFormat resolves the flatfile format the ingest configuration names
// and applies the inline option overrides on top of it. The returned format
// is a copy; built-in formats are never mutated.
func (ic IngestConfig) BuildFormat() (*flatfile.Format, error) {
	var base *flatfile.Format
	switch {
	case ic.FormatFile != "" && ic.Format != "":
		return nil, fmt.Errorf("ingest: format %q and format_file %q are mutually exclusive", ic.Format, ic.FormatFile)
	case ic.FormatFile != "":
		f, err := flatfile.LoadFormat(ic.FormatFile)
		if err != nil {
			return nil, err
		}
		base = f
	case ic.Format != "":
		f, err := flatfile.LookupFormat(ic.Format)
		if err != nil {
			return nil, err
		}
		base = f
	default:
		base = flatfile.Generic
	}

	out := *base
	if d := ic.Options.Rune("delimiter", 0); d != 0 {
		out.Delimiter = d
	}
	if unit := ic.Options.String("accel_unit", ""); unit != "" {
		if !units.ValidAccelUnit(unit) {
			return nil, fmt.Errorf("ingest: invalid acceleration unit %q", unit)
		}
		out.AccelUnit = unit
	}
	if cols := ic.Options.StringMap("columns"); len(cols) > 0 {
		reg := schema.GroundMotion()
		merged := make(map[string]string, len(base.Columns)+len(cols))
		for k, v := range base.Columns {
			merged[k] = v
		}
		for src, dst := range cols {
			if reg.Lookup(dst) == nil {
				return nil, fmt.Errorf("ingest: column %q maps to unknown column %q", src, dst)
			}
			if schema.IsSystemID(dst) {
				return nil, fmt.Errorf("ingest: column %q maps to system column %q", src, dst)
			}
			merged[flatfile.NormalizeHeader(src)] = dst
		}
		out.Columns = merged
	}
	return &out, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It purposefully performs only minimal type coercion and returns provided
// defaults when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a
// string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. This is useful for single-character settings such as a
// CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty
// map when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings (or an array of interface values containing strings). Returns nil
// when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// with returns a copy of o with key set, allocating when o is nil.
func (o Options) with(key string, v any) Options {
	out := make(Options, len(o)+1)
	for k, ov := range o {
		out[k] = ov
	}
	out[key] = v
	return out
}

// UnmarshalJSON implements json.Unmarshaler so that an explicit null decodes
// to a non-nil, empty Options map. A field absent from the input keeps its
// zero value; every helper tolerates a nil receiver, so call sites never need
// to nil-check either way.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
