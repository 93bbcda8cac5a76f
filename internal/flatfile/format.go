// Package flatfile reads seismological CSV flatfiles and normalizes their
// rows onto the ground-motion record schema: spectral accelerations are
// interpolated onto the fixed period grid, event times are normalized to ISO
// form and PGA is converted to cm/s/s. Each normalization step is fault
// isolated; a failing step leaves its field absent and records a reason,
// never aborting the row.
package flatfile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gmdb/internal/mech"
	"gmdb/internal/schema"
	"gmdb/internal/units"
)

// Hook is a per-format post-processing step invoked on each row after PGA
// resolution. It may mutate the row in place; an error counts as a row-level
// fault for the hook step only.
type Hook func(row map[string]any) error

// Format describes one flatfile dialect: how source headers map onto schema
// columns, the CSV delimiter and an optional default acceleration unit used
// when the file carries a bare "pga" column and no unit column.
type Format struct {
	Name      string
	Delimiter rune              // 0 means ','
	Columns   map[string]string // normalized source header -> schema column
	AccelUnit string            // optional fallback unit for a bare pga column
	Hook      Hook
}

// Comma returns the effective CSV delimiter.
func (f *Format) Comma() rune {
	if f == nil || f.Delimiter == 0 {
		return ','
	}
	return f.Delimiter
}

// mapHeader translates one normalized source header to its schema column
// name, or returns it unchanged when the format has no mapping for it.
func (f *Format) mapHeader(name string) string {
	if f == nil || f.Columns == nil {
		return name
	}
	if mapped, ok := f.Columns[name]; ok {
		return mapped
	}
	return name
}

// Generic is the identity format: headers are expected to already use schema
// column names.
var Generic = &Format{Name: "generic"}

// ESM maps the European strong-motion flatfile headers and defaults missing
// rupture geometry from the faulting-style code.
var ESM = &Format{
	Name:      "esm",
	AccelUnit: "cm/s/s",
	Columns: map[string]string{
		"ev_latitude":    "event_latitude",
		"ev_longitude":   "event_longitude",
		"ev_depth_km":    "hypocenter_depth",
		"ev_nation_code": "event_country",
		"fm_type_code":   "style_of_faulting",
		"mw":             "magnitude",
		"station_code":   "station_name",
		"st_latitude":    "station_latitude",
		"st_longitude":   "station_longitude",
		"st_elevation":   "station_elevation",
		"vs30_m_sec":     "vs30",
		"epi_dist":       "repi",
		"hyp_dist":       "rhypo",
		"jb_dist":        "rjb",
		"rup_dist":       "rrup",
		"rx_dist":        "rx",
		"ry0_dist":       "ry0",
	},
	Hook: esmHook,
}

// esmHook fills rake_1 and dip_1 from the faulting style when the flatfile
// left them blank.
func esmHook(row map[string]any) error {
	style, _ := row["style_of_faulting"].(string)
	style = strings.TrimSpace(style)
	if style == "" {
		return nil
	}
	if blankField(row, "rake_1") {
		if rake, ok := mech.Rake(style); ok {
			row["rake_1"] = rake
		}
	}
	if blankField(row, "dip_1") {
		if dip, ok := mech.Dip(style); ok {
			row["dip_1"] = dip
		}
	}
	return nil
}

func blankField(row map[string]any, name string) bool {
	v, ok := row[name]
	if !ok {
		return true
	}
	s, isStr := v.(string)
	return isStr && strings.TrimSpace(s) == ""
}

var builtinFormats = map[string]*Format{
	Generic.Name: Generic,
	ESM.Name:     ESM,
}

// LookupFormat resolves a built-in format by name.
func LookupFormat(name string) (*Format, error) {
	f, ok := builtinFormats[name]
	if !ok {
		return nil, fmt.Errorf("unknown flatfile format %q", name)
	}
	return f, nil
}

// FormatNames returns the built-in format names.
func FormatNames() []string {
	names := make([]string, 0, len(builtinFormats))
	for name := range builtinFormats {
		names = append(names, name)
	}
	return names
}

// formatFile is the YAML shape of an on-disk format definition.
type formatFile struct {
	Name      string            `yaml:"name"`
	Delimiter string            `yaml:"delimiter"`
	AccelUnit string            `yaml:"acceleration_unit"`
	Columns   map[string]string `yaml:"columns"`
}

// LoadFormat reads a format definition from a YAML file. File-defined
// formats carry no post-processing hook. Column targets must name schema
// columns and may not target the identity columns.
func LoadFormat(path string) (*Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read format: %w", err)
	}
	var ff formatFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse format %s: %w", path, err)
	}
	if ff.Name == "" {
		return nil, fmt.Errorf("format %s: missing name", path)
	}
	f := &Format{Name: ff.Name, AccelUnit: ff.AccelUnit}
	switch len([]rune(ff.Delimiter)) {
	case 0:
	case 1:
		f.Delimiter = []rune(ff.Delimiter)[0]
	default:
		return nil, fmt.Errorf("format %s: delimiter %q must be a single rune", path, ff.Delimiter)
	}
	if ff.AccelUnit != "" && !units.ValidAccelUnit(ff.AccelUnit) {
		return nil, fmt.Errorf("format %s: invalid acceleration unit %q", path, ff.AccelUnit)
	}
	reg := schema.GroundMotion()
	if len(ff.Columns) > 0 {
		f.Columns = make(map[string]string, len(ff.Columns))
		for src, dst := range ff.Columns {
			if reg.Lookup(dst) == nil {
				return nil, fmt.Errorf("format %s: %q maps to unknown column %q", path, src, dst)
			}
			if schema.IsSystemID(dst) {
				return nil, fmt.Errorf("format %s: %q maps to system column %q", path, src, dst)
			}
			f.Columns[normalizeHeader(src)] = dst
		}
	}
	return f, nil
}
