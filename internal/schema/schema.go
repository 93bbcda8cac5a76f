// Package schema defines the ground-motion record schema: an ordered,
// data-driven set of column definitions with per-kind missing sentinels and
// optional bounds. The schema is built once at package init and never
// mutated; every table written by this module shares it.
//
// The "default value means missing" convention: each column carries a
// sentinel determined by its kind (float → NaN, unsigned → 0, signed → the
// kind's minimum, string/enum → "", datetime → ""). Booleans have no value
// left over to act as a sentinel, so they store their declared default and
// are the documented exception. A stored value equal to the sentinel means
// the source value was absent, uncastable or out of bounds, except where the
// sentinel is a legitimate domain value (an accepted ambiguity).
package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the primitive kind of a column.
type Kind uint8

const (
	KindString Kind = iota // fixed-width byte string
	KindInt                // signed integer, Size = bit width
	KindUint               // unsigned integer, Size = bit width
	KindFloat              // float, Size = bit width (16 and 32 round through float32)
	KindBool               // boolean, no missing sentinel
	KindEnum               // enum of strings, "" always part of the domain
	KindDateTime           // 19-char ISO string YYYY-MM-DDTHH:MM:SS
	KindVector             // fixed-length float64 vector, Size = length
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	case KindDateTime:
		return "datetime"
	case KindVector:
		return "vector"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ColumnSpec describes one column: name, kind, width/length, optional bounds
// and the declared default. Bounds are metadata only; they are enforced by
// the table writer, never at definition time.
type ColumnSpec struct {
	Name string
	Kind Kind
	// Size is the byte width for string kinds, the bit width for numeric
	// kinds and the fixed length for vector kinds.
	Size int
	// Min and Max are write-time bounds; nil means unbounded on that side.
	Min *float64
	Max *float64
	// Values is the enum domain for KindEnum columns. The empty string is
	// inserted at position 0 if absent, so the missing sentinel is always a
	// legal value.
	Values []string
	// dflt is the missing sentinel (or, for booleans, the declared default).
	dflt any
}

// Sentinel returns the column's missing sentinel (for booleans, the declared
// default). Vector sentinels are freshly allocated on every call so callers
// may keep and mutate them.
func (c *ColumnSpec) Sentinel() any {
	if c.Kind == KindVector {
		v := make([]float64, c.Size)
		for i := range v {
			v[i] = math.NaN()
		}
		return v
	}
	return c.dflt
}

// Cast coerces a raw value (typically a CSV string, but typed values pass
// through) to the column's storage type. String kinds accept any string and
// truncate to Size bytes; they never fail on string input. Numeric kinds
// parse strings and range-check typed input. Vector kinds accept a slice of
// the declared length or a scalar, which broadcasts to every element.
func (c *ColumnSpec) Cast(v any) (any, error) {
	switch c.Kind {
	case KindString, KindDateTime:
		s, ok := stringValue(v)
		if !ok {
			return nil, fmt.Errorf("column %s: cannot cast %T to string", c.Name, v)
		}
		return truncate(s, c.Size), nil
	case KindEnum:
		s, ok := stringValue(v)
		if !ok {
			return nil, fmt.Errorf("column %s: cannot cast %T to enum", c.Name, v)
		}
		for _, val := range c.Values {
			if s == val {
				return s, nil
			}
		}
		return nil, fmt.Errorf("column %s: %q not in enum domain", c.Name, s)
	case KindFloat:
		f, err := floatValue(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		if c.Size <= 32 {
			f = float64(float32(f))
		}
		return f, nil
	case KindInt:
		return c.castInt(v)
	case KindUint:
		return c.castUint(v)
	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("column %s: cannot cast %T to bool", c.Name, v)
	case KindVector:
		return c.castVector(v)
	}
	return nil, fmt.Errorf("column %s: unsupported kind %s", c.Name, c.Kind)
}

func (c *ColumnSpec) castInt(v any) (any, error) {
	min := int64(-1) << (c.Size - 1)
	max := int64(1)<<(c.Size-1) - 1
	var n int64
	switch t := v.(type) {
	case int64:
		n = t
	case int:
		n = int64(t)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(t), 10, c.Size)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("column %s: cannot cast %T to int", c.Name, v)
	}
	if n < min || n > max {
		return nil, fmt.Errorf("column %s: %d overflows int%d", c.Name, n, c.Size)
	}
	return n, nil
}

func (c *ColumnSpec) castUint(v any) (any, error) {
	var n uint64
	switch t := v.(type) {
	case uint64:
		n = t
	case int64:
		if t < 0 {
			return nil, fmt.Errorf("column %s: negative value %d for uint", c.Name, t)
		}
		n = uint64(t)
	case int:
		if t < 0 {
			return nil, fmt.Errorf("column %s: negative value %d for uint", c.Name, t)
		}
		n = uint64(t)
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(t), 10, c.Size)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("column %s: cannot cast %T to uint", c.Name, v)
	}
	if c.Size < 64 && n > uint64(1)<<c.Size-1 {
		return nil, fmt.Errorf("column %s: %d overflows uint%d", c.Name, n, c.Size)
	}
	return n, nil
}

func (c *ColumnSpec) castVector(v any) (any, error) {
	switch t := v.(type) {
	case []float64:
		if len(t) != c.Size {
			return nil, fmt.Errorf("column %s: vector length %d, want %d", c.Name, len(t), c.Size)
		}
		out := make([]float64, c.Size)
		copy(out, t)
		return out, nil
	case float64, float32, int, int64, string:
		f, err := floatValue(t)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		out := make([]float64, c.Size)
		for i := range out {
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("column %s: cannot cast %T to vector", c.Name, v)
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	}
	return "", false
}

func floatValue(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, err
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot cast %T to float", v)
}

// truncate cuts s to at most n bytes, mirroring fixed-width string storage.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Record is one finished table record: every schema column present with a
// typed value (sentinel-filled where the source had nothing usable).
type Record map[string]any

// Registry is the ordered, name-unique collection of column specs.
type Registry struct {
	cols   []ColumnSpec
	byName map[string]int
}

// NewRegistry builds a registry from specs, validating name uniqueness and
// ensuring every enum domain contains the empty string.
func NewRegistry(cols []ColumnSpec) (*Registry, error) {
	r := &Registry{
		cols:   make([]ColumnSpec, len(cols)),
		byName: make(map[string]int, len(cols)),
	}
	copy(r.cols, cols)
	for i := range r.cols {
		col := &r.cols[i]
		if col.Name == "" {
			return nil, fmt.Errorf("column %d: empty name", i)
		}
		if _, dup := r.byName[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		if col.Kind == KindEnum {
			if !containsString(col.Values, "") {
				col.Values = append([]string{""}, col.Values...)
			}
			col.dflt = ""
		} else if col.dflt == nil {
			col.dflt = kindSentinel(col)
		}
		r.byName[col.Name] = i
	}
	return r, nil
}

func mustRegistry(cols []ColumnSpec) *Registry {
	r, err := NewRegistry(cols)
	if err != nil {
		panic(err)
	}
	return r
}

func kindSentinel(c *ColumnSpec) any {
	switch c.Kind {
	case KindString, KindDateTime:
		return ""
	case KindInt:
		return int64(-1) << (c.Size - 1)
	case KindUint:
		return uint64(0)
	case KindFloat:
		return math.NaN()
	case KindBool:
		return false
	}
	return nil
}

func containsString(vals []string, want string) bool {
	for _, v := range vals {
		if v == want {
			return true
		}
	}
	return false
}

// Columns returns the specs in declared order. The slice is shared; callers
// must not modify it.
func (r *Registry) Columns() []ColumnSpec { return r.cols }

// Len returns the number of columns.
func (r *Registry) Len() int { return len(r.cols) }

// Lookup returns the spec for name, or nil if the column does not exist.
func (r *Registry) Lookup(name string) *ColumnSpec {
	i, ok := r.byName[name]
	if !ok {
		return nil
	}
	return &r.cols[i]
}

// Names returns the column names in declared order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.cols))
	for i := range r.cols {
		names[i] = r.cols[i].Name
	}
	return names
}

// NewRecord returns a Record with every column set to its sentinel.
func (r *Registry) NewRecord() Record {
	rec := make(Record, len(r.cols))
	for i := range r.cols {
		rec[r.cols[i].Name] = r.cols[i].Sentinel()
	}
	return rec
}
