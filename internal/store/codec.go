package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gmdb/internal/schema"
)

// EncodeRecord flattens a record into driver values in registry order,
// filling absent columns with their sentinels. Float NaN encodes as NULL.
func EncodeRecord(reg *schema.Registry, rec schema.Record) ([]any, error) {
	out := make([]any, 0, reg.Len())
	for _, col := range reg.Columns() {
		v, ok := rec[col.Name]
		if !ok {
			v = col.Sentinel()
		}
		enc, err := EncodeValue(col, v)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

// EncodeValue converts one schema-typed value to its driver value.
func EncodeValue(col schema.ColumnSpec, v any) (any, error) {
	switch col.Kind {
	case schema.KindFloat:
		f, ok := v.(float64)
		if !ok {
			return nil, encodeTypeErr(col, v)
		}
		if math.IsNaN(f) {
			return nil, nil
		}
		return f, nil
	case schema.KindInt:
		n, ok := v.(int64)
		if !ok {
			return nil, encodeTypeErr(col, v)
		}
		return n, nil
	case schema.KindUint:
		n, ok := v.(uint64)
		if !ok {
			return nil, encodeTypeErr(col, v)
		}
		if n > math.MaxInt64 {
			return nil, fmt.Errorf("column %s: %d overflows the driver integer", col.Name, n)
		}
		return int64(n), nil
	case schema.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, encodeTypeErr(col, v)
		}
		return b, nil
	case schema.KindString, schema.KindEnum, schema.KindDateTime:
		s, ok := v.(string)
		if !ok {
			return nil, encodeTypeErr(col, v)
		}
		return s, nil
	case schema.KindVector:
		vec, ok := v.([]float64)
		if !ok || len(vec) != col.Size {
			return nil, encodeTypeErr(col, v)
		}
		return EncodeVector(vec), nil
	}
	return nil, fmt.Errorf("column %s: unsupported kind %s", col.Name, col.Kind)
}

func encodeTypeErr(col schema.ColumnSpec, v any) error {
	return fmt.Errorf("column %s: cannot encode %T as %s", col.Name, v, col.Kind)
}

// DecodeRow rebuilds a record from driver values in registry order. It
// accepts the value shapes the supported drivers produce: NULLs, native Go
// scalars, and textual []byte numerics.
func DecodeRow(reg *schema.Registry, vals []any) (schema.Record, error) {
	if len(vals) != reg.Len() {
		return nil, fmt.Errorf("row has %d values, schema has %d columns", len(vals), reg.Len())
	}
	rec := make(schema.Record, reg.Len())
	for i, col := range reg.Columns() {
		v, err := DecodeValue(col, vals[i])
		if err != nil {
			return nil, err
		}
		rec[col.Name] = v
	}
	return rec, nil
}

// DecodeValue converts one driver value back to its schema type.
func DecodeValue(col schema.ColumnSpec, raw any) (any, error) {
	if raw == nil {
		return col.Sentinel(), nil
	}
	switch col.Kind {
	case schema.KindFloat:
		switch t := raw.(type) {
		case float64:
			return t, nil
		case float32:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case []byte:
			return strconv.ParseFloat(string(t), 64)
		case string:
			return strconv.ParseFloat(t, 64)
		}
	case schema.KindInt:
		switch t := raw.(type) {
		case int64:
			return t, nil
		case []byte:
			return strconv.ParseInt(string(t), 10, 64)
		case string:
			return strconv.ParseInt(t, 10, 64)
		}
	case schema.KindUint:
		switch t := raw.(type) {
		case int64:
			if t < 0 {
				return nil, fmt.Errorf("column %s: negative stored value %d", col.Name, t)
			}
			return uint64(t), nil
		case uint64:
			return t, nil
		case []byte:
			return strconv.ParseUint(string(t), 10, 64)
		case string:
			return strconv.ParseUint(t, 10, 64)
		}
	case schema.KindBool:
		switch t := raw.(type) {
		case bool:
			return t, nil
		case int64:
			return t != 0, nil
		case []byte:
			return strconv.ParseBool(strings.TrimSpace(string(t)))
		case string:
			return strconv.ParseBool(strings.TrimSpace(t))
		}
	case schema.KindString, schema.KindEnum, schema.KindDateTime:
		switch t := raw.(type) {
		case string:
			return t, nil
		case []byte:
			return string(t), nil
		}
	case schema.KindVector:
		switch t := raw.(type) {
		case []byte:
			return DecodeVector(t, col.Size)
		case string:
			return DecodeVector([]byte(t), col.Size)
		}
	}
	return nil, fmt.Errorf("column %s: cannot decode %T as %s", col.Name, raw, col.Kind)
}

// EncodeVector packs a float vector as little-endian float64 bytes. NaN
// elements survive the round trip, so NULL is never needed for vectors.
func EncodeVector(vec []float64) []byte {
	out := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

// DecodeVector unpacks a vector blob, enforcing the declared length.
func DecodeVector(b []byte, size int) ([]float64, error) {
	if len(b) != 8*size {
		return nil, fmt.Errorf("vector blob is %d bytes, want %d", len(b), 8*size)
	}
	out := make([]float64, size)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out, nil
}
