// Package ingest drives flatfile parsing end to end: it streams raw rows
// through the normalizer, casts them onto the schema with bound
// enforcement, stamps the identity digests and appends to a destination
// table, accumulating per-run statistics.
package ingest

import (
	"context"
	"fmt"
	"math"

	"gmdb/internal/hashid"
	"gmdb/internal/schema"
	"gmdb/internal/store"
)

// RowOutcome reports how one row landed in the table.
type RowOutcome struct {
	// Missing lists columns stored as their sentinel because the source
	// value was absent or uncastable.
	Missing []string
	// OutOfBound lists columns stored as their sentinel because the cast
	// value breached a declared bound.
	OutOfBound []string
	// IDs is the identity triple stamped onto the record.
	IDs hashid.Triple
}

// Writer casts normalized rows onto the ground-motion schema and appends
// them to one destination table. Every append is flushed immediately, so a
// mid-run abort loses at most the row in flight.
type Writer struct {
	table store.Table
	reg   *schema.Registry
}

// NewWriter binds a writer to an open table.
func NewWriter(table store.Table) *Writer {
	return &Writer{table: table, reg: schema.GroundMotion()}
}

// WriteRow walks the schema in declared order, casting each source value
// and enforcing bounds, then overwrites the identity columns with digests
// derived from the stored values and appends the finished record. Columns
// absent from row, uncastable or bound-violating are stored as their
// sentinels and reported in the outcome.
func (w *Writer) WriteRow(ctx context.Context, row schema.Record) (RowOutcome, error) {
	var out RowOutcome
	rec := make(schema.Record, w.reg.Len())
	for _, col := range w.reg.Columns() {
		raw, ok := row[col.Name]
		if !ok {
			out.Missing = append(out.Missing, col.Name)
			rec[col.Name] = col.Sentinel()
			continue
		}
		v, err := col.Cast(raw)
		if err != nil {
			out.Missing = append(out.Missing, col.Name)
			rec[col.Name] = col.Sentinel()
			continue
		}
		if outOfBounds(col, v) {
			out.OutOfBound = append(out.OutOfBound, col.Name)
			rec[col.Name] = col.Sentinel()
			continue
		}
		rec[col.Name] = v
	}

	out.IDs = hashid.Compute(hashid.Source{
		TableName:        w.table.Name(),
		PGA:              floatField(rec, "pga"),
		EventLongitude:   floatField(rec, "event_longitude"),
		EventLatitude:    floatField(rec, "event_latitude"),
		HypocenterDepth:  floatField(rec, "hypocenter_depth"),
		EventTime:        stringField(rec, "event_time"),
		StationLongitude: floatField(rec, "station_longitude"),
		StationLatitude:  floatField(rec, "station_latitude"),
	})
	rec[schema.EventIDColumn] = out.IDs.EventID
	rec[schema.StationIDColumn] = out.IDs.StationID
	rec[schema.RecordIDColumn] = out.IDs.RecordID

	if err := w.table.Append(ctx, rec); err != nil {
		return out, fmt.Errorf("append: %w", err)
	}
	if err := w.table.Flush(ctx); err != nil {
		return out, fmt.Errorf("flush: %w", err)
	}
	return out, nil
}

// outOfBounds checks the cast value against the column bounds, min before
// max. NaN compares false against any bound and always passes; for vectors
// a single breaching element fails the whole column.
func outOfBounds(col schema.ColumnSpec, v any) bool {
	if col.Min == nil && col.Max == nil {
		return false
	}
	switch t := v.(type) {
	case float64:
		return scalarOut(t, col.Min, col.Max)
	case int64:
		return scalarOut(float64(t), col.Min, col.Max)
	case uint64:
		return scalarOut(float64(t), col.Min, col.Max)
	case []float64:
		if col.Min != nil {
			for _, e := range t {
				if e < *col.Min {
					return true
				}
			}
		}
		if col.Max != nil {
			for _, e := range t {
				if e > *col.Max {
					return true
				}
			}
		}
	}
	return false
}

func scalarOut(v float64, min, max *float64) bool {
	if min != nil && v < *min {
		return true
	}
	return max != nil && v > *max
}

// floatField reads a stored float, defaulting to NaN so digests stay
// computable for sparse rows.
func floatField(rec schema.Record, name string) float64 {
	if f, ok := rec[name].(float64); ok {
		return f
	}
	return math.NaN()
}

func stringField(rec schema.Record, name string) string {
	s, _ := rec[name].(string)
	return s
}
