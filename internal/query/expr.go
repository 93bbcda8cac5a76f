// Package query is the read path over stored ground-motion tables: helper
// builders for the filter sublanguage and scan functions that stream or
// materialize the records matching a compiled condition.
package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gmdb/internal/flatfile"
	"gmdb/internal/schema"
)

// Expr is a fragment of the filter sublanguage. Builders return ready
// fragments; And, Or and Not compose them with the parenthesization the
// language requires, so composed expressions always validate.
type Expr string

func (e Expr) String() string { return string(e) }

// And joins two fragments with the logical and operator.
func (e Expr) And(other Expr) Expr {
	return "(" + e + ") & (" + other + ")"
}

// Or joins two fragments with the logical or operator.
func (e Expr) Or(other Expr) Expr {
	return "(" + e + ") | (" + other + ")"
}

// Not negates a fragment.
func (e Expr) Not() Expr {
	return "~(" + e + ")"
}

// comparisonOps are the operators ValueOp accepts.
var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// ValueIn builds a condition matching records whose column equals any of
// the given values. Values are cast onto the column type first, so a
// float32-width column compares against the same rounded value it stores.
// The complement ("differs from all") is ValueIn(...).Not().
func ValueIn(column string, values ...any) (Expr, error) {
	col, err := lookup(column)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", fmt.Errorf("column %s: at least one value required", column)
	}
	parts := make([]string, len(values))
	for i, v := range values {
		lit, err := formatValue(col, v)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + column + " == " + lit + ")"
	}
	return Expr(strings.Join(parts, " | ")), nil
}

// ValueOp builds a single comparison of a column against a value. op is one
// of == != < <= > >=. Ordering comparisons against nan are rejected later,
// at compile time.
func ValueOp(column, op string, value any) (Expr, error) {
	col, err := lookup(column)
	if err != nil {
		return "", err
	}
	if !comparisonOps[op] {
		return "", fmt.Errorf("unknown comparison operator %q", op)
	}
	lit, err := formatValue(col, value)
	if err != nil {
		return "", err
	}
	return Expr(column + " " + op + " " + lit), nil
}

// ValueBetween builds an inclusive range condition: min <= column <= max.
func ValueBetween(column string, min, max any) (Expr, error) {
	col, err := lookup(column)
	if err != nil {
		return "", err
	}
	lo, err := formatValue(col, min)
	if err != nil {
		return "", err
	}
	hi, err := formatValue(col, max)
	if err != nil {
		return "", err
	}
	return Expr("(" + column + " >= " + lo + ") & (" + column + " <= " + hi + ")"), nil
}

// Available builds a condition matching records whose column does not hold
// its missing sentinel. Booleans have no sentinel, so availability on a
// boolean column matches every record; a vector column is available when no
// element is NaN.
func Available(column string) (Expr, error) {
	col, err := lookup(column)
	if err != nil {
		return "", err
	}
	switch col.Kind {
	case schema.KindFloat, schema.KindVector:
		return Expr(column + " != nan"), nil
	case schema.KindInt:
		min := int64(-1) << (col.Size - 1)
		return Expr(column + " != " + strconv.FormatInt(min, 10)), nil
	case schema.KindUint:
		return Expr(column + " != 0"), nil
	case schema.KindBool:
		return Expr("(" + column + " == true) | (" + column + " == false)"), nil
	}
	return Expr(column + " != ''"), nil
}

func lookup(column string) (schema.ColumnSpec, error) {
	col := schema.GroundMotion().Lookup(column)
	if col == nil {
		return schema.ColumnSpec{}, fmt.Errorf("unknown column %q", column)
	}
	return *col, nil
}

// formatValue renders one comparison value as a sublanguage literal,
// casting it onto the column type first so the literal matches what the
// store holds. Datetime values accept any shape NormalizeDTime accepts,
// plus time.Time.
func formatValue(col schema.ColumnSpec, v any) (string, error) {
	if col.Kind == schema.KindDateTime {
		switch t := v.(type) {
		case time.Time:
			return quote(t.Format("2006-01-02T15:04:05")), nil
		case string:
			dt, err := flatfile.NormalizeDTime(t)
			if err != nil {
				return "", fmt.Errorf("column %s: %w", col.Name, err)
			}
			return quote(dt), nil
		}
		return "", fmt.Errorf("column %s: cannot compare against %T", col.Name, v)
	}
	cast, err := col.Cast(v)
	if err != nil {
		return "", err
	}
	switch t := cast.(type) {
	case float64:
		if math.IsNaN(t) {
			return "nan", nil
		}
		if math.IsInf(t, 0) {
			return "", fmt.Errorf("column %s: infinite comparison value", col.Name)
		}
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		if t > math.MaxInt64 {
			return "", fmt.Errorf("column %s: %d too large for a filter literal", col.Name, t)
		}
		return strconv.FormatUint(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	case string:
		return quote(t), nil
	case []float64:
		return "", fmt.Errorf("column %s: vector columns cannot be compared by value", col.Name)
	}
	return "", fmt.Errorf("column %s: cannot render %T as a literal", col.Name, cast)
}

// quote wraps s in single quotes, escaping backslashes and embedded quotes.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '\'':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('\'')
	return b.String()
}
