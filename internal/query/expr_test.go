package query

import (
	"strings"
	"testing"
	"time"

	"gmdb/internal/condition"
	"gmdb/internal/schema"
)

// TestValueIn verifies the equality-against-any-of builder.
func TestValueIn(t *testing.T) {
	t.Parallel()

	got, err := ValueIn("event_country", "Germany", "Italy")
	if err != nil {
		t.Fatalf("ValueIn: %v", err)
	}
	want := Expr("(event_country == 'Germany') | (event_country == 'Italy')")
	if got != want {
		t.Errorf("ValueIn = %q, want %q", got, want)
	}

	got, err = ValueIn("event_country", "Germany")
	if err != nil {
		t.Fatalf("ValueIn single: %v", err)
	}
	if want := Expr("(event_country == 'Germany')"); got != want {
		t.Errorf("ValueIn single = %q, want %q", got, want)
	}

	if _, err := ValueIn("event_country"); err == nil {
		t.Errorf("ValueIn with no values did not fail")
	}
	if _, err := ValueIn("no_such_column", "x"); err == nil {
		t.Errorf("ValueIn with unknown column did not fail")
	}
}

// TestValueIn_QuoteEscaping verifies that embedded quotes survive as
// escapes the sublanguage lexer understands.
func TestValueIn_QuoteEscaping(t *testing.T) {
	t.Parallel()

	got, err := ValueIn("event_name", "L'Aquila")
	if err != nil {
		t.Fatalf("ValueIn: %v", err)
	}
	if want := Expr(`(event_name == 'L\'Aquila')`); got != want {
		t.Errorf("ValueIn = %q, want %q", got, want)
	}
	if _, err := condition.Compile(schema.GroundMotion(), string(got)); err != nil {
		t.Errorf("escaped literal does not compile: %v", err)
	}
}

// TestValueOp verifies single comparisons, including the casting of string
// values and the nan passthrough.
func TestValueOp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		column string
		op     string
		value  any
		want   Expr
	}{
		{"pga", "<=", 0.5, "pga <= 0.5"},
		{"pga", "<", "0.5", "pga < 0.5"},
		{"magnitude", ">", 6.25, "magnitude > 6.25"},
		{"pga", "!=", "nan", "pga != nan"},
		{"npass", "==", 4, "npass == 4"},
		{"vs30_measured", "==", true, "vs30_measured == true"},
		{"event_time", "<", "2009", "event_time < '2009-01-01T00:00:00'"},
	}
	for _, tt := range tests {
		got, err := ValueOp(tt.column, tt.op, tt.value)
		if err != nil {
			t.Errorf("ValueOp(%s %s %v): %v", tt.column, tt.op, tt.value, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ValueOp(%s %s %v) = %q, want %q", tt.column, tt.op, tt.value, got, tt.want)
		}
	}
}

// TestValueOp_Time verifies that time.Time values render in canonical
// datetime form.
func TestValueOp_Time(t *testing.T) {
	t.Parallel()

	dt := time.Date(2009, 4, 6, 1, 32, 39, 0, time.UTC)
	got, err := ValueOp("event_time", ">=", dt)
	if err != nil {
		t.Fatalf("ValueOp: %v", err)
	}
	if want := Expr("event_time >= '2009-04-06T01:32:39'"); got != want {
		t.Errorf("ValueOp = %q, want %q", got, want)
	}
}

// TestValueOp_Rejections verifies operator and value validation.
func TestValueOp_Rejections(t *testing.T) {
	t.Parallel()

	if _, err := ValueOp("pga", "=<", 0.5); err == nil {
		t.Errorf("unknown operator accepted")
	}
	if _, err := ValueOp("pga", "<", "not a number"); err == nil {
		t.Errorf("uncastable float value accepted")
	}
	if _, err := ValueOp("sa", "==", 1.0); err == nil {
		t.Errorf("vector comparison accepted")
	}
	if _, err := ValueOp("event_time", "<", "April 2009"); err == nil {
		t.Errorf("unparsable datetime accepted")
	}
	if _, err := ValueOp("npass", "==", 1000); err == nil {
		t.Errorf("overflowing int accepted")
	}
}

// TestValueBetween verifies the inclusive range builder.
func TestValueBetween(t *testing.T) {
	t.Parallel()

	got, err := ValueBetween("pga", 0.14, 1.1)
	if err != nil {
		t.Fatalf("ValueBetween: %v", err)
	}
	if want := Expr("(pga >= 0.14) & (pga <= 1.1)"); got != want {
		t.Errorf("ValueBetween = %q, want %q", got, want)
	}

	got, err = ValueBetween("event_time", "2009", "2010")
	if err != nil {
		t.Fatalf("ValueBetween datetime: %v", err)
	}
	want := Expr("(event_time >= '2009-01-01T00:00:00') & (event_time <= '2010-01-01T00:00:00')")
	if got != want {
		t.Errorf("ValueBetween datetime = %q, want %q", got, want)
	}
}

// TestAvailable verifies the per-kind sentinel inequalities.
func TestAvailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		column string
		want   Expr
	}{
		{"pga", "pga != nan"},
		{"sa", "sa != nan"},
		{"npass", "npass != -128"},
		{"event_name", "event_name != ''"},
		{"event_time", "event_time != ''"},
		{"vs30_measured", "(vs30_measured == true) | (vs30_measured == false)"},
	}
	for _, tt := range tests {
		got, err := Available(tt.column)
		if err != nil {
			t.Errorf("Available(%s): %v", tt.column, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Available(%s) = %q, want %q", tt.column, got, tt.want)
		}
	}
	if _, err := Available("no_such_column"); err == nil {
		t.Errorf("Available with unknown column did not fail")
	}
}

// TestExprComposition verifies that composed fragments carry the required
// parenthesization and compile as written.
func TestExprComposition(t *testing.T) {
	t.Parallel()

	rng, err := ValueBetween("pga", 0.14, 1.1)
	if err != nil {
		t.Fatalf("ValueBetween: %v", err)
	}
	avail, err := Available("pgv")
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	in, err := ValueIn("event_country", "Germany")
	if err != nil {
		t.Fatalf("ValueIn: %v", err)
	}

	combined := rng.And(avail).Or(in.Not())
	if !strings.Contains(string(combined), ") & (") || !strings.Contains(string(combined), ") | (") {
		t.Fatalf("composition lost its parenthesization: %q", combined)
	}
	if _, err := condition.Compile(schema.GroundMotion(), string(combined)); err != nil {
		t.Fatalf("composed condition does not compile: %v\n%s", err, combined)
	}
}

// TestFormatValue_Kinds verifies the literal rendering for kinds absent
// from the ground-motion schema.
func TestFormatValue_Kinds(t *testing.T) {
	t.Parallel()

	uintCol := schema.ColumnSpec{Name: "serial", Kind: schema.KindUint, Size: 64}
	got, err := formatValue(uintCol, 42)
	if err != nil {
		t.Fatalf("formatValue uint: %v", err)
	}
	if got != "42" {
		t.Errorf("formatValue uint = %q, want 42", got)
	}
	if _, err := formatValue(uintCol, uint64(1)<<63); err == nil {
		t.Errorf("uint literal beyond int64 range accepted")
	}

	enumCol := schema.ColumnSpec{Name: "grade", Kind: schema.KindEnum, Values: []string{"", "a", "b"}}
	got, err = formatValue(enumCol, "a")
	if err != nil {
		t.Fatalf("formatValue enum: %v", err)
	}
	if got != "'a'" {
		t.Errorf("formatValue enum = %q, want 'a'", got)
	}
	if _, err := formatValue(enumCol, "z"); err == nil {
		t.Errorf("enum value outside the domain accepted")
	}
}
