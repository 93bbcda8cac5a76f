package schema

import (
	"math"
	"testing"
)

// TestGroundMotionRegistry verifies the shape of the shared record schema:
// declared order, name uniqueness (enforced at construction) and the three
// system identity columns.
func TestGroundMotionRegistry(t *testing.T) {
	t.Parallel()

	reg := GroundMotion()
	cols := reg.Columns()
	if len(cols) < 60 {
		t.Fatalf("got %d columns, want at least 60", len(cols))
	}
	if got, want := cols[0].Name, RecordIDColumn; got != want {
		t.Fatalf("first column = %q, want %q", got, want)
	}
	if got, want := cols[len(cols)-1].Name, "sa"; got != want {
		t.Fatalf("last column = %q, want %q", got, want)
	}
	for _, name := range []string{RecordIDColumn, EventIDColumn, StationIDColumn} {
		col := reg.Lookup(name)
		if col == nil {
			t.Fatalf("missing identity column %q", name)
		}
		if col.Kind != KindString || col.Size != IDSize {
			t.Fatalf("%s: kind=%v size=%d, want string size %d", name, col.Kind, col.Size, IDSize)
		}
	}
	sa := reg.Lookup("sa")
	if sa.Kind != KindVector || sa.Size != SALen {
		t.Fatalf("sa: kind=%v size=%d, want vector size %d", sa.Kind, sa.Size, SALen)
	}
}

func TestSentinels(t *testing.T) {
	t.Parallel()

	reg := GroundMotion()

	if v := reg.Lookup("pga").Sentinel().(float64); !math.IsNaN(v) {
		t.Errorf("pga sentinel = %v, want NaN", v)
	}
	if v := reg.Lookup("npass").Sentinel().(int64); v != math.MinInt8 {
		t.Errorf("npass sentinel = %d, want %d", v, math.MinInt8)
	}
	if v := reg.Lookup("event_country").Sentinel().(string); v != "" {
		t.Errorf("event_country sentinel = %q, want empty", v)
	}
	if v := reg.Lookup("event_time").Sentinel().(string); v != "" {
		t.Errorf("event_time sentinel = %q, want empty", v)
	}
	// Booleans have no free value to act as a sentinel: they carry their
	// declared default instead.
	if v := reg.Lookup("vs30_measured").Sentinel().(bool); v != true {
		t.Errorf("vs30_measured default = %v, want true", v)
	}
	if v := reg.Lookup("digital_recording").Sentinel().(bool); v != true {
		t.Errorf("digital_recording default = %v, want true", v)
	}
}

func TestBoundsMetadata(t *testing.T) {
	t.Parallel()

	reg := GroundMotion()
	lat := reg.Lookup("event_latitude")
	if lat.Min == nil || lat.Max == nil || *lat.Min != -90 || *lat.Max != 90 {
		t.Fatalf("event_latitude bounds = %v..%v, want -90..90", lat.Min, lat.Max)
	}
	if depth := reg.Lookup("hypocenter_depth"); depth.Min != nil || depth.Max != nil {
		t.Fatalf("hypocenter_depth should be unbounded")
	}
}

func TestReferencePeriods(t *testing.T) {
	t.Parallel()

	periods := ReferencePeriods()
	if len(periods) != 111 {
		t.Fatalf("got %d reference periods, want 111", len(periods))
	}
	if periods[0] != 0.010 || periods[len(periods)-1] != 20.000 {
		t.Fatalf("period range %v..%v, want 0.010..20.000", periods[0], periods[len(periods)-1])
	}
	for i := 1; i < len(periods); i++ {
		if periods[i] <= periods[i-1] {
			t.Fatalf("periods not ascending at index %d: %v <= %v", i, periods[i], periods[i-1])
		}
	}
}

func TestCast(t *testing.T) {
	t.Parallel()

	reg := GroundMotion()

	t.Run("float", func(t *testing.T) {
		t.Parallel()
		pga := reg.Lookup("pga")
		got, err := pga.Cast(" 5.5 ")
		if err != nil {
			t.Fatalf("Cast(%q): %v", " 5.5 ", err)
		}
		if got.(float64) != 5.5 {
			t.Fatalf("got %v, want 5.5", got)
		}
		if _, err := pga.Cast("abc"); err == nil {
			t.Fatal("Cast(abc) should fail")
		}
	})

	t.Run("string truncation", func(t *testing.T) {
		t.Parallel()
		mt := reg.Lookup("magnitude_type")
		got, err := mt.Cast("MwXYZextra")
		if err != nil {
			t.Fatalf("Cast: %v", err)
		}
		if got.(string) != "MwXYZ" {
			t.Fatalf("got %q, want %q (truncated to %d bytes)", got, "MwXYZ", mt.Size)
		}
	})

	t.Run("datetime accepts any string", func(t *testing.T) {
		t.Parallel()
		et := reg.Lookup("event_time")
		got, err := et.Cast("not a datetime but quite long")
		if err != nil {
			t.Fatalf("Cast: %v", err)
		}
		if len(got.(string)) != 19 {
			t.Fatalf("got %d bytes, want 19", len(got.(string)))
		}
	})

	t.Run("int8", func(t *testing.T) {
		t.Parallel()
		npass := reg.Lookup("npass")
		got, err := npass.Cast("127")
		if err != nil || got.(int64) != 127 {
			t.Fatalf("Cast(127) = %v, %v", got, err)
		}
		if _, err := npass.Cast("128"); err == nil {
			t.Fatal("Cast(128) should overflow int8")
		}
		if _, err := npass.Cast("3.5"); err == nil {
			t.Fatal("Cast(3.5) should fail for int column")
		}
	})

	t.Run("bool", func(t *testing.T) {
		t.Parallel()
		vm := reg.Lookup("vs30_measured")
		got, err := vm.Cast("0")
		if err != nil || got.(bool) != false {
			t.Fatalf("Cast(0) = %v, %v", got, err)
		}
		if _, err := vm.Cast("maybe"); err == nil {
			t.Fatal("Cast(maybe) should fail")
		}
	})

	t.Run("vector broadcast", func(t *testing.T) {
		t.Parallel()
		sa := reg.Lookup("sa")
		got, err := sa.Cast(2.5)
		if err != nil {
			t.Fatalf("Cast: %v", err)
		}
		vec := got.([]float64)
		if len(vec) != SALen || vec[0] != 2.5 || vec[SALen-1] != 2.5 {
			t.Fatalf("broadcast vector wrong: len=%d head=%v tail=%v", len(vec), vec[0], vec[SALen-1])
		}
		if _, err := sa.Cast([]float64{1, 2, 3}); err == nil {
			t.Fatal("short vector should fail")
		}
	})

	t.Run("float32 rounds", func(t *testing.T) {
		t.Parallel()
		vs30 := reg.Lookup("vs30")
		got, err := vs30.Cast("0.1")
		if err != nil {
			t.Fatalf("Cast: %v", err)
		}
		if got.(float64) != float64(float32(0.1)) {
			t.Fatalf("got %v, want float32-rounded 0.1", got)
		}
	})
}

func TestNewRecord(t *testing.T) {
	t.Parallel()

	reg := GroundMotion()
	a, b := reg.NewRecord(), reg.NewRecord()
	if len(a) != reg.Len() {
		t.Fatalf("record has %d values, want %d", len(a), reg.Len())
	}
	av, bv := a["sa"].([]float64), b["sa"].([]float64)
	if !math.IsNaN(av[0]) {
		t.Fatalf("fresh sa[0] = %v, want NaN", av[0])
	}
	av[0] = 1.0
	if bv[0] == 1.0 {
		t.Fatal("sa sentinel slices must not be shared between records")
	}
}

func TestNewRegistryValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRegistry([]ColumnSpec{
		{Name: "x", Kind: KindFloat, Size: 64},
		{Name: "x", Kind: KindFloat, Size: 64},
	}); err == nil {
		t.Fatal("duplicate names should be rejected")
	}

	reg, err := NewRegistry([]ColumnSpec{
		{Name: "kind", Kind: KindEnum, Values: []string{"a", "b"}},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	col := reg.Lookup("kind")
	if col.Values[0] != "" {
		t.Fatalf("enum domain %v should start with empty string", col.Values)
	}
	if got, err := col.Cast(""); err != nil || got.(string) != "" {
		t.Fatalf("empty enum value should cast: %v, %v", got, err)
	}
	if _, err := col.Cast("c"); err == nil {
		t.Fatal("out-of-domain enum value should fail")
	}
}
