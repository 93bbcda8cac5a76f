package schema

// System-assigned identity columns. Their values are always overwritten by
// the table writer with content-derived digests; anything supplied by the
// flatfile is discarded.
const (
	RecordIDColumn  = "record_id"
	EventIDColumn   = "event_id"
	StationIDColumn = "station_id"
)

// IDSize is the byte width of the identity columns: a 160-bit digest
// rendered as 40 lowercase hex characters.
const IDSize = 40

// IsSystemID reports whether name is one of the three identity columns.
func IsSystemID(name string) bool {
	return name == RecordIDColumn || name == EventIDColumn || name == StationIDColumn
}

// GroundMotion returns the shared ground-motion record schema. The returned
// registry is immutable and safe for concurrent use.
func GroundMotion() *Registry { return groundMotion }

var groundMotion = mustRegistry(groundMotionColumns())

func groundMotionColumns() []ColumnSpec {
	str := func(name string, size int) ColumnSpec {
		return ColumnSpec{Name: name, Kind: KindString, Size: size}
	}
	f32 := func(name string) ColumnSpec {
		return ColumnSpec{Name: name, Kind: KindFloat, Size: 32}
	}
	f64 := func(name string) ColumnSpec {
		return ColumnSpec{Name: name, Kind: KindFloat, Size: 64}
	}
	bounded := func(c ColumnSpec, min, max float64) ColumnSpec {
		c.Min, c.Max = &min, &max
		return c
	}
	boolCol := func(name string, dflt bool) ColumnSpec {
		return ColumnSpec{Name: name, Kind: KindBool, dflt: dflt}
	}

	return []ColumnSpec{
		str(RecordIDColumn, IDSize),
		str(EventIDColumn, IDSize),
		str("event_name", 40),
		str("event_country", 30),
		{Name: "event_time", Kind: KindDateTime, Size: 19},
		bounded(f64("event_latitude"), -90, 90),
		bounded(f64("event_longitude"), -180, 180),
		f32("hypocenter_depth"),
		{Name: "magnitude", Kind: KindFloat, Size: 16},
		str("magnitude_type", 5),
		f32("magnitude_uncertainty"),
		str("tectonic_environment", 30),
		f32("strike_1"),
		f32("strike_2"),
		f32("dip_1"),
		f32("dip_2"),
		f32("rake_1"),
		f32("rake_2"),
		f32("style_of_faulting"),
		f32("depth_top_of_rupture"),
		f32("rupture_length"),
		f32("rupture_width"),
		str(StationIDColumn, IDSize),
		str("station_name", 40),
		bounded(f64("station_latitude"), -90, 90),
		bounded(f64("station_longitude"), -180, 180),
		f32("station_elevation"),
		f32("vs30"),
		boolCol("vs30_measured", true),
		f32("vs30_sigma"),
		f32("depth_to_basement"),
		f32("z1"),
		f32("z2pt5"),
		f32("repi"),
		f32("rhypo"),
		f32("rjb"),
		f32("rrup"),
		f32("rx"),
		f32("ry0"),
		f32("azimuth"),
		boolCol("digital_recording", true),
		str("type_of_filter", 25),
		{Name: "npass", Kind: KindInt, Size: 8},
		f32("nroll"),
		f32("hp_h1"),
		f32("hp_h2"),
		f32("lp_h1"),
		f32("lp_h2"),
		f32("factor"),
		f32("lowest_usable_frequency_h1"),
		f32("lowest_usable_frequency_h2"),
		f32("lowest_usable_frequency_avg"),
		f32("highest_usable_frequency_h1"),
		f32("highest_usable_frequency_h2"),
		f32("highest_usable_frequency_avg"),
		f64("pga"),
		f64("pgv"),
		f64("pgd"),
		f64("duration_5_75"),
		f64("duration_5_95"),
		f64("arias_intensity"),
		f64("cav"),
		{Name: "sa", Kind: KindVector, Size: SALen},
	}
}
