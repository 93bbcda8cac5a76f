// Package mech maps faulting-style names to characteristic rupture angles,
// used to default missing rupture geometry during flatfile ingestion.
package mech

// rake holds the characteristic rake angle per faulting style, including the
// abbreviated spellings found in flatfiles.
var rake = map[string]float64{
	"Normal":      -90.0,
	"Strike-Slip": 0.0,
	"Reverse":     90.0,
	"Oblique":     0.0,
	"Unknown":     0.0,
	"N":           -90.0,
	"S":           0.0,
	"R":           90.0,
	"U":           0.0,
	"NF":          -90.0,
	"SS":          0.0,
	"TF":          90.0,
	"NS":          -45.0,
	"TS":          45.0,
	"O":           0.0,
}

// dip holds the characteristic dip angle per faulting style.
var dip = map[string]float64{
	"Normal":      60.0,
	"Strike-Slip": 90.0,
	"Reverse":     35.0,
	"Oblique":     60.0,
	"Unknown":     90.0,
	"N":           60.0,
	"S":           90.0,
	"R":           35.0,
	"U":           90.0,
	"NF":          60.0,
	"SS":          90.0,
	"TF":          35.0,
	"NS":          70.0,
	"TS":          45.0,
	"O":           90.0,
}

// Rake returns the characteristic rake for a faulting style.
func Rake(style string) (float64, bool) {
	v, ok := rake[style]
	return v, ok
}

// Dip returns the characteristic dip for a faulting style.
func Dip(style string) (float64, bool) {
	v, ok := dip[style]
	return v, ok
}

// Styles returns every known faulting-style name.
func Styles() []string {
	out := make([]string, 0, len(rake))
	for k := range rake {
		out = append(out, k)
	}
	return out
}
