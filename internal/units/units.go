// Package units converts acceleration measurements between the accepted
// unit spellings and combines two horizontal components into a scalar.
package units

import (
	"fmt"
	"math"
)

// Gravity is standard gravity in m/s/s.
const Gravity = 9.80665

// Accepted unit tokens. "m/s**2", "m/s^2" are spellings of "m/s/s", likewise
// for the cm forms.
var accelUnits = []string{"g", "m/s/s", "m/s**2", "m/s^2", "cm/s/s", "cm/s**2", "cm/s^2"}

// AccelUnits returns the accepted acceleration unit tokens.
func AccelUnits() []string {
	out := make([]string, len(accelUnits))
	copy(out, accelUnits)
	return out
}

// ValidAccelUnit reports whether token is an accepted acceleration unit.
func ValidAccelUnit(token string) bool {
	return classify(token) != unitUnknown
}

type unitClass int

const (
	unitUnknown unitClass = iota
	unitG
	unitMSS
	unitCMSS
)

func classify(token string) unitClass {
	switch token {
	case "g":
		return unitG
	case "m/s/s", "m/s**2", "m/s^2":
		return unitMSS
	case "cm/s/s", "cm/s**2", "cm/s^2":
		return unitCMSS
	}
	return unitUnknown
}

// ConvertAccel converts an acceleration value between units. Unknown unit
// tokens are an error; from and to may be any accepted spelling.
func ConvertAccel(v float64, from, to string) (float64, error) {
	cf, ct := classify(from), classify(to)
	if cf == unitUnknown {
		return 0, fmt.Errorf("unrecognised acceleration unit %q", from)
	}
	if ct == unitUnknown {
		return 0, fmt.Errorf("unrecognised acceleration unit %q", to)
	}
	if cf == ct {
		return v, nil
	}
	// normalize to m/s/s, then to the target
	mss := v
	switch cf {
	case unitG:
		mss = v * Gravity
	case unitCMSS:
		mss = v / 100
	}
	switch ct {
	case unitG:
		return mss / Gravity, nil
	case unitCMSS:
		return mss * 100, nil
	}
	return mss, nil
}

// Combiner merges the two horizontal components of a measurement into one
// scalar value.
type Combiner func(x, y float64) float64

// Combiners returns the named two-component scalar definitions.
func Combiners() map[string]Combiner {
	return map[string]Combiner{
		"Geometric":  func(x, y float64) float64 { return math.Sqrt(x * y) },
		"Arithmetic": func(x, y float64) float64 { return (x + y) / 2 },
		"Larger":     math.Max,
		"Vectorial":  func(x, y float64) float64 { return math.Sqrt(x*x + y*y) },
	}
}
