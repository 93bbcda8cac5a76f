package flatfile

import (
	"errors"
	"math"
	"sort"
)

var errNoSpectrum = errors.New("no spectral ordinates")

// interpLogLog resamples a response spectrum onto target periods using
// linear interpolation in log10-log10 space. Targets outside the observed
// period range take the nearest endpoint ordinate. A single observed
// ordinate yields a constant spectrum; NaN ordinates propagate into the
// segments they bound. Periods must be positive and sorted ascending.
func interpLogLog(targets, periods, values []float64) ([]float64, error) {
	if len(periods) == 0 {
		return nil, errNoSpectrum
	}
	ly := make([]float64, len(values))
	for i, v := range values {
		ly[i] = math.Log10(v)
	}
	out := make([]float64, len(targets))
	if len(periods) == 1 {
		for i := range out {
			out[i] = math.Pow(10, ly[0])
		}
		return out, nil
	}
	lx := make([]float64, len(periods))
	for i, p := range periods {
		lx[i] = math.Log10(p)
	}
	for i, t := range targets {
		lt := math.Log10(t)
		var v float64
		switch {
		case lt <= lx[0]:
			v = ly[0]
		case lt >= lx[len(lx)-1]:
			v = ly[len(ly)-1]
		default:
			j := sort.SearchFloat64s(lx, lt)
			if lx[j] == lt {
				v = ly[j]
			} else {
				frac := (lt - lx[j-1]) / (lx[j] - lx[j-1])
				v = ly[j-1] + frac*(ly[j]-ly[j-1])
			}
		}
		out[i] = math.Pow(10, v)
	}
	return out, nil
}
