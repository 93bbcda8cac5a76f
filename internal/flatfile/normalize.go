package flatfile

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gmdb/internal/schema"
	"gmdb/internal/units"
)

var (
	saPattern  = regexp.MustCompile(`(?i)^\s*sa\s*\((.*)\)\s*$`)
	pgaPattern = regexp.MustCompile(`(?i)^\s*pga\s*\((.*)\)\s*$`)
)

// evtimeNames are the split event-time columns, date part first. The date
// columns are required when event_time itself is absent; the time-of-day
// columns default to zero.
var evtimeNames = [6]string{"year", "month", "day", "hour", "minute", "second"}

// Resolution is the structural layout discovered from a flatfile's header
// row: which columns carry the response spectrum, the event time and PGA.
// Resolving it can fail; per-row normalization cannot.
type Resolution struct {
	// SAColumns hold the spectral ordinates, sorted by SAPeriods ascending.
	SAColumns []string
	SAPeriods []float64

	// EventTime is either the single event_time column or the six split
	// columns in year..second order, with empty names for absent optional
	// time-of-day columns.
	EventTime []string

	// PGAColumn is the source of the PGA value. Exactly one of PGAUnitCol
	// (per-row unit tokens) and PGAUnit (fixed unit) is set.
	PGAColumn  string
	PGAUnitCol string
	PGAUnit    string
}

// Resolve inspects mapped header names and locates the spectral, event-time
// and PGA columns. Any failure here is structural: the file cannot be
// ingested at all.
func Resolve(headers []string, format *Format) (*Resolution, error) {
	res := &Resolution{}
	if err := res.resolveSpectrum(headers); err != nil {
		return nil, err
	}
	if err := res.resolveEventTime(headers); err != nil {
		return nil, err
	}
	if err := res.resolvePGA(headers, format); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Resolution) resolveSpectrum(headers []string) error {
	type ordinate struct {
		period float64
		name   string
	}
	var found []ordinate
	for _, name := range headers {
		m := saPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		period, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
		if err != nil {
			return fmt.Errorf("spectral column %q: unparsable period: %w", name, err)
		}
		found = append(found, ordinate{period, name})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].period < found[j].period })
	for _, o := range found {
		r.SAColumns = append(r.SAColumns, o.name)
		r.SAPeriods = append(r.SAPeriods, o.period)
	}
	return nil
}

func (r *Resolution) resolveEventTime(headers []string) error {
	have := make(map[string]bool, len(headers))
	for _, h := range headers {
		have[h] = true
	}
	if have["event_time"] {
		r.EventTime = []string{"event_time"}
		return nil
	}
	cols := make([]string, len(evtimeNames))
	for i, name := range evtimeNames {
		if have[name] {
			cols[i] = name
		}
	}
	if cols[0] == "" || cols[1] == "" || cols[2] == "" {
		return errors.New("no event time columns found: provide event_time or year/month/day")
	}
	r.EventTime = cols
	return nil
}

func (r *Resolution) resolvePGA(headers []string, format *Format) error {
	var bare, unitCol string
	for _, name := range headers {
		switch name {
		case "pga":
			bare = name
			continue
		case "acceleration_unit":
			unitCol = name
			continue
		}
		if m := pgaPattern.FindStringSubmatch(name); m != nil {
			unit := strings.TrimSpace(m[1])
			if !units.ValidAccelUnit(unit) {
				return fmt.Errorf("pga column %q: unknown acceleration unit %q", name, unit)
			}
			r.PGAColumn, r.PGAUnit = name, unit
			return nil
		}
	}
	switch {
	case bare != "" && unitCol != "":
		r.PGAColumn, r.PGAUnitCol = bare, unitCol
	case bare != "" && format != nil && format.AccelUnit != "":
		r.PGAColumn, r.PGAUnit = bare, format.AccelUnit
	case bare != "":
		return errors.New("pga column has no unit: provide acceleration_unit or name the column pga(<unit>)")
	default:
		return errors.New("no pga column found")
	}
	return nil
}

// Fault records one failed normalization step. Faults are row-local and
// never abort the row.
type Fault struct {
	Step string
	Err  error
}

func (f Fault) String() string {
	return f.Step + ": " + f.Err.Error()
}

// RowResult is the outcome of normalizing one raw row. Row always holds
// every source field; the sa, event_time and pga keys are overwritten with
// typed values when their steps succeed. Dropped marks a row rejected by
// the unit cross check.
type RowResult struct {
	Row     schema.Record
	Faults  []Fault
	Dropped bool
}

// Normalizer applies per-row normalization for one resolved flatfile
// layout.
type Normalizer struct {
	res    *Resolution
	format *Format
}

// NewNormalizer resolves the structural layout for the given headers and
// returns a row normalizer bound to it.
func NewNormalizer(headers []string, format *Format) (*Normalizer, error) {
	res, err := Resolve(headers, format)
	if err != nil {
		return nil, err
	}
	return &Normalizer{res: res, format: format}, nil
}

// Resolution exposes the structural layout the normalizer is bound to.
func (n *Normalizer) Resolution() *Resolution {
	return n.res
}

// NormalizeRow runs the normalization steps over one raw row: spectrum
// interpolation, event-time assembly, PGA conversion, the format hook and
// the unit cross check. Each step is fault isolated.
func (n *Normalizer) NormalizeRow(raw map[string]string) RowResult {
	row := make(schema.Record, len(raw)+4)
	for k, v := range raw {
		row[k] = v
	}
	result := RowResult{Row: row}
	fault := func(step string, err error) {
		result.Faults = append(result.Faults, Fault{Step: step, Err: err})
	}

	if err := n.spectrum(raw, row); err != nil {
		fault("sa", err)
	}
	if err := n.eventTime(raw, row); err != nil {
		fault("event_time", err)
	}
	if err := n.pga(raw, row); err != nil {
		fault("pga", err)
	}
	if n.format != nil && n.format.Hook != nil {
		if err := n.format.Hook(row); err != nil {
			fault("hook", err)
		}
	}
	result.Dropped = !n.unitCheck(row)
	return result
}

// spectrum reads the observed ordinates and interpolates them onto the
// reference period grid. An absent column reads as NaN; an unparsable cell
// fails the whole spectrum.
func (n *Normalizer) spectrum(raw map[string]string, row schema.Record) error {
	values := make([]float64, len(n.res.SAColumns))
	for i, name := range n.res.SAColumns {
		cell, ok := raw[name]
		if !ok {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		values[i] = v
	}
	sa, err := interpLogLog(schema.ReferencePeriods(), n.res.SAPeriods, values)
	if err != nil {
		return err
	}
	row["sa"] = sa
	return nil
}

// eventTime normalizes the single datetime column, or assembles one from
// the split year..second columns.
func (n *Normalizer) eventTime(raw map[string]string, row schema.Record) error {
	if len(n.res.EventTime) == 1 {
		dt, err := NormalizeDTime(raw[n.res.EventTime[0]])
		if err != nil {
			return err
		}
		row["event_time"] = dt
		return nil
	}
	var parts [6]int
	for i, name := range n.res.EventTime {
		if name == "" {
			continue
		}
		v, err := intCell(raw[name])
		if err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		parts[i] = v
	}
	dt, err := buildDTime(parts[0], parts[1], parts[2], parts[3], parts[4], parts[5])
	if err != nil {
		return err
	}
	row["event_time"] = dt
	return nil
}

// pga parses the PGA cell and converts it to cm/s/s, taking the unit from
// the resolved fixed unit or from the per-row unit column.
func (n *Normalizer) pga(raw map[string]string, row schema.Record) error {
	cell, ok := raw[n.res.PGAColumn]
	if !ok {
		return fmt.Errorf("column %q absent", n.res.PGAColumn)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return fmt.Errorf("column %q: %w", n.res.PGAColumn, err)
	}
	unit := n.res.PGAUnit
	if n.res.PGAUnitCol != "" {
		unit, ok = raw[n.res.PGAUnitCol]
		if !ok {
			return fmt.Errorf("column %q absent", n.res.PGAUnitCol)
		}
	}
	converted, err := units.ConvertAccel(v, unit, "cm/s/s")
	if err != nil {
		return err
	}
	row["pga"] = converted
	return nil
}

// unitCheck compares PGA expressed in g against the shortest-period
// spectral ordinate. A finite rounded ratio of 10 or more between the two
// means the source mislabeled its units; the row is rejected. Rows whose
// PGA or spectrum is unavailable pass; a raw string in the pga slot means
// the conversion step faulted, and a zero on either side leaves no finite
// ratio to compare.
func (n *Normalizer) unitCheck(row schema.Record) bool {
	pga, ok := row["pga"].(float64)
	if !ok {
		return true
	}
	sa, ok := row["sa"].([]float64)
	if !ok || len(sa) == 0 {
		return true
	}
	pgaG := pga / (100 * units.Gravity)
	sa0 := sa[0]
	if math.IsNaN(pgaG) || math.IsInf(pgaG, 0) || math.IsNaN(sa0) || math.IsInf(sa0, 0) {
		return true
	}
	ratio := math.Abs(math.Max(pgaG, sa0) / math.Min(pgaG, sa0))
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return true
	}
	return math.Round(ratio) < 10
}

// intCell parses one split event-time cell. An empty cell reads as zero.
func intCell(cell string) (int, error) {
	if cell == "" {
		return 0, nil
	}
	return strconv.Atoi(strings.TrimSpace(cell))
}
