package flatfile

import (
	"fmt"
	"strings"
	"time"
)

// dtimeLayout is the canonical stored form of event_time.
const dtimeLayout = "2006-01-02T15:04:05"

// dtimeLayouts are the accepted input shapes, most specific first. A bare
// year normalizes to January 1st, midnight.
var dtimeLayouts = []string{
	dtimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006",
}

// NormalizeDTime parses a timestamp in any accepted shape and re-emits it
// in canonical ISO form.
func NormalizeDTime(value string) (string, error) {
	v := strings.TrimSpace(value)
	for _, layout := range dtimeLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.Format(dtimeLayout), nil
		}
	}
	return "", fmt.Errorf("unparsable datetime %q", value)
}

// buildDTime assembles a canonical timestamp from split date and time
// columns. Components are range checked; time.Date alone would silently
// normalize an overflowing field into the next unit.
func buildDTime(year, month, day, hour, min, sec int) (string, error) {
	switch {
	case year < 1 || year > 9999:
		return "", fmt.Errorf("year %d out of range", year)
	case month < 1 || month > 12:
		return "", fmt.Errorf("month %d out of range", month)
	case hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59:
		return "", fmt.Errorf("invalid time %02d:%02d:%02d", hour, min, sec)
	}
	t := time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
	if day < 1 || t.Day() != day || t.Month() != time.Month(month) {
		return "", fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return t.Format(dtimeLayout), nil
}
