package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const monthNamePattern = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

var (
	// monthYearRe matches "<month> <yyyy>", e.g. "March 2021" or "Sept. 2019".
	monthYearRe = regexp.MustCompile(`(?i)\b(` + monthNamePattern + `)\.?,?\s+(\d{4})\b`)

	// bareYearRe matches a standalone four-digit year.
	bareYearRe = regexp.MustCompile(`\b\d{4}\b`)
)

// DefaultTimeWindow is used when a query carries no month-year phrase.
var DefaultTimeWindow = MonthWindow(2019, time.January)

// MonthWindow returns the window spanning the whole month: the first instant
// of day 1 through 23:59:59 on the last day, in UTC.
func MonthWindow(year int, month time.Month) TimeWindow {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return TimeWindow{
		Year:  year,
		Month: month,
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Second),
	}
}

// ResolveTimeWindow extracts the first month-year phrase from text. It is
// total: text without one yields DefaultTimeWindow.
func ResolveTimeWindow(text string) TimeWindow {
	m := monthYearRe.FindStringSubmatch(text)
	if m == nil {
		return DefaultTimeWindow
	}
	month, ok := parseMonthName(m[1])
	if !ok {
		return DefaultTimeWindow
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return DefaultTimeWindow
	}
	return MonthWindow(year, month)
}

// parseMonthName maps a full or abbreviated month name to its number.
func parseMonthName(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), name[:3]) {
			return m, true
		}
	}
	return 0, false
}

// stripTemporal blanks out month-year phrases and bare years.
func stripTemporal(text string) string {
	text = monthYearRe.ReplaceAllString(text, " ")
	return bareYearRe.ReplaceAllString(text, " ")
}

// FilterByTime keeps the locations whose validity range overlaps the window.
// Locations with an unknown validity bound never overlap.
func FilterByTime(locations []ProfileLocation, window TimeWindow) []ProfileLocation {
	out := make([]ProfileLocation, 0, len(locations))
	for _, loc := range locations {
		if loc.ValidFrom.IsZero() || loc.ValidTo.IsZero() {
			continue
		}
		if !loc.ValidFrom.After(window.End) && !loc.ValidTo.Before(window.Start) {
			out = append(out, loc)
		}
	}
	return out
}
