package normalize

import (
	"strconv"
	"strings"
	"time"
)

// fullDateLayouts are the layouts that carry a complete calendar date.
var fullDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006 Jan 2",
	"2 January 2006",
	"January 2, 2006",
}

// partialDateLayouts carry a year and possibly a month but no day.
var partialDateLayouts = []string{
	"2006-01",
	"2006/01",
	"2006 Jan",
	"2006",
}

// ParseDate parses a publication date. Only complete dates produce a
// non-nil time (midnight UTC of that calendar day); partial dates such as
// "2021-03" or "2021" produce nil but still report the year. Unparseable
// input reports year 0.
func ParseDate(raw string) (*time.Time, int) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, 0
	}

	for _, layout := range fullDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := calendarDate(t)
			return &d, d.Year()
		}
	}
	for _, layout := range partialDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return nil, t.Year()
		}
	}
	return nil, leadingYear(s)
}

// DateFromParts builds a date from separate year, month and day fields as
// they appear in PubMed XML. Month may be numeric or an English name.
// A missing or invalid month or day yields a nil date with the year kept.
func DateFromParts(year, month, day string) (*time.Time, int) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y <= 0 {
		return nil, 0
	}

	m, ok := ParseMonth(month)
	if !ok {
		return nil, y
	}
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || d < 1 || d > 31 {
		return nil, y
	}

	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.Month() != m {
		// Day overflowed into the next month, e.g. "Feb 30".
		return nil, y
	}
	return &t, y
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseMonth parses a numeric or English month name.
func ParseMonth(month string) (time.Month, bool) {
	s := strings.ToLower(strings.TrimSpace(month))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n), true
		}
		return 0, false
	}
	m, ok := monthNames[s]
	return m, ok
}

// leadingYear extracts a plausible four digit year from the start of
// strings like "2020 Jan-Feb" or "2020-2021".
func leadingYear(s string) int {
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 1800 || y > 2200 {
		return 0
	}
	if len(s) > 4 && s[4] >= '0' && s[4] <= '9' {
		return 0
	}
	return y
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
