package util

import (
	"strings"
	"time"
)

// targetFormats is the ordered list of accepted query date formats.
// First match wins; the order matters because the first two are ambiguous
// for days <= 12.
var targetFormats = []string{
	"2006-02-01 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTargetDate parses a query target timestamp against the accepted
// formats. Returns (t, true) if any format matched.
func ParseTargetDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, f := range targetFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AlignToUnit truncates t to the granularity step boundary.
func AlignToUnit(t time.Time, unit time.Duration) time.Time {
	return t.Truncate(unit)
}
