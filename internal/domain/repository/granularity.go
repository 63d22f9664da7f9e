package repository

import "time"

// Granularity selects the rates table resolution: hourly or daily.
type Granularity int

const (
	GranHourly Granularity = 0
	GranDaily  Granularity = 1
)

// IsValidGranularity returns true if g is a supported granularity.
func IsValidGranularity(g Granularity) bool {
	return g == GranHourly || g == GranDaily
}

// Unit returns one step of the granularity, used for shift arithmetic and
// extremum neighbor offsets.
func (g Granularity) Unit() time.Duration {
	if g == GranDaily {
		return 24 * time.Hour
	}
	return time.Hour
}

// Suffix is appended to the base rates table name for daily tables.
func (g Granularity) Suffix() string {
	if g == GranDaily {
		return "_day"
	}
	return ""
}

// NormalizeGranularity converts the raw day flag to a valid granularity.
func NormalizeGranularity(day int) Granularity {
	if day == 1 {
		return GranDaily
	}
	return GranHourly
}
