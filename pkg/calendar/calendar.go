// Package calendar provides the small set of calendar and timezone services that the
// solar calculator and the night classifier rely on.
package calendar

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// DayOfYear returns the Gregorian ordinal day (1-366) of t's calendar date as observed in loc.
func DayOfYear(t time.Time, loc *time.Location) int {
	y, m, d := t.In(location(loc)).Date()
	return julian.DayOfYearGregorian(y, int(m), d)
}

// StartOfDay returns local midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	loc = location(loc)
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// AddDays moves t by n calendar days, keeping the wall clock across DST changes.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// UTCOffsetHours returns the UTC offset of loc, in hours, in force at local noon of
// t's calendar date.
func UTCOffsetHours(t time.Time, loc *time.Location) float64 {
	loc = location(loc)
	y, m, d := t.In(loc).Date()
	_, offset := time.Date(y, m, d, 12, 0, 0, 0, loc).Zone()
	return float64(offset) / 3600.0
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
