// Package solar computes sunrise and sunset with the simplified solar position
// approximation used by the NOAA-style sunrise/sunset equations. Accuracy is typically
// within a few minutes at non-polar latitudes.
package solar

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/nocturne/pkg/calendar"
)

// ErrInvalidArgument is returned when a latitude or longitude is out of range.
var ErrInvalidArgument = errors.New("invalid argument")

// Condition describes the kind of day the sun has at a location.
type Condition int

const (
	// Normal days have both a sunrise and a sunset.
	Normal Condition = iota
	// PolarDay means the sun stays above the horizon.
	PolarDay
	// PolarNight means the sun stays below the horizon.
	PolarNight
)

func (c Condition) String() string {
	switch c {
	case PolarDay:
		return "polar-day"
	case PolarNight:
		return "polar-night"
	}
	return "normal"
}

// SolarEvent holds the sunrise and sunset of one calendar day. A nil Sunrise or Sunset
// means the event does not happen that day.
type SolarEvent struct {
	Sunrise   *time.Time
	Sunset    *time.Time
	Condition Condition
}

// DayLength returns the time between sunrise and sunset. Polar days are 24 hours long,
// and polar nights or days missing one of the events have no length.
func (e SolarEvent) DayLength() time.Duration {
	if e.Sunrise != nil && e.Sunset != nil {
		return e.Sunset.Sub(*e.Sunrise)
	}
	if e.Sunrise == nil && e.Sunset == nil && e.Condition == PolarDay {
		return 24 * time.Hour
	}
	return 0
}

// IsDaytime reports whether t falls in the lit part of the day. Without a sunrise the
// day is dark unless the sun never sets at all. A sunrise without a matching sunset
// stays light from sunrise onward.
func (e SolarEvent) IsDaytime(t time.Time) bool {
	if e.Sunrise == nil {
		return e.Sunset == nil && e.Condition == PolarDay
	}
	if t.Before(*e.Sunrise) {
		return false
	}
	return e.Sunset == nil || !t.After(*e.Sunset)
}

// event is the base local hour used for the approximate time of an event
type event float64

const (
	rising  event = 6.0
	setting event = 18.0
)

// Events computes the sunrise and sunset of date's calendar day, as observed in loc, for
// the given location and zenith. The results are expressed in loc; a nil loc means UTC.
func Events(date time.Time, latitude, longitude float64, zenith Zenith, loc *time.Location) (SolarEvent, error) {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return SolarEvent{}, fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidArgument, latitude)
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return SolarEvent{}, fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidArgument, longitude)
	}
	if loc == nil {
		loc = time.UTC
	}

	day := calendar.DayOfYear(date, loc)
	offset := calendar.UTCOffsetHours(date, loc)
	y, m, d := date.In(loc).Date()

	var result SolarEvent
	var absentCosH float64
	var absent bool

	for _, e := range []event{rising, setting} {
		ut, cosH, ok := universalTime(e, day, latitude, longitude, float64(zenith))
		if !ok {
			if !absent {
				absentCosH, absent = cosH, true
			}
			continue
		}

		hour, minute, second := clock(normalize(ut+offset, 24.0))
		at := time.Date(y, m, d, hour, minute, second, 0, loc)
		if e == rising {
			result.Sunrise = &at
		} else {
			result.Sunset = &at
		}
	}

	switch {
	case result.Sunrise != nil && result.Sunset != nil:
		result.Condition = Normal
	case absentCosH >= 1:
		result.Condition = PolarNight
	default:
		result.Condition = PolarDay
	}

	return result, nil
}

// universalTime returns the UTC hour of the event and the cosine of the local hour angle.
// ok is false when |cosH| >= 1, meaning the sun never reaches the zenith angle that day.
func universalTime(e event, dayOfYear int, latitude, longitude, zenith float64) (ut, cosH float64, ok bool) {
	longitudeHour := longitude / 15.0
	t := float64(dayOfYear) + ((float64(e) - longitudeHour) / 24.0)

	// sun's mean anomaly
	M := normalize(0.9856*t-3.289, 360.0)

	// sun's true longitude
	L := normalize(M+1.916*math.Sin(degToRad(M))+0.020*math.Sin(degToRad(2*M))+282.634, 360.0)

	// right ascension, moved into the same quadrant as L, in hours
	RA := normalize(radToDeg(math.Atan(0.91764*math.Tan(degToRad(L)))), 360.0)
	RA += math.Floor(L/90.0)*90.0 - math.Floor(RA/90.0)*90.0
	RA /= 15.0

	sinDec := 0.39782 * math.Sin(degToRad(L))
	cosDec := math.Cos(math.Asin(sinDec))

	cosH = (math.Cos(degToRad(zenith)) - sinDec*math.Sin(degToRad(latitude))) / (cosDec * math.Cos(degToRad(latitude)))
	if cosH >= 1 || cosH <= -1 {
		return 0, cosH, false
	}

	H := radToDeg(math.Acos(cosH))
	if e == rising {
		H = 360.0 - H
	}
	H /= 15.0

	// local mean time of the event
	T := H + RA - 0.06571*t - 6.622

	return normalize(T-longitudeHour, 24.0), cosH, true
}

// clock splits fractional hours into whole hours, minutes and seconds
func clock(hours float64) (hour, minute, second int) {
	h := math.Floor(hours)
	minutes := (hours - h) * 60.0
	mm := math.Floor(minutes)
	ss := math.Floor((minutes - mm) * 60.0)
	return int(h), int(mm), int(ss)
}

// normalize shifts value into [0, maximum) by repeated addition or subtraction of maximum
func normalize(value, maximum float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	for value < 0 {
		value += maximum
	}
	for value >= maximum {
		value -= maximum
	}
	return value
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
