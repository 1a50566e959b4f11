// Package nights classifies geolocation fixes against sunrise and sunset and
// groups the night-time fixes into contiguous nights.
package nights

import (
	"errors"
	"time"
)

// ErrEmptyTrack is returned when nights are saved without a track name.
var ErrEmptyTrack = errors.New("track name is required")

// GeoFix is a single timestamped location sample.
type GeoFix struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// ClassifiedFix is a GeoFix together with its position relative to the day's sun events
// and the key of the night it belongs to.
type ClassifiedFix struct {
	GeoFix
	IsBeforeSunrise bool      `json:"is_before_sunrise"`
	IsDaytime       bool      `json:"is_daytime"`
	IsAfterSunset   bool      `json:"is_after_sunset"`
	BoundaryKey     time.Time `json:"boundary_key"`
}

// Night is a contiguous run of night-time fixes sharing one boundary key, in ascending
// timestamp order.
type Night struct {
	BoundaryKey time.Time       `json:"boundary_key"`
	Fixes       []ClassifiedFix `json:"fixes"`
}

// Start returns the timestamp of the night's first fix, or the zero time for an
// empty night. A night is never reopened, so one track can hold several nights
// with the same boundary key; together with the key, Start tells them apart.
func (n Night) Start() time.Time {
	if len(n.Fixes) == 0 {
		return time.Time{}
	}
	return n.Fixes[0].Timestamp
}

// StoredNight is a Night persisted for a named track.
type StoredNight struct {
	ID        string    `json:"id"`
	Track     string    `json:"track"`
	CreatedAt time.Time `json:"created_at"`
	Night
}
