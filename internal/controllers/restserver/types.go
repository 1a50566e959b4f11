package restserver

import (
	"time"

	"github.com/chrissnell/nocturne/internal/nights"
	"github.com/chrissnell/nocturne/internal/storage"
)

// SunReply is the body of GET /sun. Absent events are null.
type SunReply struct {
	Date             string     `json:"date"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	Zenith           string     `json:"zenith"`
	TimeZone         string     `json:"tz"`
	Sunrise          *time.Time `json:"sunrise"`
	Sunset           *time.Time `json:"sunset"`
	Condition        string     `json:"condition"`
	DayLengthSeconds int64      `json:"day_length_seconds"`
}

// NightsRequest is the body of POST /nights. Empty option names fall back to the
// server's configuration.
type NightsRequest struct {
	Track    string          `json:"track"`
	Strategy string          `json:"strategy"`
	Zenith   string          `json:"zenith"`
	DayBasis string          `json:"day_basis"`
	Fixes    []nights.GeoFix `json:"fixes"`
}

// NightReply is one night with its summary
type NightReply struct {
	ID          string                 `json:"id,omitempty"`
	BoundaryKey time.Time              `json:"boundary_key"`
	Summary     SummaryReply           `json:"summary"`
	Fixes       []nights.ClassifiedFix `json:"fixes"`
}

// SummaryReply reports a night summary with durations in seconds
type SummaryReply struct {
	FixCount            int       `json:"fix_count"`
	First               time.Time `json:"first"`
	Last                time.Time `json:"last"`
	DurationSeconds     float64   `json:"duration_seconds"`
	MeanIntervalSeconds float64   `json:"mean_interval_seconds"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	LatitudeSD          float64   `json:"latitude_sd"`
	LongitudeSD         float64   `json:"longitude_sd"`
}

// NightsReply is the body of POST /nights and GET /tracks/{track}/nights
type NightsReply struct {
	Track    string       `json:"track,omitempty"`
	Strategy string       `json:"strategy,omitempty"`
	Stored   bool         `json:"stored"`
	Nights   []NightReply `json:"nights"`
}

// HealthReply is the body of GET /healthz
type HealthReply struct {
	Status  string              `json:"status"`
	Storage *storage.HealthData `json:"storage,omitempty"`
}
