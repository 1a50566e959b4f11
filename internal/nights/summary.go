package nights

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Summary describes where and when an animal spent a night.
type Summary struct {
	BoundaryKey  time.Time     `json:"boundary_key"`
	FixCount     int           `json:"fix_count"`
	First        time.Time     `json:"first"`
	Last         time.Time     `json:"last"`
	Duration     time.Duration `json:"duration"`
	MeanInterval time.Duration `json:"mean_interval"`
	Latitude     float64       `json:"latitude"`
	Longitude    float64       `json:"longitude"`
	LatitudeSD   float64       `json:"latitude_sd"`
	LongitudeSD  float64       `json:"longitude_sd"`
}

// Summarize computes the centroid, spread and timing of a night's fixes. The spread of
// a single-fix night is zero.
func Summarize(night Night) Summary {
	s := Summary{
		BoundaryKey: night.BoundaryKey,
		FixCount:    len(night.Fixes),
	}
	if len(night.Fixes) == 0 {
		return s
	}

	lats := make([]float64, len(night.Fixes))
	lons := make([]float64, len(night.Fixes))
	for i, fix := range night.Fixes {
		lats[i] = fix.Latitude
		lons[i] = fix.Longitude
	}

	s.First = night.Fixes[0].Timestamp
	s.Last = night.Fixes[len(night.Fixes)-1].Timestamp
	s.Duration = s.Last.Sub(s.First)
	s.Latitude = stat.Mean(lats, nil)
	s.Longitude = stat.Mean(lons, nil)

	if len(night.Fixes) > 1 {
		s.LatitudeSD = stat.StdDev(lats, nil)
		s.LongitudeSD = stat.StdDev(lons, nil)
		s.MeanInterval = s.Duration / time.Duration(len(night.Fixes)-1)
	}

	return s
}

// SummarizeAll summarizes each night in order.
func SummarizeAll(nights []Night) []Summary {
	summaries := make([]Summary, len(nights))
	for i, night := range nights {
		summaries[i] = Summarize(night)
	}
	return summaries
}
