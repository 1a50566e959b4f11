package restserver

import (
	"time"

	"github.com/chrissnell/nocturne/internal/nights"
	"github.com/chrissnell/nocturne/pkg/solar"
)

func transformSunEvent(date time.Time, lat, lon float64, zenith solar.Zenith, loc *time.Location, ev solar.SolarEvent) SunReply {
	return SunReply{
		Date:             date.Format("2006-01-02"),
		Latitude:         lat,
		Longitude:        lon,
		Zenith:           zenith.String(),
		TimeZone:         loc.String(),
		Sunrise:          ev.Sunrise,
		Sunset:           ev.Sunset,
		Condition:        ev.Condition.String(),
		DayLengthSeconds: int64(ev.DayLength() / time.Second),
	}
}

func transformSummary(s nights.Summary) SummaryReply {
	return SummaryReply{
		FixCount:            s.FixCount,
		First:               s.First,
		Last:                s.Last,
		DurationSeconds:     s.Duration.Seconds(),
		MeanIntervalSeconds: s.MeanInterval.Seconds(),
		Latitude:            s.Latitude,
		Longitude:           s.Longitude,
		LatitudeSD:          s.LatitudeSD,
		LongitudeSD:         s.LongitudeSD,
	}
}

// transformNights pairs nights with their summaries. ids, when given, is parallel to ns.
func transformNights(ns []nights.Night, ids []string) []NightReply {
	replies := make([]NightReply, 0, len(ns))
	for i, n := range ns {
		reply := NightReply{
			BoundaryKey: n.BoundaryKey,
			Summary:     transformSummary(nights.Summarize(n)),
			Fixes:       n.Fixes,
		}
		if i < len(ids) {
			reply.ID = ids[i]
		}
		replies = append(replies, reply)
	}
	return replies
}

func transformStoredNights(stored []nights.StoredNight) []NightReply {
	ns := make([]nights.Night, 0, len(stored))
	ids := make([]string, 0, len(stored))
	for _, sn := range stored {
		ns = append(ns, sn.Night)
		ids = append(ids, sn.ID)
	}
	return transformNights(ns, ids)
}
