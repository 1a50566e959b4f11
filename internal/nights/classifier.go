package nights

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chrissnell/nocturne/pkg/calendar"
	"github.com/chrissnell/nocturne/pkg/solar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Strategy selects how a night-time fix is keyed to its night.
type Strategy int

const (
	// ShiftedMidnight keys a fix by local midnight of its day, moved to the next
	// midnight when the fix is after sunset.
	ShiftedMidnight Strategy = iota
	// PreviousSunset keys a fix by the most recent sunset at or before it.
	PreviousSunset
)

func (s Strategy) String() string {
	if s == PreviousSunset {
		return "previous-sunset"
	}
	return "shifted-midnight"
}

// ParseStrategy maps "shifted-midnight" or "previous-sunset" to a Strategy. An empty
// name selects ShiftedMidnight.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "shifted-midnight":
		return ShiftedMidnight, nil
	case "previous-sunset":
		return PreviousSunset, nil
	}
	return 0, fmt.Errorf("unknown boundary strategy %q", name)
}

// DayBasis selects which calendar day, and which timezone, the sun events of a fix are
// computed for.
type DayBasis int

const (
	// LocalDay uses the fix's calendar day in the fix's own timezone.
	LocalDay DayBasis = iota
	// UTCDay uses the fix's calendar day in UTC and produces UTC events.
	UTCDay
)

func (b DayBasis) String() string {
	if b == UTCDay {
		return "utc"
	}
	return "local"
}

// ParseDayBasis maps "local" or "utc" to a DayBasis. An empty name selects LocalDay.
func ParseDayBasis(name string) (DayBasis, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "local":
		return LocalDay, nil
	case "utc":
		return UTCDay, nil
	}
	return 0, fmt.Errorf("unknown day basis %q", name)
}

// Options configures a Classifier. The zero value classifies with the official zenith,
// the shifted-midnight strategy, local days and one worker per CPU.
type Options struct {
	Zenith   solar.Zenith
	Strategy Strategy
	Basis    DayBasis
	Workers  int
}

// Classifier derives day/night flags and boundary keys for fixes. It holds no mutable
// state and is safe for concurrent use.
type Classifier struct {
	zenith   solar.Zenith
	strategy Strategy
	basis    DayBasis
	workers  int
	logger   *zap.SugaredLogger
}

// NewClassifier creates a classifier from opts
func NewClassifier(opts Options, logger *zap.SugaredLogger) *Classifier {
	if opts.Zenith == 0 {
		opts.Zenith = solar.Official
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Classifier{
		zenith:   opts.Zenith,
		strategy: opts.Strategy,
		basis:    opts.Basis,
		workers:  opts.Workers,
		logger:   logger,
	}
}

// Strategy returns the boundary strategy in use
func (c *Classifier) Strategy() Strategy {
	return c.strategy
}

func (c *Classifier) location(fix GeoFix) *time.Location {
	if c.basis == UTCDay {
		return time.UTC
	}
	return fix.Timestamp.Location()
}

// Classify computes the sun events of the fix's day and returns a new ClassifiedFix.
// It fails only when the fix's coordinates are out of range.
func (c *Classifier) Classify(fix GeoFix) (ClassifiedFix, error) {
	loc := c.location(fix)
	ts := fix.Timestamp

	ev, err := solar.Events(ts, fix.Latitude, fix.Longitude, c.zenith, loc)
	if err != nil {
		return ClassifiedFix{}, fmt.Errorf("classifying fix at %s: %w", ts.Format(time.RFC3339), err)
	}

	cf := ClassifiedFix{
		GeoFix:          fix,
		IsBeforeSunrise: ev.Sunrise != nil && ts.Before(*ev.Sunrise),
		IsAfterSunset:   ev.Sunset != nil && ts.After(*ev.Sunset),
		IsDaytime:       ev.IsDaytime(ts),
	}

	cf.BoundaryKey = shiftedMidnight(ts, loc, cf.IsAfterSunset)
	if c.strategy == PreviousSunset {
		if key, ok := c.previousSunset(fix, loc, ev); ok {
			cf.BoundaryKey = key
		}
	}

	return cf, nil
}

// shiftedMidnight returns the start of ts's solar day in loc, the frame its sun
// events were computed in, or the next day's start once the sun has set. The key
// is expressed in ts's own timezone.
func shiftedMidnight(ts time.Time, loc *time.Location, afterSunset bool) time.Time {
	key := calendar.StartOfDay(ts, loc)
	if afterSunset {
		key = calendar.AddDays(key, 1)
	}
	return key.In(ts.Location())
}

// previousSunset picks the latest sunset not after the fix among the previous, the
// current and the next day. ok is false when none of those days has a sunset.
func (c *Classifier) previousSunset(fix GeoFix, loc *time.Location, today solar.SolarEvent) (time.Time, bool) {
	ts := fix.Timestamp
	ref := ts.In(loc)

	var best time.Time
	var found bool
	for _, offset := range []int{-1, 0, 1} {
		ev := today
		if offset != 0 {
			var err error
			ev, err = solar.Events(calendar.AddDays(ref, offset), fix.Latitude, fix.Longitude, c.zenith, loc)
			if err != nil {
				continue
			}
		}
		if ev.Sunset == nil || ev.Sunset.After(ts) {
			continue
		}
		if !found || ev.Sunset.After(best) {
			best, found = *ev.Sunset, true
		}
	}
	return best, found
}

// ClassifyAll classifies fixes in parallel and returns the results in input order.
// The first failure cancels the remaining work.
func (c *Classifier) ClassifyAll(ctx context.Context, fixes []GeoFix) ([]ClassifiedFix, error) {
	out := make([]ClassifiedFix, len(fixes))
	if len(fixes) == 0 {
		return out, nil
	}

	workers := c.workers
	if workers > len(fixes) {
		workers = len(fixes)
	}
	chunk := (len(fixes) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(fixes); start += chunk {
		start := start
		end := min(start+chunk, len(fixes))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				cf, err := c.Classify(fixes[i])
				if err != nil {
					return fmt.Errorf("fix %d: %w", i, err)
				}
				out[i] = cf
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debugf("classified %d fixes with %d workers (%v, %v)", len(fixes), workers, c.strategy, c.basis)
	return out, nil
}

// Nights classifies fixes, which must be sorted by timestamp, and segments them into nights.
func (c *Classifier) Nights(ctx context.Context, fixes []GeoFix) ([]Night, error) {
	classified, err := c.ClassifyAll(ctx, fixes)
	if err != nil {
		return nil, err
	}
	return Segment(classified), nil
}
