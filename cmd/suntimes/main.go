package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chrissnell/nocturne/pkg/calendar"
	"github.com/chrissnell/nocturne/pkg/solar"
)

type options struct {
	lat, lon float64
	date     string
	tz       string
	zenith   string
	days     int
}

func main() {
	var opts options
	flag.Float64Var(&opts.lat, "lat", 0, "Latitude in degrees, north positive")
	flag.Float64Var(&opts.lon, "lon", 0, "Longitude in degrees, east positive")
	flag.StringVar(&opts.date, "date", "", "First date (YYYY-MM-DD), defaults to today")
	flag.StringVar(&opts.tz, "tz", "UTC", "IANA time zone the dates and times are expressed in")
	flag.StringVar(&opts.zenith, "zenith", "official", "Zenith: official, civil, nautical or astronomical")
	flag.IntVar(&opts.days, "days", 1, "Number of consecutive days to print")
	flag.Parse()

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, w io.Writer) error {
	loc, err := time.LoadLocation(opts.tz)
	if err != nil {
		return fmt.Errorf("error loading time zone: %w", err)
	}

	zenith, err := solar.ParseZenith(opts.zenith)
	if err != nil {
		return err
	}

	date := time.Now().In(loc)
	if opts.date != "" {
		date, err = time.ParseInLocation("2006-01-02", opts.date, loc)
		if err != nil {
			return fmt.Errorf("error parsing date: %w", err)
		}
	}
	days := opts.days
	if days < 1 {
		days = 1
	}

	fmt.Fprintf(w, "Sun times for %.4f, %.4f (%s zenith, %s)\n", opts.lat, opts.lon, zenith, loc)
	for i := 0; i < days; i++ {
		day := calendar.AddDays(date, i)
		ev, err := solar.Events(day, opts.lat, opts.lon, zenith, loc)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s  sunrise %-8s  sunset %-8s  day %-9s  %s\n",
			day.Format("2006-01-02"), clockOf(ev.Sunrise), clockOf(ev.Sunset),
			ev.DayLength().Round(time.Minute), ev.Condition)
	}
	return nil
}

func clockOf(t *time.Time) string {
	if t == nil {
		return "--"
	}
	return t.Format("15:04:05")
}
