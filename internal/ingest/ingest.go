// Package ingest reads geolocation fixes from CSV and JSON sources.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/nocturne/internal/nights"
)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// ReadCSV parses fixes from CSV with a header row naming the timestamp, latitude and
// longitude columns. Other columns are ignored. Timestamps are RFC3339 with an offset.
func ReadCSV(r io.Reader) ([]nights.GeoFix, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []nights.GeoFix{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var idx [3]int
	for i, name := range []string{"timestamp", "latitude", "longitude"} {
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("%w %q in CSV header", ErrMissingColumn, name)
		}
		idx[i] = col
	}

	fixes := []nights.GeoFix{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)

		fix, err := parseFix(record, idx)
		if err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}
		fixes = append(fixes, fix)
	}

	sortFixes(fixes)
	return fixes, nil
}

func parseFix(record []string, idx [3]int) (nights.GeoFix, error) {
	for _, i := range idx {
		if i >= len(record) {
			return nights.GeoFix{}, fmt.Errorf("expected at least %d fields, got %d", i+1, len(record))
		}
	}

	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[idx[0]]))
	if err != nil {
		return nights.GeoFix{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[idx[1]]), 64)
	if err != nil {
		return nights.GeoFix{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[idx[2]]), 64)
	if err != nil {
		return nights.GeoFix{}, fmt.Errorf("invalid longitude: %w", err)
	}

	fix := nights.GeoFix{Timestamp: ts, Latitude: lat, Longitude: lon}
	return fix, Validate(fix)
}

// ReadJSON parses a JSON array of fixes.
func ReadJSON(r io.Reader) ([]nights.GeoFix, error) {
	var fixes []nights.GeoFix
	if err := json.NewDecoder(r).Decode(&fixes); err != nil {
		return nil, fmt.Errorf("error decoding JSON fixes: %w", err)
	}
	if fixes == nil {
		fixes = []nights.GeoFix{}
	}
	if err := Normalize(fixes); err != nil {
		return nil, err
	}
	return fixes, nil
}

// Normalize validates every fix and sorts the slice in place by timestamp.
func Normalize(fixes []nights.GeoFix) error {
	for i, fix := range fixes {
		if err := Validate(fix); err != nil {
			return fmt.Errorf("fix %d: %w", i, err)
		}
	}
	sortFixes(fixes)
	return nil
}

// ReadFile reads fixes from a .csv or .json file, chosen by extension.
func ReadFile(path string) ([]nights.GeoFix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".json":
		return ReadJSON(f)
	}
	return nil, fmt.Errorf("unsupported fix file type %q (use .csv or .json)", filepath.Ext(path))
}

// Validate checks that a fix has a timestamp and coordinates in range.
func Validate(fix nights.GeoFix) error {
	if fix.Timestamp.IsZero() {
		return errors.New("missing timestamp")
	}
	if math.IsNaN(fix.Latitude) || fix.Latitude < -90 || fix.Latitude > 90 {
		return fmt.Errorf("latitude %v outside [-90, 90]", fix.Latitude)
	}
	if math.IsNaN(fix.Longitude) || fix.Longitude < -180 || fix.Longitude > 180 {
		return fmt.Errorf("longitude %v outside [-180, 180]", fix.Longitude)
	}
	return nil
}

// sortFixes orders fixes by timestamp, keeping the input order of equal timestamps
func sortFixes(fixes []nights.GeoFix) {
	sort.SliceStable(fixes, func(i, j int) bool {
		return fixes[i].Timestamp.Before(fixes[j].Timestamp)
	})
}
