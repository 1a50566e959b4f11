package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/nocturne/internal/nights"
)

func TestReadCSV(t *testing.T) {
	input := `device,longitude,latitude,timestamp
collar-7,-75.0,40.0,2016-10-08T22:32:00-04:00
collar-7,-75.1,40.1,2016-10-08T22:31:00-04:00

collar-7, -75.2, 40.2, 2016-10-18T22:32:00-04:00
`
	fixes, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixes) != 3 {
		t.Fatalf("got %d fixes, expected 3", len(fixes))
	}

	// sorted by timestamp
	if fixes[0].Latitude != 40.1 || fixes[1].Latitude != 40.0 || fixes[2].Latitude != 40.2 {
		t.Errorf("unexpected order: %+v", fixes)
	}
	expected := time.Date(2016, 10, 8, 22, 31, 0, 0, time.FixedZone("", -4*3600))
	if !fixes[0].Timestamp.Equal(expected) {
		t.Errorf("Timestamp = %v, expected %v", fixes[0].Timestamp, expected)
	}
	if _, offset := fixes[0].Timestamp.Zone(); offset != -4*3600 {
		t.Errorf("offset = %d, expected the offset from the input", offset)
	}
	if fixes[2].Longitude != -75.2 {
		t.Errorf("Longitude = %v, expected -75.2", fixes[2].Longitude)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{"missing column", "timestamp,latitude\n2016-10-08T22:31:00-04:00,40\n", "longitude"},
		{"bad timestamp", "timestamp,latitude,longitude\n2016/10/08 22:31,40,-75\n", "line 2"},
		{"bad latitude", "timestamp,latitude,longitude\n2016-10-08T22:31:00-04:00,north,-75\n", "invalid latitude"},
		{"latitude out of range", "timestamp,latitude,longitude\n2016-10-08T22:31:00-04:00,-200,-75\n", "outside"},
		{"longitude out of range", "timestamp,latitude,longitude\n2016-10-08T22:31:00-04:00,40,-200\n", "outside"},
		{"short record", "timestamp,latitude,longitude\n2016-10-08T22:31:00-04:00,40\n", "fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err, tt.contains)
			}
		})
	}

	_, err := ReadCSV(strings.NewReader("time,lat,lon\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	fixes, err := ReadCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixes == nil || len(fixes) != 0 {
		t.Errorf("expected an empty slice, got %v", fixes)
	}
}

func TestReadJSON(t *testing.T) {
	input := `[
		{"timestamp": "2016-10-18T22:32:00-04:00", "latitude": 40.0, "longitude": -75.0},
		{"timestamp": "2016-10-08T22:31:00-04:00", "latitude": 40.0, "longitude": -75.0}
	]`
	fixes, err := ReadJSON(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixes) != 2 {
		t.Fatalf("got %d fixes, expected 2", len(fixes))
	}
	if !fixes[0].Timestamp.Before(fixes[1].Timestamp) {
		t.Error("expected fixes sorted by timestamp")
	}

	if _, err := ReadJSON(strings.NewReader(`[{"timestamp": "2016-10-08T22:31:00Z", "latitude": 91, "longitude": 0}]`)); err == nil {
		t.Error("expected a range error")
	}
	if _, err := ReadJSON(strings.NewReader(`[{"latitude": 40, "longitude": 0}]`)); err == nil {
		t.Error("expected a missing timestamp error")
	}
	if fixes, err := ReadJSON(strings.NewReader(`null`)); err != nil || len(fixes) != 0 {
		t.Errorf("expected no fixes, got %v, %v", fixes, err)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "fixes.csv")
	if err := os.WriteFile(csvPath, []byte("timestamp,latitude,longitude\n2016-10-08T22:31:00-04:00,40,-75\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "fixes.json")
	if err := os.WriteFile(jsonPath, []byte(`[{"timestamp":"2016-10-08T22:31:00-04:00","latitude":40,"longitude":-75}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{csvPath, jsonPath} {
		fixes, err := ReadFile(path)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
		if len(fixes) != 1 {
			t.Errorf("%s: got %d fixes, expected 1", path, len(fixes))
		}
	}

	if _, err := ReadFile(filepath.Join(dir, "fixes.gpx")); err == nil {
		t.Error("expected an error for a missing file")
	}
	gpx := filepath.Join(dir, "track.gpx")
	os.WriteFile(gpx, []byte("<gpx/>"), 0o644)
	if _, err := ReadFile(gpx); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected an unsupported type error, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	late := time.Date(2016, 10, 9, 1, 0, 0, 0, time.UTC)
	early := time.Date(2016, 10, 8, 23, 0, 0, 0, time.UTC)
	fixes := []nights.GeoFix{
		{Timestamp: late, Latitude: 40, Longitude: -75},
		{Timestamp: early, Latitude: 41, Longitude: -75},
		{Timestamp: early, Latitude: 42, Longitude: -75},
	}
	if err := Normalize(fixes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fixes[2].Timestamp.Equal(late) || fixes[0].Latitude != 41 || fixes[1].Latitude != 42 {
		t.Errorf("expected a stable sort by timestamp, got %+v", fixes)
	}

	err := Normalize([]nights.GeoFix{{Latitude: 40, Longitude: -75}})
	if err == nil || !strings.Contains(err.Error(), "fix 0") {
		t.Errorf("expected an error naming fix 0, got %v", err)
	}
}
