package restserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/nocturne/internal/storage"
	"github.com/chrissnell/nocturne/pkg/config"
	"github.com/chrissnell/nocturne/pkg/responseformat"
)

var edt = time.FixedZone("", -4*3600)

func newTestController(t *testing.T, withStore bool) *Controller {
	t.Helper()

	cfg := config.Defaults()
	var store storage.NightStore
	if withStore {
		cfg.Storage = config.StorageData{
			Backend:    config.BackendSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "nights.db"),
		}
		var err error
		store, err = storage.New(context.Background(), cfg.Storage, nil)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
	}

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, cfg, store, nil)
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	return ctrl
}

func do(t *testing.T, ctrl *Controller, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
}

func TestServerAddress(t *testing.T) {
	ctrl := newTestController(t, false)
	if ctrl.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("Addr = %q, expected 0.0.0.0:8080", ctrl.Server.Addr)
	}
}

func TestGetHealth(t *testing.T) {
	rec := do(t, newTestController(t, false), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	var reply HealthReply
	decode(t, rec, &reply)
	if reply.Status != "ok" || reply.Storage != nil {
		t.Errorf("unexpected reply: %+v", reply)
	}

	rec = do(t, newTestController(t, true), http.MethodGet, "/healthz", "")
	decode(t, rec, &reply)
	if rec.Code != http.StatusOK || reply.Storage == nil || reply.Storage.Status != storage.StatusHealthy {
		t.Errorf("expected a healthy store, got %d %+v", rec.Code, reply)
	}
}

func TestGetSun(t *testing.T) {
	ctrl := newTestController(t, false)

	rec := do(t, ctrl, http.MethodGet, "/sun?lat=40&lon=-75&date=2016-10-07", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var reply SunReply
	decode(t, rec, &reply)

	sunrise := time.Date(2016, 10, 7, 11, 2, 59, 0, time.UTC)
	sunset := time.Date(2016, 10, 7, 22, 31, 31, 0, time.UTC)
	if reply.Sunrise == nil || !reply.Sunrise.Equal(sunrise) {
		t.Errorf("Sunrise = %v, expected %v", reply.Sunrise, sunrise)
	}
	if reply.Sunset == nil || !reply.Sunset.Equal(sunset) {
		t.Errorf("Sunset = %v, expected %v", reply.Sunset, sunset)
	}
	if reply.Condition != "normal" || reply.Zenith != "official" || reply.TimeZone != "UTC" {
		t.Errorf("unexpected reply: %+v", reply)
	}
	if reply.DayLengthSeconds != int64(sunset.Sub(sunrise).Seconds()) {
		t.Errorf("DayLengthSeconds = %d", reply.DayLengthSeconds)
	}
}

func TestGetSunInTimeZone(t *testing.T) {
	if _, err := time.LoadLocation("America/New_York"); err != nil {
		t.Skipf("tzdata not available: %v", err)
	}

	rec := do(t, newTestController(t, false), http.MethodGet, "/sun?lat=40&lon=-75&date=2016-10-08&tz=America/New_York", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var reply SunReply
	decode(t, rec, &reply)
	sunrise := time.Date(2016, 10, 8, 7, 4, 0, 0, edt)
	if reply.Sunrise == nil || !reply.Sunrise.Equal(sunrise) {
		t.Errorf("Sunrise = %v, expected %v", reply.Sunrise, sunrise)
	}
	if !strings.Contains(rec.Body.String(), "-04:00") {
		t.Errorf("expected local times in the body, got %s", rec.Body.String())
	}
}

func TestGetSunPolar(t *testing.T) {
	ctrl := newTestController(t, false)

	tests := []struct {
		name      string
		date      string
		condition string
		dayLength int64
	}{
		{"midsummer", "2016-06-21", "polar-day", 86400},
		{"midwinter", "2016-12-21", "polar-night", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, ctrl, http.MethodGet, "/sun?lat=69.65&lon=18.96&date="+tt.date, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var reply SunReply
			decode(t, rec, &reply)
			if reply.Sunrise != nil || reply.Sunset != nil {
				t.Errorf("expected no events, got %v / %v", reply.Sunrise, reply.Sunset)
			}
			if reply.Condition != tt.condition || reply.DayLengthSeconds != tt.dayLength {
				t.Errorf("got %s/%d, expected %s/%d", reply.Condition, reply.DayLengthSeconds, tt.condition, tt.dayLength)
			}
			if !strings.Contains(rec.Body.String(), `"sunrise":null`) {
				t.Errorf("expected a null sunrise, got %s", rec.Body.String())
			}
		})
	}
}

func TestGetSunErrors(t *testing.T) {
	ctrl := newTestController(t, false)

	tests := []struct {
		name string
		url  string
	}{
		{"missing lat", "/sun?lon=-75"},
		{"bad lat", "/sun?lat=north&lon=-75"},
		{"bad lon", "/sun?lat=40&lon=west"},
		{"lat out of range", "/sun?lat=91&lon=-75"},
		{"lon out of range", "/sun?lat=40&lon=181"},
		{"bad date", "/sun?lat=40&lon=-75&date=10/07/2016"},
		{"bad zenith", "/sun?lat=40&lon=-75&zenith=golden"},
		{"bad tz", "/sun?lat=40&lon=-75&tz=Mars/Olympus_Mons"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, ctrl, http.MethodGet, tt.url, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, expected 400", rec.Code)
			}
			var body responseformat.ErrorResponse
			decode(t, rec, &body)
			if body.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestGetSunMsgPack(t *testing.T) {
	rec := do(t, newTestController(t, false), http.MethodGet, "/sun?lat=40&lon=-75&date=2016-10-07&format=msgpack", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != responseformat.ContentTypeMsgPack {
		t.Errorf("Content-Type = %q", got)
	}
}

const nightsBody = `{
	"track": "collar-7",
	"fixes": [
		{"timestamp": "2016-10-09T05:00:00-04:00", "latitude": 40.01, "longitude": -75.01},
		{"timestamp": "2016-10-08T22:31:00-04:00", "latitude": 40.0, "longitude": -75.0},
		{"timestamp": "2016-10-09T12:00:00-04:00", "latitude": 40.5, "longitude": -75.5}
	]
}`

func checkNight(t *testing.T, reply NightsReply) {
	t.Helper()
	if len(reply.Nights) != 1 {
		t.Fatalf("got %d nights, expected 1: %+v", len(reply.Nights), reply)
	}
	n := reply.Nights[0]
	key := time.Date(2016, 10, 9, 0, 0, 0, 0, edt)
	if !n.BoundaryKey.Equal(key) {
		t.Errorf("BoundaryKey = %v, expected %v", n.BoundaryKey, key)
	}
	if len(n.Fixes) != 2 || n.Summary.FixCount != 2 {
		t.Fatalf("expected two fixes, got %+v", n)
	}
	if !n.Fixes[0].IsAfterSunset || !n.Fixes[1].IsBeforeSunrise {
		t.Errorf("unexpected flags: %+v", n.Fixes)
	}
	if n.Summary.DurationSeconds != (6*time.Hour + 29*time.Minute).Seconds() {
		t.Errorf("DurationSeconds = %v", n.Summary.DurationSeconds)
	}
}

func TestPostNights(t *testing.T) {
	rec := do(t, newTestController(t, false), http.MethodPost, "/nights", nightsBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var reply NightsReply
	decode(t, rec, &reply)
	checkNight(t, reply)
	if reply.Stored || reply.Nights[0].ID != "" {
		t.Errorf("expected nothing stored without a store, got %+v", reply)
	}
	if reply.Strategy != "shifted-midnight" {
		t.Errorf("Strategy = %q", reply.Strategy)
	}
}

func TestPostNightsStoresAndLists(t *testing.T) {
	ctrl := newTestController(t, true)

	rec := do(t, ctrl, http.MethodPost, "/nights", nightsBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var posted NightsReply
	decode(t, rec, &posted)
	if !posted.Stored || posted.Nights[0].ID == "" {
		t.Fatalf("expected the night to be stored, got %+v", posted)
	}

	rec = do(t, ctrl, http.MethodGet, "/tracks/collar-7/nights", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var listed NightsReply
	decode(t, rec, &listed)
	checkNight(t, listed)
	if listed.Nights[0].ID != posted.Nights[0].ID || listed.Track != "collar-7" {
		t.Errorf("listed %+v, expected the posted night", listed)
	}

	rec = do(t, ctrl, http.MethodGet, "/tracks/collar-8/nights", "")
	decode(t, rec, &listed)
	if rec.Code != http.StatusOK || len(listed.Nights) != 0 {
		t.Errorf("expected no nights for an unknown track, got %d %+v", rec.Code, listed)
	}
}

func TestPostNightsErrors(t *testing.T) {
	ctrl := newTestController(t, false)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "fixes"},
		{"unknown field", `{"fixes": [], "colour": "blue"}`},
		{"unknown strategy", `{"strategy": "dusk-to-dawn", "fixes": []}`},
		{"unknown zenith", `{"zenith": "golden", "fixes": []}`},
		{"unknown day basis", `{"day_basis": "sidereal", "fixes": []}`},
		{"latitude out of range", `{"fixes": [{"timestamp": "2016-10-08T22:31:00-04:00", "latitude": 95, "longitude": -75}]}`},
		{"missing timestamp", `{"fixes": [{"latitude": 40, "longitude": -75}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, ctrl, http.MethodPost, "/nights", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, expected 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPostNightsOptions(t *testing.T) {
	ctrl := newTestController(t, false)
	body := strings.Replace(nightsBody, `"track": "collar-7",`, `"strategy": "previous-sunset", "day_basis": "utc",`, 1)

	rec := do(t, ctrl, http.MethodPost, "/nights", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var reply NightsReply
	decode(t, rec, &reply)
	if reply.Strategy != "previous-sunset" {
		t.Errorf("Strategy = %q, expected previous-sunset", reply.Strategy)
	}
	if len(reply.Nights) == 0 {
		t.Error("expected at least one night")
	}
}

func TestTrackNightsWithoutStore(t *testing.T) {
	rec := do(t, newTestController(t, false), http.MethodGet, "/tracks/collar-7/nights", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, expected 404", rec.Code)
	}
}

func TestRouting(t *testing.T) {
	ctrl := newTestController(t, false)

	if rec := do(t, ctrl, http.MethodGet, "/nights", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /nights status = %d, expected 405", rec.Code)
	}
	if rec := do(t, ctrl, http.MethodGet, "/moon", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /moon status = %d, expected 404", rec.Code)
	}
}
