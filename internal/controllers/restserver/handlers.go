package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/nocturne/internal/ingest"
	"github.com/chrissnell/nocturne/internal/nights"
	"github.com/chrissnell/nocturne/internal/storage"
	"github.com/chrissnell/nocturne/pkg/responseformat"
	"github.com/chrissnell/nocturne/pkg/solar"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

func (h *Handlers) writeResponse(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteResponse(w, req, status, data); err != nil {
		h.controller.logger.Errorf("error encoding response for %s: %v", req.URL.Path, err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, msg string) {
	if err := h.formatter.WriteError(w, req, status, msg); err != nil {
		h.controller.logger.Errorf("error encoding error response for %s: %v", req.URL.Path, err)
	}
}

// GetHealth reports liveness and, when a store is configured, its latest health check
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	hm := h.controller.health
	if hm == nil {
		h.writeResponse(w, req, http.StatusOK, HealthReply{Status: "ok"})
		return
	}

	health := hm.Health()
	if health.LastCheck.IsZero() {
		health = hm.Check(req.Context())
	}

	if health.Status != storage.StatusHealthy {
		h.writeResponse(w, req, http.StatusServiceUnavailable, HealthReply{Status: "degraded", Storage: &health})
		return
	}
	h.writeResponse(w, req, http.StatusOK, HealthReply{Status: "ok", Storage: &health})
}

// GetSun returns the sunrise and sunset for a location and date.
// Query parameters: lat, lon (required), date (YYYY-MM-DD, default today),
// zenith (official, civil, nautical, astronomical), tz (IANA name, default UTC)
func (h *Handlers) GetSun(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	if q.Get("lat") == "" || q.Get("lon") == "" {
		h.writeError(w, req, http.StatusBadRequest, "lat and lon parameters are required")
		return
	}
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, fmt.Sprintf("invalid lat %q", q.Get("lat")))
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, fmt.Sprintf("invalid lon %q", q.Get("lon")))
		return
	}

	loc := time.UTC
	if tz := q.Get("tz"); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			h.writeError(w, req, http.StatusBadRequest, fmt.Sprintf("unknown time zone %q", tz))
			return
		}
	}

	date := time.Now().In(loc)
	if d := q.Get("date"); d != "" {
		if date, err = time.ParseInLocation("2006-01-02", d, loc); err != nil {
			h.writeError(w, req, http.StatusBadRequest, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", d))
			return
		}
	}

	zenith := h.controller.options.Zenith
	if name := q.Get("zenith"); name != "" {
		if zenith, err = solar.ParseZenith(name); err != nil {
			h.writeError(w, req, http.StatusBadRequest, err.Error())
			return
		}
	}

	ev, err := solar.Events(date, lat, lon, zenith, loc)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	h.writeResponse(w, req, http.StatusOK, transformSunEvent(date, lat, lon, zenith, loc, ev))
}

// PostNights classifies and segments the posted fixes. When a track is named and a
// store is configured the resulting nights are saved.
func (h *Handlers) PostNights(w http.ResponseWriter, req *http.Request) {
	var body NightsRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		h.writeError(w, req, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	opts, err := h.requestOptions(body)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	fixes := body.Fixes
	if fixes == nil {
		fixes = []nights.GeoFix{}
	}
	if err := ingest.Normalize(fixes); err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	classifier := nights.NewClassifier(opts, h.controller.logger)
	ns, err := classifier.Nights(req.Context(), fixes)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, solar.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		h.writeError(w, req, status, err.Error())
		return
	}

	reply := NightsReply{
		Track:    body.Track,
		Strategy: opts.Strategy.String(),
	}

	var ids []string
	if body.Track != "" && h.controller.store != nil {
		ids, err = h.controller.store.SaveNights(req.Context(), body.Track, ns)
		if err != nil {
			h.controller.logger.Errorf("error saving nights for track %s: %v", body.Track, err)
			h.writeError(w, req, http.StatusInternalServerError, "error saving nights")
			return
		}
		reply.Stored = true
	}
	reply.Nights = transformNights(ns, ids)

	h.writeResponse(w, req, http.StatusOK, reply)
}

// requestOptions overlays the options named in the request on the server defaults
func (h *Handlers) requestOptions(body NightsRequest) (nights.Options, error) {
	opts := h.controller.options
	var err error

	if body.Strategy != "" {
		if opts.Strategy, err = nights.ParseStrategy(body.Strategy); err != nil {
			return opts, err
		}
	}
	if body.Zenith != "" {
		if opts.Zenith, err = solar.ParseZenith(body.Zenith); err != nil {
			return opts, err
		}
	}
	if body.DayBasis != "" {
		if opts.Basis, err = nights.ParseDayBasis(body.DayBasis); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// GetTrackNights returns the nights stored for a track
func (h *Handlers) GetTrackNights(w http.ResponseWriter, req *http.Request) {
	if h.controller.store == nil {
		h.writeError(w, req, http.StatusNotFound, "no night store is configured")
		return
	}

	track := mux.Vars(req)["track"]
	stored, err := h.controller.store.ListNights(req.Context(), track)
	if err != nil {
		h.controller.logger.Errorf("error listing nights for track %s: %v", track, err)
		h.writeError(w, req, http.StatusInternalServerError, "error listing nights")
		return
	}

	h.writeResponse(w, req, http.StatusOK, NightsReply{
		Track:  track,
		Stored: true,
		Nights: transformStoredNights(stored),
	})
}

// NotFound replies with a JSON error for unknown paths
func (h *Handlers) NotFound(w http.ResponseWriter, req *http.Request) {
	h.writeError(w, req, http.StatusNotFound, "not found")
}

// MethodNotAllowed replies with a JSON error for known paths used with the wrong method
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, req *http.Request) {
	h.writeError(w, req, http.StatusMethodNotAllowed, "method not allowed")
}
