package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"visitlog/internal/export"
	"visitlog/internal/visits"
)

// OwnTracksPayload is the OwnTracks location message.
type OwnTracksPayload struct {
	Type      string   `json:"_type"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Timestamp int64    `json:"tst"` // epoch seconds
	TrackerID string   `json:"tid"`
	Accuracy  *float64 `json:"acc,omitempty"` // meters
}

func (p OwnTracksPayload) fix() visits.Fix {
	fix := visits.Fix{Lat: p.Lat, Lon: p.Lon, Timestamp: p.Timestamp * 1000}
	if p.Accuracy != nil {
		acc := float32(*p.Accuracy)
		fix.Accuracy = &acc
	}
	return fix
}

// POST /owntracks - OwnTracks compatible endpoint
func (s *Server) handleOwnTracks(w http.ResponseWriter, r *http.Request) {
	var payload OwnTracksPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	// Ignore non-location messages
	if payload.Type != "location" {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	if _, err := s.engine.Record(r.Context(), payload.fix()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, []any{})
}

// GET /gpslogger - GPSLogger compatible endpoint
func (s *Server) handleGPSLogger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid lat")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid lon")
		return
	}

	fix := visits.Fix{Lat: lat, Lon: lon, Timestamp: s.parseTime(q.Get("time"))}
	if accStr := q.Get("acc"); accStr != "" {
		acc, err := strconv.ParseFloat(accStr, 32)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid acc")
			return
		}
		a := float32(acc)
		fix.Accuracy = &a
	}

	if _, err := s.engine.Record(r.Context(), fix); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// parseTime accepts epoch seconds or RFC 3339 and returns epoch milliseconds.
// Anything else, including an empty value, means now.
func (s *Server) parseTime(v string) int64 {
	if v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return ts * 1000
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UnixMilli()
		}
	}
	return s.now().UnixMilli()
}

// POST /api/fixes - records one fix in the export wire format
func (s *Server) handlePostFix(w http.ResponseWriter, r *http.Request) {
	var rec export.RawFixRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	placeID, err := s.engine.Record(r.Context(), rec.ToFix())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"place_id": placeID})
}
