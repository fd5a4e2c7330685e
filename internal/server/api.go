package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"visitlog/internal/export"
	"visitlog/internal/status"
	"visitlog/internal/trajectory"
)

func queryCoord(r *http.Request) (lat, lon float64, ok bool) {
	var err error
	if lat, err = strconv.ParseFloat(r.URL.Query().Get("lat"), 64); err != nil {
		return 0, 0, false
	}
	if lon, err = strconv.ParseFloat(r.URL.Query().Get("lon"), 64); err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// GET /api/places?limit=N - filtered places, most recent first
func (s *Server) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	places, err := s.engine.ListPlaces(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export.PlaceRecords(places))
}

// GET /api/places/{id} - one place by id, unfiltered
func (s *Server) handleGetPlace(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid place id")
		return
	}

	p, err := s.engine.Place(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if p == nil {
		writeErrorMessage(w, http.StatusNotFound, "place not found")
		return
	}
	writeJSON(w, http.StatusOK, export.NewPlaceRecord(*p))
}

// GET /api/fixes?since=ms - raw fixes, oldest first from since, else newest first
func (s *Server) handleListFixes(w http.ResponseWriter, r *http.Request) {
	var since *int64
	if v := r.URL.Query().Get("since"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = &ts
	}

	fixes, err := s.engine.ListRawFixes(r.Context(), since)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export.RawFixRecords(fixes))
}

// GET /api/trajectory - the last 24 hours of movement
func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	track, err := trajectory.Last24Hours(r.Context(), s.engine, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

type nameRecord struct {
	ID        int64   `json:"id,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

// GET /api/names
func (s *Server) handleListNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.engine.ListNames(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]nameRecord, len(names))
	for i, n := range names {
		out[i] = nameRecord{ID: n.ID, Latitude: n.Lat, Longitude: n.Lon, Name: n.Name}
	}
	writeJSON(w, http.StatusOK, out)
}

// PUT /api/names {latitude, longitude, name}
func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	var req nameRecord
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.engine.SetName(r.Context(), req.Latitude, req.Longitude, req.Name); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/names?lat&lon
func (s *Server) handleRemoveName(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := queryCoord(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "lat and lon required")
		return
	}

	if err := s.engine.RemoveName(r.Context(), lat, lon); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/names/lookup?lat&lon
func (s *Server) handleLookupName(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := queryCoord(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "lat and lon required")
		return
	}

	name, found, err := s.engine.FindName(r.Context(), lat, lon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		writeErrorMessage(w, http.StatusNotFound, "no name at this location")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

// GET /api/names/suggest?lat&lon - reverse geocoded name suggestion
func (s *Server) handleSuggestName(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "geocoding not configured")
		return
	}
	lat, lon, ok := queryCoord(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "lat and lon required")
		return
	}

	sug, err := s.geocoder.Suggest(r.Context(), lat, lon)
	if err != nil {
		writeErrorMessage(w, http.StatusBadGateway, err.Error())
		return
	}
	if sug == nil {
		writeErrorMessage(w, http.StatusNotFound, "no suggestion")
		return
	}
	writeJSON(w, http.StatusOK, sug)
}

type statusResponse struct {
	LastIngest int64  `json:"last_ingest"`
	Since      string `json:"since"`
}

// GET /api/status - time since the last GPS update
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	last, err := s.engine.LastIngestTimestamp(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{LastIngest: last, Since: status.Describe(last, s.now())})
}

type exportKind int

const (
	exportSummary exportKind = iota
	exportFull
)

// POST /api/export/{summary,full} - writes an export through the configured sink
func (s *Server) handleExport(kind exportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.exporter == nil {
			writeErrorMessage(w, http.StatusServiceUnavailable, "export not configured")
			return
		}

		var (
			location string
			err      error
		)
		switch kind {
		case exportSummary:
			location, err = s.exporter.Summary(r.Context())
		case exportFull:
			location, err = s.exporter.Full(r.Context())
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"location": location})
	}
}
