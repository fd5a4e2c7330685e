// Package server exposes the engine over HTTP: device ingestion endpoints
// (OwnTracks, GPSLogger) and a JSON API for places, names, status and exports.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"visitlog/internal/export"
	"visitlog/internal/geocode"
	"visitlog/internal/store"
	"visitlog/internal/visits"
)

// Engine is the part of *visits.Engine the server uses.
type Engine interface {
	Record(ctx context.Context, fix visits.Fix) (int64, error)
	ListPlaces(ctx context.Context, limit int) ([]store.Place, error)
	Place(ctx context.Context, id int64) (*store.Place, error)
	ListRawFixes(ctx context.Context, windowStart *int64) ([]store.RawFix, error)
	LastIngestTimestamp(ctx context.Context) (int64, error)
	SetName(ctx context.Context, lat, lon float64, name string) error
	RemoveName(ctx context.Context, lat, lon float64) error
	FindName(ctx context.Context, lat, lon float64) (string, bool, error)
	ListNames(ctx context.Context) ([]store.NamedLocation, error)
}

// Options carries the optional collaborators. Nil fields disable their routes.
type Options struct {
	Exporter *export.Exporter
	Geocoder *geocode.Service
	Metrics  http.Handler
}

// Server routes HTTP requests to the engine and its optional collaborators.
type Server struct {
	engine   Engine
	exporter *export.Exporter
	geocoder *geocode.Service
	metrics  http.Handler
	logger   *zap.Logger
	now      func() time.Time
}

// New returns a Server for engine. A nil logger discards logs.
func New(engine Engine, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:   engine,
		exporter: opts.Exporter,
		geocoder: opts.Geocoder,
		metrics:  opts.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /owntracks", s.handleOwnTracks)
	mux.HandleFunc("GET /gpslogger", s.handleGPSLogger)

	mux.HandleFunc("POST /api/fixes", s.handlePostFix)
	mux.HandleFunc("GET /api/fixes", s.handleListFixes)
	mux.HandleFunc("GET /api/places", s.handleListPlaces)
	mux.HandleFunc("GET /api/places/{id}", s.handleGetPlace)
	mux.HandleFunc("GET /api/trajectory", s.handleTrajectory)

	mux.HandleFunc("GET /api/names", s.handleListNames)
	mux.HandleFunc("PUT /api/names", s.handleSetName)
	mux.HandleFunc("DELETE /api/names", s.handleRemoveName)
	mux.HandleFunc("GET /api/names/lookup", s.handleLookupName)
	mux.HandleFunc("GET /api/names/suggest", s.handleSuggestName)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/export/summary", s.handleExport(exportSummary))
	mux.HandleFunc("POST /api/export/full", s.handleExport(exportFull))
	mux.HandleFunc("POST /api/import/timeline", s.handleImportTimeline)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.withRequestLog(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withRequestLog tags each request with an X-Request-ID and logs its outcome.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, visits.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, visits.ErrWriteConflict):
		return http.StatusConflict
	case errors.Is(err, visits.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, export.ErrNothingToExport):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", visits.Kind(err)),
			zap.Error(err),
		)
	}
	writeErrorMessage(w, status, err.Error())
}
