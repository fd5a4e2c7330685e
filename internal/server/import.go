package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"visitlog/internal/timeline"
)

// POST /api/import/timeline - Import Android Timeline JSON with SSE progress
func (s *Server) handleImportTimeline(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 500MB)
	if err := r.ParseMultipartForm(500 << 20); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorMessage(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(p timeline.Progress) {
		data, _ := json.Marshal(p)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	stats, err := timeline.Import(r.Context(), file, s.engine, send)
	if err != nil {
		s.logger.Warn("timeline import failed", zap.Error(err), zap.Int("recorded", stats.Recorded))
		send(timeline.Progress{Stats: stats, Error: err.Error(), Complete: true})
		return
	}
	s.logger.Info("timeline imported",
		zap.Int("total", stats.Total),
		zap.Int("recorded", stats.Recorded),
		zap.Int("errors", stats.Errors),
	)
}
