// Package timeline imports Google Timeline (Android) exports into the engine.
package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"visitlog/internal/visits"
)

// Document is the root of an Android Timeline JSON export.
type Document struct {
	RawSignals []RawSignal `json:"rawSignals"`
}

// RawSignal is a single signal entry. Only positions are imported.
type RawSignal struct {
	Position *Position `json:"position,omitempty"`
}

// Position is a position reading from the export.
type Position struct {
	LatLng    string  `json:"LatLng"`         // "37.422°, -122.084°"
	AccuracyM float64 `json:"accuracyMeters"` // meters
	Source    string  `json:"source"`         // GPS, WIFI, CELL, UNKNOWN
	Timestamp string  `json:"timestamp"`      // ISO 8601
}

// Stats tracks import progress.
type Stats struct {
	Total    int `json:"total"`
	Parsed   int `json:"parsed"`
	Recorded int `json:"recorded"`
	Errors   int `json:"errors"`
}

// Progress is reported while an import runs.
type Progress struct {
	Stats    Stats  `json:"stats"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Complete bool   `json:"complete"`
}

// Recorder accepts fixes. *visits.Engine implements it.
type Recorder interface {
	Record(ctx context.Context, fix visits.Fix) (int64, error)
}

// progressEvery is how many recorded fixes pass between progress reports.
const progressEvery = 500

// ParseLatLng extracts latitude and longitude from a string like "37.422°, -122.084°".
func ParseLatLng(s string) (lat, lon float64, err error) {
	s = strings.ReplaceAll(s, "°", "")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid LatLng format: %s", s)
	}

	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}
	return lat, lon, nil
}

// Parse decodes an export.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse timeline JSON: %w", err)
	}
	return &doc, nil
}

// Positions counts the signals carrying a position.
func (d *Document) Positions() int {
	n := 0
	for _, sig := range d.RawSignals {
		if sig.Position != nil {
			n++
		}
	}
	return n
}

// Fixes converts positions into fixes ordered by timestamp. Positions that
// cannot be parsed are returned as errors and skipped.
func (d *Document) Fixes() ([]visits.Fix, []error) {
	var (
		fixes []visits.Fix
		errs  []error
	)
	for i, sig := range d.RawSignals {
		if sig.Position == nil {
			continue
		}
		pos := sig.Position

		lat, lon, err := ParseLatLng(pos.LatLng)
		if err != nil {
			errs = append(errs, fmt.Errorf("signal %d: %w", i, err))
			continue
		}

		t, err := time.Parse(time.RFC3339, pos.Timestamp)
		if err != nil {
			t, err = time.Parse("2006-01-02T15:04:05.000-07:00", pos.Timestamp)
			if err != nil {
				errs = append(errs, fmt.Errorf("signal %d: invalid timestamp %q: %w", i, pos.Timestamp, err))
				continue
			}
		}

		fix := visits.Fix{Lat: lat, Lon: lon, Timestamp: t.UnixMilli()}
		if pos.AccuracyM != 0 {
			acc := float32(pos.AccuracyM)
			fix.Accuracy = &acc
		}
		fixes = append(fixes, fix)
	}

	// Merges assume time moves forward.
	sort.SliceStable(fixes, func(i, j int) bool { return fixes[i].Timestamp < fixes[j].Timestamp })
	return fixes, errs
}

// Import parses r and records every position in time order. Fixes the engine
// rejects as invalid are counted as errors; any other record failure stops the
// import. progress may be nil.
func Import(ctx context.Context, r io.Reader, rec Recorder, progress func(Progress)) (Stats, error) {
	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
	}

	report(Progress{Message: "Parsing timeline file..."})
	doc, err := Parse(r)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: doc.Positions()}
	report(Progress{Stats: stats, Message: fmt.Sprintf("Found %d positions, extracting...", stats.Total)})

	fixes, parseErrs := doc.Fixes()
	stats.Parsed = len(fixes)
	stats.Errors = len(parseErrs)
	report(Progress{Stats: stats, Message: fmt.Sprintf("Parsed %d positions, recording...", stats.Parsed)})

	for i, fix := range fixes {
		if _, err := rec.Record(ctx, fix); err != nil {
			if !errors.Is(err, visits.ErrInvalidInput) {
				return stats, fmt.Errorf("record position %d: %w", i, err)
			}
			stats.Errors++
		} else {
			stats.Recorded++
		}

		if (i+1)%progressEvery == 0 {
			report(Progress{Stats: stats, Message: fmt.Sprintf("Recorded %d/%d positions...", i+1, len(fixes))})
		}
	}

	report(Progress{
		Stats:    stats,
		Message:  fmt.Sprintf("Import complete: %d recorded, %d errors", stats.Recorded, stats.Errors),
		Complete: true,
	})
	return stats, nil
}
