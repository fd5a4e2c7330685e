// Package export writes the place summary and the raw fix history as JSON
// documents and stores them through a Sink.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"visitlog/internal/store"
	"visitlog/internal/visits"
)

// PlaceRecord is one entry of a summary export.
type PlaceRecord struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Timestamp      int64    `json:"timestamp"`
	FirstVisit     int64    `json:"first_visit"`
	VisitCount     int32    `json:"visit_count"`
	TimeSpentMs    int64    `json:"time_spent_ms"`
	Name           *string  `json:"name,omitempty"`
	AccuracyMeters *float32 `json:"accuracy_meters,omitempty"`
}

// RawFixRecord is one entry of a full export. It is also the wire format
// accepted by the ingestion endpoints.
type RawFixRecord struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Timestamp      int64    `json:"timestamp"`
	AccuracyMeters *float32 `json:"accuracy_meters,omitempty"`
}

// NewPlaceRecord converts a place. Timestamp is the last visit.
func NewPlaceRecord(p store.Place) PlaceRecord {
	return PlaceRecord{
		Latitude:       p.Lat,
		Longitude:      p.Lon,
		Timestamp:      p.LastVisit,
		FirstVisit:     p.FirstVisit,
		VisitCount:     p.VisitCount,
		TimeSpentMs:    p.LastVisit - p.FirstVisit,
		Name:           p.Name,
		AccuracyMeters: p.BestAccuracy,
	}
}

// NewRawFixRecord converts a raw fix.
func NewRawFixRecord(f store.RawFix) RawFixRecord {
	return RawFixRecord{
		Latitude:       f.Lat,
		Longitude:      f.Lon,
		Timestamp:      f.Timestamp,
		AccuracyMeters: f.Accuracy,
	}
}

// ToFix converts the record into an engine input.
func (r RawFixRecord) ToFix() visits.Fix {
	return visits.Fix{
		Lat:       r.Latitude,
		Lon:       r.Longitude,
		Timestamp: r.Timestamp,
		Accuracy:  r.AccuracyMeters,
	}
}

// PlaceRecords converts places in order.
func PlaceRecords(places []store.Place) []PlaceRecord {
	out := make([]PlaceRecord, len(places))
	for i, p := range places {
		out[i] = NewPlaceRecord(p)
	}
	return out
}

// RawFixRecords converts fixes in order.
func RawFixRecords(fixes []store.RawFix) []RawFixRecord {
	out := make([]RawFixRecord, len(fixes))
	for i, f := range fixes {
		out[i] = NewRawFixRecord(f)
	}
	return out
}

// WriteSummary writes places as an indented JSON array.
func WriteSummary(w io.Writer, places []store.Place) error {
	return writeIndented(w, PlaceRecords(places))
}

// WriteFull writes fixes as an indented JSON array.
func WriteFull(w io.Writer, fixes []store.RawFix) error {
	return writeIndented(w, RawFixRecords(fixes))
}

// ReadSummary parses a document produced by WriteSummary.
func ReadSummary(r io.Reader) ([]PlaceRecord, error) {
	var records []PlaceRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return records, nil
}

// ReadFull parses a document produced by WriteFull.
func ReadFull(r io.Reader) ([]RawFixRecord, error) {
	var records []RawFixRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode full history: %w", err)
	}
	return records, nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
