// Package trajectory rebuilds the recent movement track from the raw fix log.
package trajectory

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"visitlog/internal/store"
)

// Window is how far back Last24Hours looks.
const Window = 24 * time.Hour

const (
	minTolerance = 0.00001 // ~1 m
	maxTolerance = 0.001   // ~100 m
)

// Source supplies raw fixes. windowStart selects fixes at or after it, oldest
// first.
type Source interface {
	ListRawFixes(ctx context.Context, windowStart *int64) ([]store.RawFix, error)
}

// Point is one position on a track.
type Point struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timestamp int64   `json:"timestamp"`
}

// Track is the movement over a time window.
type Track struct {
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	MinLat     float64 `json:"min_lat"`
	MaxLat     float64 `json:"max_lat"`
	MinLon     float64 `json:"min_lon"`
	MaxLon     float64 `json:"max_lon"`
	PointCount int     `json:"point_count"`
	Points     []Point `json:"points"`
	Simplified []Point `json:"simplified"`
}

// Last24Hours returns the track of fixes recorded in the day before now.
func Last24Hours(ctx context.Context, src Source, now time.Time) (*Track, error) {
	start := now.Add(-Window).UnixMilli()
	fixes, err := src.ListRawFixes(ctx, &start)
	if err != nil {
		return nil, fmt.Errorf("load fixes: %w", err)
	}

	track := Build(fixes)
	track.Start = start
	track.End = now.UnixMilli()
	return track, nil
}

// Build turns fixes, oldest first, into a track with bounds and a simplified
// polyline. Start and End are the first and last fix timestamps.
func Build(fixes []store.RawFix) *Track {
	track := &Track{Points: make([]Point, 0, len(fixes))}
	if len(fixes) == 0 {
		track.Simplified = []Point{}
		return track
	}

	bound := orb.Bound{
		Min: orb.Point{fixes[0].Lon, fixes[0].Lat},
		Max: orb.Point{fixes[0].Lon, fixes[0].Lat},
	}
	for _, f := range fixes {
		bound = bound.Extend(orb.Point{f.Lon, f.Lat})
		track.Points = append(track.Points, Point{Lat: f.Lat, Lon: f.Lon, Timestamp: f.Timestamp})
	}

	track.Start = fixes[0].Timestamp
	track.End = fixes[len(fixes)-1].Timestamp
	track.MinLat, track.MaxLat = bound.Min.Lat(), bound.Max.Lat()
	track.MinLon, track.MaxLon = bound.Min.Lon(), bound.Max.Lon()
	track.PointCount = len(fixes)
	track.Simplified = Simplify(track.Points, ToleranceFromBound(bound))
	return track
}

// Simplify reduces points with Douglas-Peucker. tolerance is in degrees.
// Retained points keep their timestamps.
func Simplify(points []Point, tolerance float64) []Point {
	if len(points) <= 2 {
		return append([]Point(nil), points...)
	}

	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.Lon, p.Lat}
	}

	simplified, ok := simplify.DouglasPeucker(tolerance).Simplify(ls).(orb.LineString)
	if !ok || len(simplified) == 0 {
		return append([]Point(nil), points...)
	}

	// The simplified line is a subsequence of the input, so walking both in
	// step recovers the timestamps.
	out := make([]Point, 0, len(simplified))
	j := 0
	for _, sp := range simplified {
		for j < len(points) && (points[j].Lon != sp.Lon() || points[j].Lat != sp.Lat()) {
			j++
		}
		if j == len(points) {
			break
		}
		out = append(out, points[j])
		j++
	}
	return out
}

// ToleranceFromBound picks a tolerance of 0.1% of the smaller side of b,
// clamped to roughly 1..100 m.
func ToleranceFromBound(b orb.Bound) float64 {
	span := b.Max.Lat() - b.Min.Lat()
	if lonSpan := b.Max.Lon() - b.Min.Lon(); lonSpan < span {
		span = lonSpan
	}

	tolerance := span * 0.001
	if tolerance < minTolerance {
		tolerance = minTolerance
	}
	if tolerance > maxTolerance {
		tolerance = maxTolerance
	}
	return tolerance
}
