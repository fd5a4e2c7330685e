package store

import (
	"context"
	"database/sql"
	"time"
)

// GeocodeEntry is a cached reverse-geocoding result covering a bounding box.
type GeocodeEntry struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	PlaceName      string
	PlaceType      string
	DisplayName    string
}

// LookupGeocode returns a cached entry whose box contains lat/lon, or nil.
func (db *DB) LookupGeocode(ctx context.Context, lat, lon float64) (*GeocodeEntry, error) {
	row := db.QueryRowContext(ctx, `
		SELECT min_lat, max_lat, min_lon, max_lon, place_name, place_type, display_name
		FROM geocache
		WHERE ? >= min_lat AND ? <= max_lat AND ? >= min_lon AND ? <= max_lon
		LIMIT 1
	`, lat, lat, lon, lon)

	var e GeocodeEntry
	err := row.Scan(&e.MinLat, &e.MaxLat, &e.MinLon, &e.MaxLon, &e.PlaceName, &e.PlaceType, &e.DisplayName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &e, nil
}

// InsertGeocode caches e. An entry with identical bounds is kept as is.
func (db *DB) InsertGeocode(ctx context.Context, e GeocodeEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO geocache (min_lat, max_lat, min_lon, max_lon, place_name, place_type, display_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.MinLat, e.MaxLat, e.MinLon, e.MaxLon, e.PlaceName, e.PlaceType, e.DisplayName, time.Now().Unix())
	return classify(err)
}
