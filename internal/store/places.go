package store

import (
	"context"
	"database/sql"

	"visitlog/internal/geo"
)

// Place is one deduplicated visited location. Lat/Lon are the coordinates of
// the fix that created it and never change afterwards.
type Place struct {
	ID           int64
	Lat          float64
	Lon          float64
	FirstVisit   int64
	LastVisit    int64
	VisitCount   int32
	BestAccuracy *float32
	Name         *string // joined from named_locations, not stored on the row
}

const placeColumns = `id, latitude, longitude, first_visit, last_visit, visit_count, best_accuracy`

func scanPlace(scan func(dest ...any) error) (Place, error) {
	var p Place
	var acc sql.NullFloat64
	if err := scan(&p.ID, &p.Lat, &p.Lon, &p.FirstVisit, &p.LastVisit, &p.VisitCount, &acc); err != nil {
		return Place{}, err
	}
	p.BestAccuracy = nullFloat32(acc)
	return p, nil
}

func queryPlaces(ctx context.Context, q querier, query string, args ...any) ([]Place, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var places []Place
	for rows.Next() {
		p, err := scanPlace(rows.Scan)
		if err != nil {
			return nil, classify(err)
		}
		places = append(places, p)
	}
	return places, classify(rows.Err())
}

// PlacesInBox returns the places anchored inside box in insertion order.
func (t *Tx) PlacesInBox(ctx context.Context, box geo.Box) ([]Place, error) {
	return queryPlaces(ctx, t.tx,
		`SELECT `+placeColumns+` FROM places
		 WHERE latitude >= ? AND latitude <= ? AND longitude >= ? AND longitude <= ?
		 ORDER BY id`,
		box.MinLat(), box.MaxLat(), box.MinLon(), box.MaxLon(),
	)
}

// InsertPlace stores a new place and sets p.ID.
func (t *Tx) InsertPlace(ctx context.Context, p *Place) error {
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO places (latitude, longitude, first_visit, last_visit, visit_count, best_accuracy)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Lat, p.Lon, p.FirstVisit, p.LastVisit, p.VisitCount, float32Arg(p.BestAccuracy),
	)
	if err != nil {
		return classify(err)
	}
	p.ID, err = result.LastInsertId()
	return classify(err)
}

// UpdatePlaceVisit writes the mutable visit fields of p. The anchor coordinates
// and first visit are left as stored.
func (t *Tx) UpdatePlaceVisit(ctx context.Context, p Place) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE places SET last_visit = ?, visit_count = ?, best_accuracy = ? WHERE id = ?`,
		p.LastVisit, p.VisitCount, float32Arg(p.BestAccuracy), p.ID,
	)
	return classify(err)
}

// GetPlace returns the place with the given id, or nil if there is none.
func (db *DB) GetPlace(ctx context.Context, id int64) (*Place, error) {
	row := db.QueryRowContext(ctx, `SELECT `+placeColumns+` FROM places WHERE id = ?`, id)
	p, err := scanPlace(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

// PlacesByLastVisit returns every place, most recently visited first.
func (db *DB) PlacesByLastVisit(ctx context.Context) ([]Place, error) {
	return queryPlaces(ctx, db,
		`SELECT `+placeColumns+` FROM places ORDER BY last_visit DESC, id DESC`,
	)
}

// CountPlaces returns the number of stored places.
func (db *DB) CountPlaces(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM places`).Scan(&n)
	return n, classify(err)
}
