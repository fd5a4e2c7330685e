package store

import (
	"context"

	"visitlog/internal/geo"
)

// NamedLocation is a user-assigned label anchored at a coordinate.
type NamedLocation struct {
	ID   int64
	Lat  float64
	Lon  float64
	Name string
}

// NamesInBox returns the named locations inside box in insertion order.
func (t *Tx) NamesInBox(ctx context.Context, box geo.Box) ([]NamedLocation, error) {
	return queryNames(ctx, t.tx,
		`SELECT id, latitude, longitude, name FROM named_locations
		 WHERE latitude >= ? AND latitude <= ? AND longitude >= ? AND longitude <= ?
		 ORDER BY id`,
		box.MinLat(), box.MaxLat(), box.MinLon(), box.MaxLon(),
	)
}

// NamesInBox is the read-only variant used outside write transactions.
func (db *DB) NamesInBox(ctx context.Context, box geo.Box) ([]NamedLocation, error) {
	return queryNames(ctx, db,
		`SELECT id, latitude, longitude, name FROM named_locations
		 WHERE latitude >= ? AND latitude <= ? AND longitude >= ? AND longitude <= ?
		 ORDER BY id`,
		box.MinLat(), box.MaxLat(), box.MinLon(), box.MaxLon(),
	)
}

// AllNames returns every named location in insertion order.
func (db *DB) AllNames(ctx context.Context) ([]NamedLocation, error) {
	return queryNames(ctx, db, `SELECT id, latitude, longitude, name FROM named_locations ORDER BY id`)
}

// InsertName stores a new named location and sets n.ID.
func (t *Tx) InsertName(ctx context.Context, n *NamedLocation) error {
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO named_locations (latitude, longitude, name) VALUES (?, ?, ?)`,
		n.Lat, n.Lon, n.Name,
	)
	if err != nil {
		return classify(err)
	}
	n.ID, err = result.LastInsertId()
	return classify(err)
}

// UpdateName overwrites the name and coordinates of an existing entry.
func (t *Tx) UpdateName(ctx context.Context, n NamedLocation) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE named_locations SET latitude = ?, longitude = ?, name = ? WHERE id = ?`,
		n.Lat, n.Lon, n.Name, n.ID,
	)
	return classify(err)
}

// DeleteName removes the named location with the given id.
func (t *Tx) DeleteName(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM named_locations WHERE id = ?`, id)
	return classify(err)
}

func queryNames(ctx context.Context, q querier, query string, args ...any) ([]NamedLocation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var names []NamedLocation
	for rows.Next() {
		var n NamedLocation
		if err := rows.Scan(&n.ID, &n.Lat, &n.Lon, &n.Name); err != nil {
			return nil, classify(err)
		}
		names = append(names, n)
	}
	return names, classify(rows.Err())
}
