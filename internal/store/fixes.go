package store

import (
	"context"
	"database/sql"
)

// RawFix is one positioning reading exactly as it was received.
type RawFix struct {
	ID        int64
	Lat       float64
	Lon       float64
	Timestamp int64
	Accuracy  *float32
}

// InsertRawFix appends f to the raw fix log and sets f.ID.
func (t *Tx) InsertRawFix(ctx context.Context, f *RawFix) error {
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO raw_fixes (latitude, longitude, timestamp, accuracy) VALUES (?, ?, ?, ?)`,
		f.Lat, f.Lon, f.Timestamp, float32Arg(f.Accuracy),
	)
	if err != nil {
		return classify(err)
	}
	f.ID, err = result.LastInsertId()
	return classify(err)
}

// RawFixesSince returns fixes with timestamp >= since in chronological order.
func (db *DB) RawFixesSince(ctx context.Context, since int64) ([]RawFix, error) {
	return queryRawFixes(ctx, db,
		`SELECT id, latitude, longitude, timestamp, accuracy FROM raw_fixes
		 WHERE timestamp >= ? ORDER BY timestamp ASC, id ASC`,
		since,
	)
}

// RawFixesNewestFirst returns the whole raw fix log, most recent first.
func (db *DB) RawFixesNewestFirst(ctx context.Context) ([]RawFix, error) {
	return queryRawFixes(ctx, db,
		`SELECT id, latitude, longitude, timestamp, accuracy FROM raw_fixes
		 ORDER BY timestamp DESC, id DESC`,
	)
}

// CountRawFixes returns the number of logged fixes.
func (db *DB) CountRawFixes(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_fixes`).Scan(&n)
	return n, classify(err)
}

func queryRawFixes(ctx context.Context, q querier, query string, args ...any) ([]RawFix, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var fixes []RawFix
	for rows.Next() {
		var f RawFix
		var acc sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.Lat, &f.Lon, &f.Timestamp, &acc); err != nil {
			return nil, classify(err)
		}
		f.Accuracy = nullFloat32(acc)
		fixes = append(fixes, f)
	}
	return fixes, classify(rows.Err())
}
