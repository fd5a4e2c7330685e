package store

import (
	"context"
	"database/sql"
)

const lastIngestKey = "last_ingest"

// SetLastIngest records the timestamp of the most recently ingested fix.
// Last writer wins.
func (t *Tx) SetLastIngest(ctx context.Context, ts int64) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO ingest_state (id, value) VALUES (?, ?)`,
		lastIngestKey, ts,
	)
	return classify(err)
}

// LastIngest returns the timestamp stored by SetLastIngest, or 0 if nothing has
// been ingested yet.
func (db *DB) LastIngest(ctx context.Context) (int64, error) {
	var ts int64
	err := db.QueryRowContext(ctx, `SELECT value FROM ingest_state WHERE id = ?`, lastIngestKey).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	return ts, nil
}
