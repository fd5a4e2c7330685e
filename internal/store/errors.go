package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrUnavailable means the database could not be opened or reached.
	ErrUnavailable = errors.New("store unavailable")
	// ErrBusy means another connection holds a conflicting lock; retrying may succeed.
	ErrBusy = errors.New("store busy")
)

// classify tags driver errors with ErrBusy or ErrUnavailable where the cause is
// recognisable. Other errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", ErrBusy, err)
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_FULL:
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
