package visits

import (
	"errors"
	"fmt"

	"visitlog/internal/store"
)

var (
	// ErrInvalidInput is returned for fixes or names rejected before storage is touched.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorageUnavailable means the database cannot be opened or reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrWriteConflict means the write lost a lock race; the caller may retry.
	ErrWriteConflict = errors.New("write conflict")
)

// translate maps store errors onto the engine's error taxonomy.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrBusy):
		return fmt.Errorf("%s: %w: %w", op, ErrWriteConflict, err)
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Kind returns a short label for err, used in logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrWriteConflict):
		return "write_conflict"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}
