// Package visits aggregates raw GPS fixes into deduplicated places and serves
// the filtered place list, names and raw history built on top of them.
package visits

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"visitlog/internal/geo"
	"visitlog/internal/store"
)

// Fix is one positioning reading offered to the engine.
type Fix struct {
	Lat       float64
	Lon       float64
	Timestamp int64    // epoch milliseconds
	Accuracy  *float32 // meters, nil when unknown
}

// Result describes what Record did with a fix.
type Result struct {
	PlaceID int64
	Created bool
}

// Observer is notified after every Record call.
type Observer interface {
	Recorded(ctx context.Context, fix Fix, res Result)
	Failed(ctx context.Context, fix Fix, err error)
}

// Engine owns all writes to the store. Writes are serialised by a mutex and
// each one runs in a single transaction, so candidate lookup and merge cannot
// interleave with another fix for the same location.
type Engine struct {
	db        *store.DB
	logger    *zap.Logger
	observers []Observer

	writeMu sync.Mutex
}

// NewEngine returns an engine writing to db.
func NewEngine(db *store.DB, logger *zap.Logger, observers ...Observer) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, logger: logger, observers: observers}
}

// Validate checks a fix before it reaches storage.
func (f Fix) Validate() error {
	if !geo.ValidCoord(f.Lat, f.Lon) {
		return fmt.Errorf("%w: coordinates (%v, %v)", ErrInvalidInput, f.Lat, f.Lon)
	}
	if f.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp %d must be positive", ErrInvalidInput, f.Timestamp)
	}
	if f.Accuracy != nil {
		acc := float64(*f.Accuracy)
		if math.IsNaN(acc) || math.IsInf(acc, 0) || acc < 0 {
			return fmt.Errorf("%w: accuracy %v", ErrInvalidInput, *f.Accuracy)
		}
	}
	return nil
}

// Record appends fix to the raw fix log and merges it into the first stored
// place within geo.ThresholdMeters, or creates a new place anchored at the fix.
// It returns the id of that place.
func (e *Engine) Record(ctx context.Context, fix Fix) (int64, error) {
	res, err := e.record(ctx, fix)
	if err != nil {
		e.logger.Warn("record fix failed",
			zap.Float64("lat", fix.Lat),
			zap.Float64("lon", fix.Lon),
			zap.Int64("timestamp", fix.Timestamp),
			zap.String("kind", Kind(err)),
			zap.Error(err),
		)
		for _, o := range e.observers {
			o.Failed(ctx, fix, err)
		}
		return 0, err
	}

	e.logger.Debug("fix recorded",
		zap.Int64("place_id", res.PlaceID),
		zap.Bool("created", res.Created),
		zap.Int64("timestamp", fix.Timestamp),
	)
	for _, o := range e.observers {
		o.Recorded(ctx, fix, res)
	}
	return res.PlaceID, nil
}

func (e *Engine) record(ctx context.Context, fix Fix) (Result, error) {
	if err := fix.Validate(); err != nil {
		return Result{}, err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var res Result
	err := e.db.InTx(ctx, func(tx *store.Tx) error {
		raw := store.RawFix{Lat: fix.Lat, Lon: fix.Lon, Timestamp: fix.Timestamp, Accuracy: fix.Accuracy}
		if err := tx.InsertRawFix(ctx, &raw); err != nil {
			return fmt.Errorf("append raw fix: %w", err)
		}

		candidates, err := tx.PlacesInBox(ctx, geo.BoxAround(fix.Lat, fix.Lon))
		if err != nil {
			return fmt.Errorf("find candidates: %w", err)
		}

		if match := firstWithin(candidates, fix.Lat, fix.Lon); match != nil {
			merge(match, fix)
			if err := tx.UpdatePlaceVisit(ctx, *match); err != nil {
				return fmt.Errorf("update place %d: %w", match.ID, err)
			}
			res = Result{PlaceID: match.ID}
		} else {
			p := newPlace(fix)
			if err := tx.InsertPlace(ctx, &p); err != nil {
				return fmt.Errorf("insert place: %w", err)
			}
			res = Result{PlaceID: p.ID, Created: true}
		}

		if err := tx.SetLastIngest(ctx, fix.Timestamp); err != nil {
			return fmt.Errorf("set last ingest: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, translate("record", err)
	}
	return res, nil
}

// firstWithin returns the first candidate, in the given order, whose anchor is
// within the threshold of lat/lon. Closer candidates later in the slice do not
// win.
func firstWithin(candidates []store.Place, lat, lon float64) *store.Place {
	for i := range candidates {
		if geo.Within(lat, lon, candidates[i].Lat, candidates[i].Lon) {
			return &candidates[i]
		}
	}
	return nil
}

func merge(p *store.Place, fix Fix) {
	p.LastVisit = fix.Timestamp
	p.VisitCount++
	if fix.Accuracy != nil && (p.BestAccuracy == nil || *fix.Accuracy < *p.BestAccuracy) {
		acc := *fix.Accuracy
		p.BestAccuracy = &acc
	}
}

func newPlace(fix Fix) store.Place {
	p := store.Place{
		Lat:        fix.Lat,
		Lon:        fix.Lon,
		FirstVisit: fix.Timestamp,
		LastVisit:  fix.Timestamp,
		VisitCount: 1,
	}
	if fix.Accuracy != nil {
		acc := *fix.Accuracy
		p.BestAccuracy = &acc
	}
	return p
}

// ListRawFixes returns the raw fix log. With a window start the fixes at or
// after it are returned oldest first, for trajectory reconstruction; without
// one the whole log is returned newest first.
func (e *Engine) ListRawFixes(ctx context.Context, windowStart *int64) ([]store.RawFix, error) {
	var (
		fixes []store.RawFix
		err   error
	)
	if windowStart != nil {
		fixes, err = e.db.RawFixesSince(ctx, *windowStart)
	} else {
		fixes, err = e.db.RawFixesNewestFirst(ctx)
	}
	if err != nil {
		return nil, translate("list raw fixes", err)
	}
	return fixes, nil
}

// LastIngestTimestamp returns the timestamp of the last recorded fix, 0 if none.
func (e *Engine) LastIngestTimestamp(ctx context.Context) (int64, error) {
	ts, err := e.db.LastIngest(ctx)
	if err != nil {
		return 0, translate("last ingest", err)
	}
	return ts, nil
}
