package visits

import (
	"context"
	"fmt"
	"strings"

	"visitlog/internal/geo"
	"visitlog/internal/store"
)

// SetName labels the location at lat/lon. An existing name within the
// threshold is overwritten and recentred on lat/lon; otherwise a new entry is
// created.
func (e *Engine) SetName(ctx context.Context, lat, lon float64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidInput)
	}
	if !geo.ValidCoord(lat, lon) {
		return fmt.Errorf("%w: coordinates (%v, %v)", ErrInvalidInput, lat, lon)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	err := e.db.InTx(ctx, func(tx *store.Tx) error {
		existing, err := tx.NamesInBox(ctx, geo.BoxAround(lat, lon))
		if err != nil {
			return err
		}
		if n := firstNameWithin(existing, lat, lon); n != nil {
			n.Lat, n.Lon, n.Name = lat, lon, name
			return tx.UpdateName(ctx, *n)
		}
		return tx.InsertName(ctx, &store.NamedLocation{Lat: lat, Lon: lon, Name: name})
	})
	return translate("set name", err)
}

// RemoveName deletes the name matching lat/lon. It is a no-op when none matches.
func (e *Engine) RemoveName(ctx context.Context, lat, lon float64) error {
	if !geo.ValidCoord(lat, lon) {
		return fmt.Errorf("%w: coordinates (%v, %v)", ErrInvalidInput, lat, lon)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	err := e.db.InTx(ctx, func(tx *store.Tx) error {
		existing, err := tx.NamesInBox(ctx, geo.BoxAround(lat, lon))
		if err != nil {
			return err
		}
		if n := firstNameWithin(existing, lat, lon); n != nil {
			return tx.DeleteName(ctx, n.ID)
		}
		return nil
	})
	return translate("remove name", err)
}

// FindName returns the name matching lat/lon, if any.
func (e *Engine) FindName(ctx context.Context, lat, lon float64) (string, bool, error) {
	if !geo.ValidCoord(lat, lon) {
		return "", false, fmt.Errorf("%w: coordinates (%v, %v)", ErrInvalidInput, lat, lon)
	}

	existing, err := e.db.NamesInBox(ctx, geo.BoxAround(lat, lon))
	if err != nil {
		return "", false, translate("find name", err)
	}
	if n := firstNameWithin(existing, lat, lon); n != nil {
		return n.Name, true, nil
	}
	return "", false, nil
}

// ListNames returns every named location.
func (e *Engine) ListNames(ctx context.Context) ([]store.NamedLocation, error) {
	names, err := e.db.AllNames(ctx)
	if err != nil {
		return nil, translate("list names", err)
	}
	return names, nil
}

func firstNameWithin(names []store.NamedLocation, lat, lon float64) *store.NamedLocation {
	for i := range names {
		if geo.Within(lat, lon, names[i].Lat, names[i].Lon) {
			return &names[i]
		}
	}
	return nil
}
