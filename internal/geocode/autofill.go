package geocode

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"visitlog/internal/store"
)

// Namer lists places and assigns names. *visits.Engine implements it.
type Namer interface {
	ListPlaces(ctx context.Context, limit int) ([]store.Place, error)
	SetName(ctx context.Context, lat, lon float64, name string) error
}

// Autofill names every unnamed place with its suggestion and returns how many
// were named. Lookup failures for single places are logged and skipped.
func (s *Service) Autofill(ctx context.Context, n Namer) (int, error) {
	places, err := n.ListPlaces(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list places: %w", err)
	}

	named := 0
	for _, p := range places {
		if p.Name != nil {
			continue
		}

		sug, err := s.Suggest(ctx, p.Lat, p.Lon)
		if err != nil {
			if ctx.Err() != nil {
				return named, ctx.Err()
			}
			s.logger.Warn("no suggestion", zap.Int64("place_id", p.ID), zap.Error(err))
			continue
		}
		if sug == nil {
			continue
		}

		if err := n.SetName(ctx, p.Lat, p.Lon, sug.PlaceName); err != nil {
			return named, fmt.Errorf("name place %d: %w", p.ID, err)
		}
		named++
	}
	return named, nil
}
