package visits

import (
	"context"
	"sort"

	"visitlog/internal/geo"
	"visitlog/internal/store"
)

const (
	// MaxAccuracyMeters drops places whose best accuracy is this or worse.
	MaxAccuracyMeters = 50.0
	// NoiseWindowMillis and NoiseDistanceMeters bound the noise-collapse pass.
	NoiseWindowMillis   = 60_000
	NoiseDistanceMeters = 5.0
	// RecentLimit is the length of the recent-places list.
	RecentLimit = 10
)

// ListPlaces returns places most recently visited first, with names joined,
// after the accuracy filter and the noise-collapse pass. limit <= 0 returns
// every remaining place; otherwise at most limit places are returned.
func (e *Engine) ListPlaces(ctx context.Context, limit int) ([]store.Place, error) {
	places, err := e.db.PlacesByLastVisit(ctx)
	if err != nil {
		return nil, translate("list places", err)
	}

	places = CollapseNoise(FilterAccuracy(places))
	if limit > 0 && len(places) > limit {
		places = places[:limit]
	}

	names, err := e.db.AllNames(ctx)
	if err != nil {
		return nil, translate("list places", err)
	}
	JoinNames(places, names)

	return places, nil
}

// Place returns the stored place with the given id and its joined name, or
// nil if there is none. The list filters do not apply.
func (e *Engine) Place(ctx context.Context, id int64) (*store.Place, error) {
	p, err := e.db.GetPlace(ctx, id)
	if err != nil {
		return nil, translate("get place", err)
	}
	if p == nil {
		return nil, nil
	}

	name, ok, err := e.FindName(ctx, p.Lat, p.Lon)
	if err != nil {
		return nil, err
	}
	if ok {
		p.Name = &name
	}
	return p, nil
}

// RecentPlaces returns the short list shown on the status screen.
func (e *Engine) RecentPlaces(ctx context.Context) ([]store.Place, error) {
	return e.ListPlaces(ctx, RecentLimit)
}

// FilterAccuracy drops places whose best accuracy is known and at least
// MaxAccuracyMeters. Places without an accuracy are kept. Order is preserved.
func FilterAccuracy(places []store.Place) []store.Place {
	out := make([]store.Place, 0, len(places))
	for _, p := range places {
		if p.BestAccuracy != nil && float64(*p.BestAccuracy) >= MaxAccuracyMeters {
			continue
		}
		out = append(out, p)
	}
	return out
}

// CollapseNoise walks places in order and drops each one that is within
// NoiseWindowMillis and closer than NoiseDistanceMeters to the last place kept.
// Only the last kept place is compared, so near-duplicates separated by a kept
// place survive.
func CollapseNoise(places []store.Place) []store.Place {
	out := make([]store.Place, 0, len(places))
	var last *store.Place
	for _, p := range places {
		if last != nil {
			dt := last.LastVisit - p.LastVisit
			if dt < 0 {
				dt = -dt
			}
			if dt <= NoiseWindowMillis && geo.Distance(last.Lat, last.Lon, p.Lat, p.Lon) < NoiseDistanceMeters {
				continue
			}
		}
		out = append(out, p)
		last = &out[len(out)-1]
	}
	return out
}

// JoinNames sets Name on every place that has a named location within the
// threshold of its anchor. Names are sorted by latitude once and each place
// searches only the latitude band of its candidate box; among matches the
// oldest name wins, as with FindName.
func JoinNames(places []store.Place, names []store.NamedLocation) {
	if len(names) == 0 {
		return
	}

	sorted := make([]store.NamedLocation, len(names))
	copy(sorted, names)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Lat != sorted[j].Lat {
			return sorted[i].Lat < sorted[j].Lat
		}
		return sorted[i].ID < sorted[j].ID
	})

	for i := range places {
		p := &places[i]
		box := geo.BoxAround(p.Lat, p.Lon)
		start := sort.Search(len(sorted), func(k int) bool { return sorted[k].Lat >= box.MinLat() })

		var best *store.NamedLocation
		for k := start; k < len(sorted) && sorted[k].Lat <= box.MaxLat(); k++ {
			n := &sorted[k]
			if !box.ContainsCoord(n.Lat, n.Lon) || !geo.Within(p.Lat, p.Lon, n.Lat, n.Lon) {
				continue
			}
			if best == nil || n.ID < best.ID {
				best = n
			}
		}
		if best != nil {
			name := best.Name
			p.Name = &name
		}
	}
}
