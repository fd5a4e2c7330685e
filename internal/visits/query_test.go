package visits

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"visitlog/internal/store"
)

func placeIDs(places []store.Place) []int64 {
	ids := make([]int64, len(places))
	for i, p := range places {
		ids[i] = p.ID
	}
	return ids
}

func TestCollapseNoiseComparesAgainstLastKept(t *testing.T) {
	p1 := store.Place{ID: 1, Lat: 0, Lon: 0, LastVisit: 0}
	p2 := store.Place{ID: 2, Lat: degreesNorth(2), Lon: 0, LastVisit: 30_000}
	p3 := store.Place{ID: 3, Lat: degreesNorth(2), Lon: 0, LastVisit: 70_000}

	got := placeIDs(CollapseNoise([]store.Place{p3, p2, p1}))
	want := []int64{3, 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CollapseNoise mismatch (-want +got):\n%s", diff)
	}
}

func TestCollapseNoise(t *testing.T) {
	tests := []struct {
		name   string
		places []store.Place
		want   []int64
	}{
		{
			name: "empty",
			want: []int64{},
		},
		{
			name: "window boundary is inclusive",
			places: []store.Place{
				{ID: 1, LastVisit: 60_000},
				{ID: 2, Lat: degreesNorth(1), LastVisit: 0},
			},
			want: []int64{1},
		},
		{
			name: "outside window",
			places: []store.Place{
				{ID: 1, LastVisit: 60_001},
				{ID: 2, Lat: degreesNorth(1), LastVisit: 0},
			},
			want: []int64{1, 2},
		},
		{
			name: "beyond noise distance",
			places: []store.Place{
				{ID: 1, LastVisit: 10_000},
				{ID: 2, Lat: degreesNorth(5.5), LastVisit: 0},
			},
			want: []int64{1, 2},
		},
		{
			name: "chain collapses onto the first kept",
			places: []store.Place{
				{ID: 1, LastVisit: 30_000},
				{ID: 2, Lat: degreesNorth(1), LastVisit: 20_000},
				{ID: 3, Lat: degreesNorth(2), LastVisit: 10_000},
			},
			want: []int64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := placeIDs(CollapseNoise(tt.places))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CollapseNoise mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterAccuracy(t *testing.T) {
	places := []store.Place{
		{ID: 1, BestAccuracy: f32(50)},
		{ID: 2, BestAccuracy: f32(49.9)},
		{ID: 3},
		{ID: 4, BestAccuracy: f32(120)},
		{ID: 5, BestAccuracy: f32(0)},
	}

	got := placeIDs(FilterAccuracy(places))
	want := []int64{2, 3, 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FilterAccuracy mismatch (-want +got):\n%s", diff)
	}
}

func TestListPlacesOrderAndLimit(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	// Four places 1km apart, visited at increasing times; the newest has poor accuracy.
	var ids []int64
	for i := 0; i < 4; i++ {
		var acc *float32
		if i == 3 {
			acc = f32(80)
		}
		ids = append(ids, mustRecord(t, e, Fix{
			Lat:       degreesNorth(float64(i * 1000)),
			Lon:       0,
			Timestamp: int64((i + 1) * 3_600_000),
			Accuracy:  acc,
		}))
	}

	all, err := e.ListPlaces(ctx, 0)
	if err != nil {
		t.Fatalf("ListPlaces(0): %v", err)
	}
	if diff := cmp.Diff([]int64{ids[2], ids[1], ids[0]}, placeIDs(all)); diff != "" {
		t.Errorf("ListPlaces(0) mismatch (-want +got):\n%s", diff)
	}

	// The limit applies after filtering, so the inaccurate place does not use a slot.
	limited, err := e.ListPlaces(ctx, 2)
	if err != nil {
		t.Fatalf("ListPlaces(2): %v", err)
	}
	if diff := cmp.Diff([]int64{ids[2], ids[1]}, placeIDs(limited)); diff != "" {
		t.Errorf("ListPlaces(2) mismatch (-want +got):\n%s", diff)
	}

	recent, err := e.RecentPlaces(ctx)
	if err != nil {
		t.Fatalf("RecentPlaces: %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("RecentPlaces returned %d places, want 3", len(recent))
	}
}

func TestListPlacesJoinsNames(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	home := mustRecord(t, e, Fix{Lat: 52.52, Lon: 13.405, Timestamp: 1000})
	work := mustRecord(t, e, Fix{Lat: 52.52 + degreesNorth(2000), Lon: 13.405, Timestamp: 2000})

	if err := e.SetName(ctx, 52.52+degreesNorth(40), 13.405, "Home"); err != nil {
		t.Fatalf("SetName: %v", err)
	}

	places, err := e.ListPlaces(ctx, 0)
	if err != nil {
		t.Fatalf("ListPlaces: %v", err)
	}

	names := map[int64]*string{}
	for _, p := range places {
		names[p.ID] = p.Name
	}
	if n := names[home]; n == nil || *n != "Home" {
		t.Errorf("home name = %v, want Home", n)
	}
	if n := names[work]; n != nil {
		t.Errorf("work name = %q, want none", *n)
	}
}

func TestPlaceByID(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	// Too inaccurate for ListPlaces, still reachable by id.
	id := mustRecord(t, e, Fix{Lat: 48.8566, Lon: 2.3522, Timestamp: 1000, Accuracy: f32(80)})
	if err := e.SetName(ctx, 48.8566, 2.3522, "Office"); err != nil {
		t.Fatalf("SetName: %v", err)
	}

	p, err := e.Place(ctx, id)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if p == nil || p.Name == nil || *p.Name != "Office" || p.VisitCount != 1 {
		t.Fatalf("Place(%d) = %+v", id, p)
	}

	missing, err := e.Place(ctx, id+100)
	if err != nil || missing != nil {
		t.Errorf("Place(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestNames(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	if _, ok, err := e.FindName(ctx, 10, 10); err != nil || ok {
		t.Fatalf("FindName on empty store = %v, %v", ok, err)
	}

	if err := e.SetName(ctx, 10, 10, "  Cafe  "); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	name, ok, err := e.FindName(ctx, 10+degreesNorth(60), 10)
	if err != nil || !ok || name != "Cafe" {
		t.Fatalf("FindName = %q, %v, %v; want Cafe", name, ok, err)
	}

	// Renaming from 80m away recentres the entry there.
	moved := 10 + degreesNorth(80)
	if err := e.SetName(ctx, moved, 10, "Bakery"); err != nil {
		t.Fatalf("SetName rename: %v", err)
	}
	list, err := e.ListNames(ctx)
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Bakery" || list[0].Lat != moved {
		t.Fatalf("ListNames = %+v, want a single recentred Bakery", list)
	}
	if _, ok, _ := e.FindName(ctx, 10+degreesNorth(170), 10); !ok {
		t.Error("FindName near the recentred anchor should match")
	}

	if err := e.RemoveName(ctx, 0, 0); err != nil {
		t.Errorf("RemoveName with no match: %v", err)
	}
	if err := e.RemoveName(ctx, moved, 10); err != nil {
		t.Fatalf("RemoveName: %v", err)
	}
	if _, ok, _ := e.FindName(ctx, moved, 10); ok {
		t.Error("name still present after RemoveName")
	}
}

func TestSetNameRejectsInvalidInput(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	if err := e.SetName(ctx, 1, 1, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank name error = %v, want ErrInvalidInput", err)
	}
	if err := e.SetName(ctx, 100, 1, "x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad latitude error = %v, want ErrInvalidInput", err)
	}
}

func TestJoinNamesPicksOldestMatch(t *testing.T) {
	places := []store.Place{{ID: 1, Lat: 0, Lon: 0}}
	names := []store.NamedLocation{
		{ID: 7, Lat: degreesNorth(-50), Lon: 0, Name: "later"},
		{ID: 3, Lat: degreesNorth(90), Lon: 0, Name: "older"},
		{ID: 9, Lat: degreesNorth(101), Lon: 0, Name: "too far"},
	}

	JoinNames(places, names)
	if places[0].Name == nil || *places[0].Name != "older" {
		t.Errorf("joined name = %v, want older", places[0].Name)
	}
}
