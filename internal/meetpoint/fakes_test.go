package meetpoint

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/commonplace/internal/catalog"
	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
	"github.com/sells-group/commonplace/internal/scorer"
)

var (
	errUnavailable = eris.New("fake: service unavailable")

	charingCross = geo.NewCoordinate(-0.1278, 51.5074)
	earlsCourt   = geo.NewCoordinate(-0.1870, 51.4920)
)

func box(minLng, minLat, maxLng, maxLat float64) []geo.Coordinate {
	return []geo.Coordinate{
		geo.NewCoordinate(minLng, minLat),
		geo.NewCoordinate(maxLng, minLat),
		geo.NewCoordinate(maxLng, maxLat),
		geo.NewCoordinate(minLng, maxLat),
		geo.NewCoordinate(minLng, minLat),
	}
}

// fakeReach serves polygons keyed by origin and minutes.
type fakeReach struct {
	mu    sync.Mutex
	polys map[string][]geo.Coordinate
	err   error
	calls []string
}

func reachKey(origin geo.Coordinate, minutes int) string {
	return fmt.Sprintf("%s@%d", origin.Key(), minutes)
}

func (f *fakeReach) set(origin geo.Coordinate, minutes int, ring []geo.Coordinate) {
	if f.polys == nil {
		f.polys = make(map[string][]geo.Coordinate)
	}
	f.polys[reachKey(origin, minutes)] = ring
}

func (f *fakeReach) Reachable(_ context.Context, origin geo.Coordinate, minutes int) (model.ReachabilityPolygon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := reachKey(origin, minutes)
	f.calls = append(f.calls, k)
	if f.err != nil {
		return model.ReachabilityPolygon{}, f.err
	}
	ring, ok := f.polys[k]
	if !ok {
		return model.ReachabilityPolygon{}, eris.Errorf("fake: no polygon for %s", k)
	}
	return model.ReachabilityPolygon{Origin: origin, Minutes: minutes, Ring: ring}, nil
}

func (f *fakeReach) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakePlanner answers journeys with fn and records every destination.
type fakePlanner struct {
	mu    sync.Mutex
	fn    func(from, to geo.Coordinate) (*model.Journey, error)
	calls [][2]geo.Coordinate
}

func (f *fakePlanner) Plan(_ context.Context, from, to geo.Coordinate, _ *time.Time) (*model.Journey, error) {
	f.mu.Lock()
	f.calls = append(f.calls, [2]geo.Coordinate{from, to})
	f.mu.Unlock()
	if f.fn == nil {
		return nil, errUnavailable
	}
	return f.fn(from, to)
}

func (f *fakePlanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakePlanner) destinations() []geo.Coordinate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]geo.Coordinate, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c[1])
	}
	return out
}

type fakeLocator struct {
	places map[string]geo.Coordinate
	names  map[string]string
}

func (f fakeLocator) Resolve(_ context.Context, text string) (geo.Coordinate, error) {
	c, ok := f.places[text]
	if !ok {
		return geo.Coordinate{}, eris.New("fake: not found")
	}
	return c, nil
}

func (f fakeLocator) Describe(_ context.Context, c geo.Coordinate) (string, error) {
	name, ok := f.names[c.Key()]
	if !ok {
		return "", eris.New("fake: no name")
	}
	return name, nil
}

func tubeJourney(minutes int) *model.Journey {
	return &model.Journey{
		DurationMinutes: minutes,
		Legs:            []model.Leg{{Mode: model.ModeTube, DurationMinutes: minutes}},
	}
}

func area(name string, lng, lat float64, cat model.Category, zones ...int) model.CandidateArea {
	return model.NewCandidateArea(name, geo.NewCoordinate(lng, lat), cat, zones, "")
}

func newCatalog(t *testing.T, areas ...model.CandidateArea) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(areas, []string{"junction"})
	require.NoError(t, err)
	return c
}

func testSettings() Settings {
	s := DefaultSettings()
	s.BatchPause = 0
	return s
}

func newTestEngine(t *testing.T, cat *catalog.Catalog, p Providers, s Settings) *Engine {
	t.Helper()
	sc, err := scorer.New(scorer.DefaultConfig())
	require.NoError(t, err)
	e, err := New(cat, p, sc, s)
	require.NoError(t, err)
	e.now = func() time.Time { return time.Date(2024, time.March, 1, 18, 0, 0, 0, time.UTC) }
	e.newID = func() string { return "search-1" }
	return e
}
