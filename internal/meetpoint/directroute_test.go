package meetpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
)

// directJourney walks to Aldgate, rides the District line west through five
// stops to Earl's Court, then walks again. Total 40 minutes.
func directJourney() *model.Journey {
	return &model.Journey{
		DurationMinutes: 40,
		Legs: []model.Leg{
			{Mode: model.ModeWalking, DurationMinutes: 1, ArrivalName: "Aldgate East"},
			{
				Mode:            model.ModeTube,
				DurationMinutes: 36,
				DepartureName:   "Aldgate East Underground Station",
				ArrivalName:     "Earl's Court Underground Station",
				Departure:       geo.NewCoordinate(-0.0720, 51.5152),
				Arrival:         geo.NewCoordinate(-0.1940, 51.4920),
				Stops: []string{
					"Tower Hill Underground Station",
					"Monument Underground Station",
					"Embankment Underground Station",
					"Westminster Underground Station",
					"Victoria Underground Station",
				},
			},
			{Mode: model.ModeWalking, DurationMinutes: 3, DepartureName: "Earl's Court"},
		},
	}
}

func TestPositionStops(t *testing.T) {
	t.Parallel()
	stops := positionStops(*directJourney())

	// Aldgate East departs at 1/40 and so is inside the travellers' own ends.
	require.NotEmpty(t, stops)
	for _, s := range stops {
		assert.NotEqual(t, "Aldgate East Underground Station", s.name)
		assert.Greater(t, s.fraction, endFraction)
		assert.Less(t, s.fraction, 1-endFraction)
	}

	// Five intermediate stops split the 36 minute leg into sixths.
	require.Len(t, stops, 6)
	assert.Equal(t, "Tower Hill Underground Station", stops[0].name)
	assert.InDelta(t, (1+6.0)/40, stops[0].fraction, 1e-9)
	assert.Equal(t, "Westminster Underground Station", stops[3].name)
	assert.InDelta(t, (1+24.0)/40, stops[3].fraction, 1e-9)
	assert.Equal(t, geo.Interpolate(geo.NewCoordinate(-0.0720, 51.5152), geo.NewCoordinate(-0.1940, 51.4920), 4.0/6), stops[3].coord)
	assert.Equal(t, "Earl's Court Underground Station", stops[5].name)
}

func TestPickSeparated(t *testing.T) {
	t.Parallel()
	areas := []model.CandidateArea{
		area("Bank", -0.0886, 51.5133, model.CategoryMajorHub, 1),
		area("Monument", -0.0863, 51.5108, model.CategoryDistrict, 1),
		area("Angel", -0.1058, 51.5322, model.CategoryDistrict, 1),
	}
	exact := geo.HaversineKm(areas[2].Coordinate, areas[0].Coordinate)

	got := pickSeparated(areas, 4, exact)
	require.Len(t, got, 1)
	assert.Equal(t, "Bank", got[0].Name)

	got = pickSeparated(areas, 4, 1)
	require.Len(t, got, 2)
	assert.Equal(t, "Angel", got[1].Name)
}

func TestExtract_CatalogMatchAndSynthesis(t *testing.T) {
	t.Parallel()
	cat := newCatalog(t,
		area("Westminster", -0.1253, 51.5010, model.CategoryMajorHub, 1),
		area("Victoria", -0.1440, 51.4965, model.CategoryMajorHub, 1),
		area("Bank", -0.0886, 51.5133, model.CategoryMajorHub, 1),
	)
	planner := &fakePlanner{fn: func(_, _ geo.Coordinate) (*model.Journey, error) { return directJourney(), nil }}
	d := NewDirectRouteExtractor(planner, cat, 4, 1)

	got := d.Extract(context.Background(), charingCross, earlsCourt, nil)

	// Westminster sits nearest the temporal midpoint and is a catalog hub.
	// Embankment scores next but lies within a kilometre of it.
	assert.Equal(t, []string{"Westminster", "Victoria", "Monument", "Tower Hill"}, names(got))
	for _, a := range got {
		assert.Equal(t, model.RouteDirect, a.RouteType, a.Name)
	}
	assert.Equal(t, geo.NewCoordinate(-0.1253, 51.5010), got[0].Coordinate)
	assert.Equal(t, model.CategoryMajorHub, got[1].Category)

	monument := got[2]
	assert.Equal(t, model.CategoryDistrict, monument.Category)
	assert.Equal(t, []int{EstimateZone(monument.Coordinate)}, monument.Zones)

	for i := range got {
		for j := i + 1; j < len(got); j++ {
			assert.GreaterOrEqual(t, geo.HaversineKm(got[i].Coordinate, got[j].Coordinate), 1.0)
		}
	}

	// Embankment must not resolve to Bank.
	emb := d.toArea(stop{name: "Embankment Underground Station", coord: geo.NewCoordinate(-0.1223, 51.5074)})
	assert.Equal(t, "Embankment", emb.Name)
	assert.Equal(t, []int{1}, emb.Zones)
}

func TestExtract_PlannerFailure(t *testing.T) {
	t.Parallel()
	d := NewDirectRouteExtractor(&fakePlanner{}, newCatalog(t), 4, 1)
	assert.Empty(t, d.Extract(context.Background(), charingCross, earlsCourt, nil))
}

func TestExtract_WalkOnly(t *testing.T) {
	t.Parallel()
	planner := &fakePlanner{fn: func(_, _ geo.Coordinate) (*model.Journey, error) {
		return &model.Journey{DurationMinutes: 25, Legs: []model.Leg{{Mode: model.ModeWalking, DurationMinutes: 25}}}, nil
	}}
	d := NewDirectRouteExtractor(planner, newCatalog(t), 4, 1)
	assert.Empty(t, d.Extract(context.Background(), charingCross, earlsCourt, nil))
}

func TestStationName(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"Embankment Underground Station": "Embankment",
		"Stratford DLR Station":          "Stratford",
		"Clapham Junction Rail Station":  "Clapham Junction",
		"Hammersmith Station":            "Hammersmith",
		"Station":                        "Station",
		"Old Street":                     "Old Street",
	}
	for in, want := range tests {
		assert.Equal(t, want, stationName(in), in)
	}
}

func TestEstimateZone(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, EstimateZone(CentralLondon))
	assert.Equal(t, 2, EstimateZone(geo.NewCoordinate(-0.1940, 51.4920)))
	assert.Equal(t, 6, EstimateZone(geo.NewCoordinate(-0.4543, 51.4700)))
}
