package meetpoint

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/commonplace/internal/catalog"
	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
)

const (
	// Stops this close to either end of the trip are the travellers' own.
	endFraction = 0.05

	interchangeBonus = 0.3
	heavyRailBonus   = 0.2
)

// CentralLondon is the reference point for zone estimates (Charing Cross).
var CentralLondon = geo.NewCoordinate(-0.1246, 51.5080)

// zoneRadiiKm are the approximate outer radii of fare zones 1 to 5.
var zoneRadiiKm = []float64{3, 6, 9, 13, 18}

var stationSuffixes = []string{
	" underground station",
	" overground station",
	" elizabeth line station",
	" dlr station",
	" rail station",
	" station",
}

// stop is a named station on the direct route with its position along the trip.
type stop struct {
	name     string
	coord    geo.Coordinate
	fraction float64
	mode     string
	score    float64
}

// DirectRouteExtractor proposes stations along the direct journey between the
// travellers, favouring those near the temporal midpoint.
type DirectRouteExtractor struct {
	planner      JourneyPlanner
	catalog      *catalog.Catalog
	maxStops     int
	separationKm float64
}

// NewDirectRouteExtractor creates an extractor returning at most maxStops
// areas at least separationKm apart.
func NewDirectRouteExtractor(planner JourneyPlanner, cat *catalog.Catalog, maxStops int, separationKm float64) *DirectRouteExtractor {
	return &DirectRouteExtractor{planner: planner, catalog: cat, maxStops: maxStops, separationKm: separationKm}
}

// Extract plans the direct journey and converts its best stops to candidate
// areas. Any planner failure yields no candidates.
func (d *DirectRouteExtractor) Extract(ctx context.Context, a, b geo.Coordinate, at *time.Time) []model.CandidateArea {
	if d.planner == nil || d.maxStops <= 0 {
		return nil
	}
	j, err := d.planner.Plan(ctx, a, b, at)
	if err != nil || j == nil {
		zap.L().Warn("directroute: no direct journey", zap.Error(err))
		return nil
	}

	stops := d.rank(positionStops(*j))

	areas := make([]model.CandidateArea, 0, len(stops))
	seen := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		area := d.toArea(s)
		if _, dup := seen[area.Key()]; dup {
			continue
		}
		seen[area.Key()] = struct{}{}
		areas = append(areas, area)
	}
	return pickSeparated(areas, d.maxStops, d.separationKm)
}

// positionStops lists every transit stop with its estimated fraction of the
// total trip time. Intermediate stops are spread evenly across their leg.
func positionStops(j model.Journey) []stop {
	total := 0
	for _, l := range j.Legs {
		total += max(0, l.DurationMinutes)
	}
	if total == 0 {
		return nil
	}

	var out []stop
	add := func(name string, c geo.Coordinate, elapsed float64, mode string) {
		f := elapsed / float64(total)
		if strings.TrimSpace(name) == "" || !c.Valid() || f <= endFraction || f >= 1-endFraction {
			return
		}
		out = append(out, stop{name: name, coord: c, fraction: f, mode: mode})
	}

	elapsed := 0.0
	for _, l := range j.Legs {
		dur := float64(max(0, l.DurationMinutes))
		if !l.Walking() {
			add(l.DepartureName, l.Departure, elapsed, l.Mode)
			n := len(l.Stops)
			for i, name := range l.Stops {
				f := float64(i+1) / float64(n+1)
				add(name, geo.Interpolate(l.Departure, l.Arrival, f), elapsed+dur*f, l.Mode)
			}
			add(l.ArrivalName, l.Arrival, elapsed+dur, l.Mode)
		}
		elapsed += dur
	}
	return out
}

// rank scores stops, keeps the best entry per station and sorts best first.
func (d *DirectRouteExtractor) rank(stops []stop) []stop {
	best := make(map[string]int)
	var out []stop
	for _, s := range stops {
		s.score = 1 - 2*math.Abs(s.fraction-0.5)
		if d.catalog.IsInterchange(s.name) {
			s.score += interchangeBonus
		}
		if model.HeavyRail(s.mode) {
			s.score += heavyRailBonus
		}

		key := model.NormalizeName(s.name)
		if i, ok := best[key]; ok {
			if s.score > out[i].score {
				out[i] = s
			}
			continue
		}
		best[key] = len(out)
		out = append(out, s)
	}

	slices.SortStableFunc(out, func(a, b stop) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return strings.Compare(model.NormalizeName(a.name), model.NormalizeName(b.name))
	})
	return out
}

// pickSeparated greedily takes up to n areas more than minKm from each other.
func pickSeparated(areas []model.CandidateArea, n int, minKm float64) []model.CandidateArea {
	var out []model.CandidateArea
	for _, a := range areas {
		if len(out) >= n {
			break
		}
		ok := true
		for _, p := range out {
			if geo.HaversineKm(a.Coordinate, p.Coordinate) <= minKm {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, a)
		}
	}
	return out
}

func (d *DirectRouteExtractor) toArea(s stop) model.CandidateArea {
	if a, ok := d.catalog.Match(s.name); ok {
		return a.WithRouteType(model.RouteDirect)
	}
	cat := model.CategoryDistrict
	if d.catalog.IsInterchange(s.name) {
		cat = model.CategoryMajorHub
	}
	return model.NewCandidateArea(stationName(s.name), s.coord, cat, []int{EstimateZone(s.coord)}, model.RouteDirect)
}

// stationName drops a trailing "... Station" style suffix from a stop name.
func stationName(name string) string {
	name = strings.TrimSpace(name)
	for _, suffix := range stationSuffixes {
		cut := len(name) - len(suffix)
		if cut > 0 && strings.EqualFold(name[cut:], suffix) {
			return strings.TrimSpace(name[:cut])
		}
	}
	return name
}

// EstimateZone guesses the fare zone of c from its distance to central London.
func EstimateZone(c geo.Coordinate) int {
	km := geo.HaversineKm(CentralLondon, c)
	for i, r := range zoneRadiiKm {
		if km < r {
			return i + 1
		}
	}
	return len(zoneRadiiKm) + 1
}
