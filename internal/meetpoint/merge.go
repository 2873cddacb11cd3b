package meetpoint

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
)

// quickScoreBonus favours zone 1 and major hubs in the pre-filter.
const quickScoreBonus = 8

// Estimator turns straight-line distance into an approximate journey time.
type Estimator struct {
	OverheadMinutes float64
	MinutesPerKm    float64
}

// Minutes estimates the journey time between a and b.
func (e Estimator) Minutes(a, b geo.Coordinate) float64 {
	return e.OverheadMinutes + geo.HaversineKm(a, b)*e.MinutesPerKm
}

// Merge combines direct-route and reachability candidates, keeping the first
// entry per normalized name. Direct-route entries come first and so win.
func Merge(direct, reachable []model.CandidateArea) []model.CandidateArea {
	out := make([]model.CandidateArea, 0, len(direct)+len(reachable))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]model.CandidateArea{direct, reachable} {
		for _, a := range list {
			k := a.Key()
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// PrefilterKeep is how many of n candidates survive the pre-filter.
func PrefilterKeep(n, floor, ceiling int, fraction float64) int {
	keep := int(math.Ceil(fraction * float64(n)))
	keep = min(max(floor, keep), ceiling)
	return min(keep, n)
}

// Prefilter ranks candidates by estimated travel time from a and b without
// calling any provider and keeps the most promising.
func Prefilter(cands []model.CandidateArea, a, b geo.Coordinate, s Settings) []model.CandidateArea {
	type ranked struct {
		area  model.CandidateArea
		score float64
	}
	rs := make([]ranked, 0, len(cands))
	for _, c := range cands {
		t1 := s.Estimate.Minutes(a, c.Coordinate)
		t2 := s.Estimate.Minutes(b, c.Coordinate)
		score := -((t1+t2)/2 + 0.5*math.Abs(t1-t2))
		if c.InZone1() || c.IsMajorHub() {
			score += quickScoreBonus
		}
		rs = append(rs, ranked{area: c, score: score})
	}

	slices.SortStableFunc(rs, func(x, y ranked) int {
		if c := cmp.Compare(y.score, x.score); c != 0 {
			return c
		}
		return strings.Compare(x.area.Key(), y.area.Key())
	})

	keep := PrefilterKeep(len(rs), s.PrefilterMin, s.PrefilterMax, s.PrefilterFraction)
	out := make([]model.CandidateArea, 0, keep)
	for _, r := range rs[:keep] {
		out = append(out, r.area)
	}
	return out
}
