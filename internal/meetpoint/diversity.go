package meetpoint

import (
	"slices"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
	"github.com/sells-group/commonplace/internal/scorer"
)

// Selected is one accepted candidate and the separation threshold that was in
// force when it was accepted. SeparationKm is zero for unconstrained fills.
type Selected struct {
	Candidate    model.ScoredCandidate
	SeparationKm float64
}

// Selection is the diversity selector's output, in acceptance order.
type Selection struct {
	Items []Selected
	// Exhausted is set when slots had to be filled ignoring every constraint.
	Exhausted bool
	// MinSeparationKm is the threshold of the first pass.
	MinSeparationKm float64
}

// Candidates returns the accepted candidates in acceptance order.
func (s Selection) Candidates() []model.ScoredCandidate {
	out := make([]model.ScoredCandidate, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, it.Candidate)
	}
	return out
}

// Relaxed reports whether any item was accepted below the first-pass
// separation.
func (s Selection) Relaxed() bool {
	if s.Exhausted {
		return true
	}
	for _, it := range s.Items {
		if it.SeparationKm < s.MinSeparationKm {
			return true
		}
	}
	return false
}

// Select picks up to n spatially spread candidates. The first pass requires
// more than minKm between results and at most categoryCap results per category; the
// second pass halves the separation; any remaining slots are filled by score.
func Select(scored []model.ScoredCandidate, n int, minKm float64, categoryCap int) Selection {
	sel := Selection{MinSeparationKm: minKm}
	if n <= 0 || len(scored) == 0 {
		return sel
	}

	sorted := slices.Clone(scored)
	scorer.SortScored(sorted)

	accepted := make([]bool, len(sorted))
	perCategory := make(map[model.Category]int)

	take := func(i int, sep float64) {
		accepted[i] = true
		perCategory[sorted[i].Area.Category]++
		sel.Items = append(sel.Items, Selected{Candidate: sorted[i], SeparationKm: sep})
	}

	for _, sep := range []float64{minKm, minKm / 2} {
		for i, c := range sorted {
			if len(sel.Items) >= n {
				return sel
			}
			if accepted[i] {
				continue
			}
			if categoryCap > 0 && perCategory[c.Area.Category] >= categoryCap {
				continue
			}
			if !farFromAll(c, sel.Items, sep) {
				continue
			}
			take(i, sep)
		}
	}

	for i := range sorted {
		if len(sel.Items) >= n {
			break
		}
		if !accepted[i] {
			take(i, 0)
			sel.Exhausted = true
		}
	}
	return sel
}

func farFromAll(c model.ScoredCandidate, items []Selected, minKm float64) bool {
	for _, it := range items {
		if geo.HaversineKm(c.Area.Coordinate, it.Candidate.Area.Coordinate) <= minKm {
			return false
		}
	}
	return true
}
