package meetpoint

import (
	"math"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
)

const estimateMode = "estimate"

// EstimateCandidates builds low-confidence candidates for every area from
// distance alone. No provider is called.
func EstimateCandidates(areas []model.CandidateArea, a, b geo.Coordinate, e Estimator) []model.AnalyzedCandidate {
	out := make([]model.AnalyzedCandidate, 0, len(areas))
	for _, area := range areas {
		out = append(out, model.NewAnalyzedCandidate(
			area.WithRouteType(model.RouteEstimate),
			estimatedDetail(e.Minutes(a, area.Coordinate)),
			estimatedDetail(e.Minutes(b, area.Coordinate)),
			model.ConfidenceLow,
		))
	}
	return out
}

func estimatedDetail(minutes float64) model.JourneyDetail {
	return model.JourneyDetail{
		DurationMinutes: int(math.Round(minutes)),
		ModesUsed:       []string{estimateMode},
		RouteSummary:    "Estimated from distance",
	}
}
