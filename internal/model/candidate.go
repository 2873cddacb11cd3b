package model

import (
	"math"

	"github.com/sells-group/commonplace/internal/geo"
)

// Confidence says where a candidate's journey figures came from.
type Confidence string

const (
	// ConfidenceHigh figures come from the journey planner.
	ConfidenceHigh Confidence = "high"
	// ConfidenceLow figures are distance-based estimates.
	ConfidenceLow Confidence = "low"
)

// ReachabilityPolygon bounds everywhere reachable from Origin within Minutes.
type ReachabilityPolygon struct {
	Origin  geo.Coordinate
	Minutes int
	Profile string
	Ring    []geo.Coordinate
}

// AnalyzedCandidate is an area with both travellers' journeys to it.
type AnalyzedCandidate struct {
	Area           CandidateArea
	Journey1       JourneyDetail
	Journey2       JourneyDetail
	TimeDifference float64
	AverageTime    float64
	Confidence     Confidence
}

// NewAnalyzedCandidate derives the time difference and average from the two journeys.
func NewAnalyzedCandidate(area CandidateArea, j1, j2 JourneyDetail, conf Confidence) AnalyzedCandidate {
	d1 := float64(j1.DurationMinutes)
	d2 := float64(j2.DurationMinutes)
	return AnalyzedCandidate{
		Area:           area,
		Journey1:       j1,
		Journey2:       j2,
		TimeDifference: math.Abs(d1 - d2),
		AverageTime:    (d1 + d2) / 2,
		Confidence:     conf,
	}
}

// TotalChanges is the interchange count across both journeys.
func (a AnalyzedCandidate) TotalChanges() int {
	return a.Journey1.InterchangeCount + a.Journey2.InterchangeCount
}

// Breakdown holds the weighted sub-scores behind a ScoredCandidate.
type Breakdown struct {
	Speed       float64 `json:"speed"`
	Fairness    float64 `json:"fairness"`
	Convenience float64 `json:"convenience"`
	Prestige    float64 `json:"prestige"`
	DirectBonus float64 `json:"directBonus"`
}

// ScoredCandidate is an analyzed candidate with its convenience score. It is
// built by the scorer package.
type ScoredCandidate struct {
	AnalyzedCandidate
	Score          float64
	Breakdown      Breakdown
	ScoringVersion string
}
