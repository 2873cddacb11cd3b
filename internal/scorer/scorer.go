package scorer

import (
	"cmp"
	"math"
	"slices"

	"github.com/sells-group/commonplace/internal/config"
	"github.com/sells-group/commonplace/internal/model"
)

// Scorer scores analyzed candidates with one fixed configuration.
type Scorer struct {
	cfg config.ScoringConfig
}

// New validates cfg and returns a Scorer for it.
func New(cfg config.ScoringConfig) (*Scorer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() config.ScoringConfig { return s.cfg }

// Score computes the weighted convenience score of a candidate. The result is
// rounded to one decimal and depends only on its inputs.
func (s *Scorer) Score(c model.AnalyzedCandidate) model.ScoredCandidate {
	b := model.Breakdown{
		Speed:       s.speed(c.AverageTime),
		Fairness:    linearPenalty(c.TimeDifference, s.cfg.MaxGapMinutes),
		Convenience: linearPenalty(float64(c.TotalChanges()), s.cfg.MaxChanges),
		Prestige:    s.prestige(c.Area),
	}
	if c.Area.RouteType == model.RouteDirect {
		b.DirectBonus = s.directBonus(c.AverageTime)
	}

	total := s.cfg.SpeedWeight*b.Speed +
		s.cfg.FairnessWeight*b.Fairness +
		s.cfg.ConvenienceWeight*b.Convenience +
		s.cfg.PrestigeWeight*b.Prestige +
		b.DirectBonus

	return model.ScoredCandidate{
		AnalyzedCandidate: c,
		Score:             round1(total),
		Breakdown:         roundBreakdown(b),
		ScoringVersion:    s.cfg.Version,
	}
}

// ScoreAll scores every candidate and returns them best first. Equal scores
// are ordered by normalized name.
func (s *Scorer) ScoreAll(cs []model.AnalyzedCandidate) []model.ScoredCandidate {
	out := make([]model.ScoredCandidate, 0, len(cs))
	for _, c := range cs {
		out = append(out, s.Score(c))
	}
	SortScored(out)
	return out
}

// SortScored orders candidates by descending score, ties by normalized name.
func SortScored(cs []model.ScoredCandidate) {
	slices.SortStableFunc(cs, func(a, b model.ScoredCandidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Area.Key(), b.Area.Key())
	})
}

// speed is flat-ish up to the soft threshold, then falls away super-linearly
// to zero at the ceiling.
func (s *Scorer) speed(avg float64) float64 {
	soft, ceiling := s.cfg.SoftMinutes, s.cfg.CeilingMinutes
	avg = max(avg, 0)
	if avg <= soft {
		return 100 - 20*avg/soft
	}
	over := min((avg-soft)/(ceiling-soft), 1)
	return max(0, 80*(1-math.Pow(over, s.cfg.SpeedExponent)))
}

func (s *Scorer) prestige(a model.CandidateArea) float64 {
	var p float64
	if a.IsMajorHub() {
		p += s.cfg.HubBonus
	}
	if a.InZone1() {
		p += s.cfg.Zone1Bonus
	}
	return min(p, 100)
}

func (s *Scorer) directBonus(avg float64) float64 {
	if avg <= 0 {
		return s.cfg.DirectBonus
	}
	return s.cfg.DirectBonus * min(1, s.cfg.DirectRefMinutes/avg)
}

// linearPenalty maps 0 to 100 and limit (or more) to 0.
func linearPenalty(v, limit float64) float64 {
	return max(0, 100*(1-v/limit))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func roundBreakdown(b model.Breakdown) model.Breakdown {
	return model.Breakdown{
		Speed:       round1(b.Speed),
		Fairness:    round1(b.Fairness),
		Convenience: round1(b.Convenience),
		Prestige:    round1(b.Prestige),
		DirectBonus: round1(b.DirectBonus),
	}
}
