package meetpoint

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
)

// Analyzer fetches both travellers' journeys to each candidate in small
// parallel batches and keeps the candidates both can reach in time.
type Analyzer struct {
	planner    JourneyPlanner
	batchSize  int
	pause      time.Duration
	maxMinutes int
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewAnalyzer creates an Analyzer that pauses between batches of batchSize
// and drops journeys longer than maxMinutes.
func NewAnalyzer(planner JourneyPlanner, batchSize int, pause time.Duration, maxMinutes int) *Analyzer {
	return &Analyzer{
		planner:    planner,
		batchSize:  max(1, batchSize),
		pause:      pause,
		maxMinutes: maxMinutes,
		sleep:      sleepContext,
	}
}

// Analyze returns the candidates with usable journeys from both a and b, in
// input order.
func (an *Analyzer) Analyze(ctx context.Context, cands []model.CandidateArea, a, b geo.Coordinate, at *time.Time) []model.AnalyzedCandidate {
	if an.planner == nil {
		return nil
	}

	results := make([]*model.AnalyzedCandidate, len(cands))
	for start := 0; start < len(cands); start += an.batchSize {
		if start > 0 && an.pause > 0 {
			if err := an.sleep(ctx, an.pause); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		end := min(start+an.batchSize, len(cands))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Go(func() {
				ac, err := an.analyzeOne(ctx, cands[i], a, b, at)
				if err != nil {
					zap.L().Debug("analyzer: dropping candidate",
						zap.String("candidate", cands[i].Name),
						zap.Error(err),
					)
					return
				}
				results[i] = &ac
			})
		}
		wg.Wait()
	}

	out := make([]model.AnalyzedCandidate, 0, len(cands))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// analyzeOne plans both journeys concurrently. Either failing drops the
// candidate.
func (an *Analyzer) analyzeOne(ctx context.Context, area model.CandidateArea, a, b geo.Coordinate, at *time.Time) (model.AnalyzedCandidate, error) {
	var j1, j2 *model.Journey

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		j, err := an.plan(gCtx, a, area.Coordinate, at)
		j1 = j
		return err
	})
	g.Go(func() error {
		j, err := an.plan(gCtx, b, area.Coordinate, at)
		j2 = j
		return err
	})
	if err := g.Wait(); err != nil {
		return model.AnalyzedCandidate{}, err
	}

	return model.NewAnalyzedCandidate(area,
		model.DetailFromJourney(*j1),
		model.DetailFromJourney(*j2),
		model.ConfidenceHigh,
	), nil
}

func (an *Analyzer) plan(ctx context.Context, from, to geo.Coordinate, at *time.Time) (*model.Journey, error) {
	j, err := an.planner.Plan(ctx, from, to, at)
	if err != nil {
		return nil, err
	}
	if j == nil || j.DurationMinutes <= 0 {
		return nil, eris.New("analyzer: empty journey")
	}
	if an.maxMinutes > 0 && j.DurationMinutes > an.maxMinutes {
		return nil, eris.Errorf("analyzer: journey of %d min exceeds %d", j.DurationMinutes, an.maxMinutes)
	}
	return j, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
