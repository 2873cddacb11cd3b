package meetpoint

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/commonplace/internal/catalog"
	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
	"github.com/sells-group/commonplace/internal/scorer"
	"github.com/sells-group/commonplace/pkg/geocode"
)

// Providers are the external services a search depends on. Any of them may be
// nil; the stage that needs it then produces nothing.
type Providers struct {
	Reachability Reachability
	Journeys     JourneyPlanner
	Locator      Locator
}

// Outcome is the result of a search between two coordinates.
type Outcome struct {
	Selection Selection
	Trace     Trace
}

// Engine runs meeting-point searches.
type Engine struct {
	catalog   *catalog.Catalog
	locator   Locator
	collector *Collector
	extractor *DirectRouteExtractor
	analyzer  *Analyzer
	scorer    *scorer.Scorer
	settings  Settings

	now   func() time.Time
	newID func() string
}

// New creates an Engine over cat.
func New(cat *catalog.Catalog, p Providers, sc *scorer.Scorer, s Settings) (*Engine, error) {
	if sc == nil {
		return nil, eris.New("meetpoint: scorer is required")
	}
	if s.ResultCount <= 0 {
		return nil, eris.Errorf("meetpoint: result count must be positive, got %d", s.ResultCount)
	}
	return &Engine{
		catalog:   cat,
		locator:   p.Locator,
		collector: NewCollector(p.Reachability, cat, s.Budgets),
		extractor: NewDirectRouteExtractor(p.Journeys, cat, s.DirectStops, s.DirectSeparationKm),
		analyzer:  NewAnalyzer(p.Journeys, s.BatchSize, s.BatchPause, s.MaxJourneyMinutes),
		scorer:    sc,
		settings:  s,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Settings returns the engine's tuning.
func (e *Engine) Settings() Settings { return e.settings }

// Search resolves both origins, finds meeting points and describes the
// origins for display.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	started := e.now()

	var a, b geo.Coordinate
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a, err = e.resolve(gCtx, "location1", req.Location1)
		return err
	})
	g.Go(func() (err error) {
		b, err = e.resolve(gCtx, "location2", req.Location2)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out, err := e.Find(ctx, a, b, req.MeetingTime)
	if err != nil {
		return nil, err
	}

	var nameA, nameB string
	var wg sync.WaitGroup
	wg.Go(func() { nameA = e.describe(ctx, req.Location1, a) })
	wg.Go(func() { nameB = e.describe(ctx, req.Location2, b) })
	wg.Wait()

	resp := &Response{
		Success: true,
		Results: NewResults(out.Selection),
		Metadata: Metadata{
			SearchID:       e.newID(),
			SearchTime:     started.UTC(),
			DurationMs:     e.now().Sub(started).Milliseconds(),
			Location1:      a,
			Location2:      b,
			Location1Name:  nameA,
			Location2Name:  nameB,
			VenueTypes:     lo.Uniq(lo.Compact(req.VenueTypes)),
			States:         out.Trace.States(),
			Trace:          out.Trace,
			Relaxed:        out.Selection.Relaxed(),
			ScoringVersion: e.scorer.Config().Version,
		},
	}

	zap.L().Info("meetpoint: search complete",
		zap.String("search_id", resp.Metadata.SearchID),
		zap.Int("results", len(resp.Results)),
		zap.String("final_state", string(out.Trace.Last())),
		zap.Int64("duration_ms", resp.Metadata.DurationMs),
	)
	return resp, nil
}

// Find runs the candidate pipeline and its fallback chain between a and b.
func (e *Engine) Find(ctx context.Context, a, b geo.Coordinate, at *time.Time) (*Outcome, error) {
	for _, c := range []geo.Coordinate{a, b} {
		if !e.inServiceArea(c) {
			return nil, eris.Wrapf(ErrOutOfServiceArea, "meetpoint: %s", c)
		}
	}

	out := &Outcome{}
	n := e.settings.ResultCount

	var direct, reachable []model.CandidateArea
	out.Trace.track(StatePrimary, func() int {
		var wg sync.WaitGroup
		wg.Go(func() { direct = e.extractor.Extract(ctx, a, b, at) })
		wg.Go(func() { reachable = e.collector.Collect(ctx, a, b) })
		wg.Wait()
		return len(direct) + len(reachable)
	})

	out.Trace.track(StateMerge, func() int {
		merged := Merge(direct, reachable)
		if len(merged) == 0 {
			return 0
		}
		out.Selection = e.rank(ctx, Prefilter(merged, a, b, e.settings), a, b, at, n)
		return len(out.Selection.Items)
	})
	if len(out.Selection.Items) > 0 {
		return out, nil
	}

	out.Trace.track(StateEmpty, func() int { return 0 })

	out.Trace.track(StateMidpointFallback, func() int {
		near := e.catalog.Nearest(geo.Midpoint(a, b), e.settings.MidpointCandidates)
		cands := lo.Map(near, func(c model.CandidateArea, _ int) model.CandidateArea {
			return c.WithRouteType(model.RouteMidpoint)
		})
		out.Selection = e.rank(ctx, cands, a, b, at, n)
		return len(out.Selection.Items)
	})
	if len(out.Selection.Items) > 0 {
		return out, nil
	}

	out.Trace.track(StateEmergencyEstimate, func() int {
		est := EstimateCandidates(e.catalog.All(), a, b, e.settings.Estimate)
		out.Selection = Select(e.scorer.ScoreAll(est), n, e.settings.MinSeparationKm, e.settings.CategoryCap)
		return len(out.Selection.Items)
	})
	if len(out.Selection.Items) == 0 {
		return nil, eris.Wrap(ErrNoViableCandidates, "meetpoint: catalog is empty")
	}
	return out, nil
}

func (e *Engine) inServiceArea(c geo.Coordinate) bool {
	return c.Valid() && e.settings.ServiceArea.Contains(c)
}

func (e *Engine) rank(ctx context.Context, cands []model.CandidateArea, a, b geo.Coordinate, at *time.Time, n int) Selection {
	analyzed := e.analyzer.Analyze(ctx, cands, a, b, at)
	return Select(e.scorer.ScoreAll(analyzed), n, e.settings.MinSeparationKm, e.settings.CategoryCap)
}

func (e *Engine) resolve(ctx context.Context, field string, o Origin) (geo.Coordinate, error) {
	if o.Coordinate != nil {
		if !e.inServiceArea(*o.Coordinate) {
			return geo.Coordinate{}, eris.Wrapf(ErrOutOfServiceArea, "meetpoint: %s %s", field, *o.Coordinate)
		}
		return *o.Coordinate, nil
	}
	text := strings.TrimSpace(o.Text)
	if text == "" {
		return geo.Coordinate{}, eris.Wrapf(ErrLocationUnresolved, "meetpoint: %s is empty", field)
	}
	if e.locator == nil {
		return geo.Coordinate{}, eris.Wrapf(ErrLocationUnresolved, "meetpoint: no geocoder for %s", field)
	}
	c, err := e.locator.Resolve(ctx, text)
	if err != nil {
		zap.L().Warn("meetpoint: resolve failed", zap.String("field", field), zap.String("text", text), zap.Error(err))
		return geo.Coordinate{}, eris.Wrapf(ErrLocationUnresolved, "meetpoint: %s %q", field, text)
	}
	return c, nil
}

func (e *Engine) describe(ctx context.Context, o Origin, c geo.Coordinate) string {
	if e.locator != nil {
		if name, err := e.locator.Describe(ctx, c); err == nil && name != "" {
			return name
		}
	}
	if t := strings.TrimSpace(o.Text); t != "" {
		return t
	}
	return geocode.FallbackName(c)
}
