package meetpoint

import (
	"context"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/commonplace/internal/catalog"
	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
)

// Collector finds catalog areas inside both travellers' reachability
// polygons, widening the budget until enough are found.
type Collector struct {
	reach   Reachability
	catalog *catalog.Catalog
	budgets []Budget
}

// NewCollector creates a Collector. Budgets must be ascending.
func NewCollector(reach Reachability, cat *catalog.Catalog, budgets []Budget) *Collector {
	return &Collector{reach: reach, catalog: cat, budgets: budgets}
}

// Collect returns the areas reachable by both travellers, in catalog order.
// A budget whose polygons cannot be fetched is skipped.
func (c *Collector) Collect(ctx context.Context, a, b geo.Coordinate) []model.CandidateArea {
	areas := c.catalog.All()
	if c.reach == nil || len(areas) == 0 {
		return nil
	}

	found := make(map[int]struct{})
	for _, budget := range c.budgets {
		if ctx.Err() != nil {
			break
		}

		ringA, ringB, err := c.rings(ctx, a, b, budget.Minutes)
		if err != nil {
			zap.L().Warn("collector: skipping budget",
				zap.Int("minutes", budget.Minutes),
				zap.Error(err),
			)
			continue
		}

		added := 0
		for i, area := range areas {
			if _, ok := found[i]; ok {
				continue
			}
			if ringA.Contains(area.Coordinate) && ringB.Contains(area.Coordinate) {
				found[i] = struct{}{}
				added++
			}
		}
		zap.L().Debug("collector: budget done",
			zap.Int("minutes", budget.Minutes),
			zap.Int("added", added),
			zap.Int("total", len(found)),
		)

		if len(found) >= budget.StopAt {
			break
		}
	}

	idx := make([]int, 0, len(found))
	for i := range found {
		idx = append(idx, i)
	}
	slices.Sort(idx)

	out := make([]model.CandidateArea, 0, len(idx))
	for _, i := range idx {
		out = append(out, areas[i].WithRouteType(model.RouteIsochrone))
	}
	return out
}

// rings fetches both travellers' polygons concurrently.
func (c *Collector) rings(ctx context.Context, a, b geo.Coordinate, minutes int) (*geo.Ring, *geo.Ring, error) {
	var ringA, ringB *geo.Ring

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := c.ring(gCtx, a, minutes)
		ringA = r
		return err
	})
	g.Go(func() error {
		r, err := c.ring(gCtx, b, minutes)
		ringB = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ringA, ringB, nil
}

func (c *Collector) ring(ctx context.Context, origin geo.Coordinate, minutes int) (*geo.Ring, error) {
	poly, err := c.reach.Reachable(ctx, origin, minutes)
	if err != nil {
		return nil, err
	}
	return geo.NewRing(poly.Ring)
}
