package meetpoint

import (
	"context"
	"time"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
)

// Reachability returns the area reachable from an origin within a budget.
// isochrone.Client satisfies it.
type Reachability interface {
	Reachable(ctx context.Context, origin geo.Coordinate, minutes int) (model.ReachabilityPolygon, error)
}

// JourneyPlanner plans a public-transport journey. tfl.Client satisfies it.
type JourneyPlanner interface {
	Plan(ctx context.Context, from, to geo.Coordinate, at *time.Time) (*model.Journey, error)
}

// Locator maps free text to coordinates and back. geocode.Client satisfies it.
type Locator interface {
	Resolve(ctx context.Context, text string) (geo.Coordinate, error)
	Describe(ctx context.Context, c geo.Coordinate) (string, error)
}
