package tfl

// Strategy is one way of asking the journey planner for a trip. Strategies
// are tried in order until one yields a usable journey.
type Strategy struct {
	Name string
	// Timed sends the requested departure time when one is given.
	Timed bool
	// Modes restricts the modes considered. Empty leaves the planner default.
	Modes []string
}

// Strategy names.
const (
	StrategyTimedMultimodal = "timed-multimodal"
	StrategyUntimedDefault  = "untimed-default"
)

// DefaultStrategies asks first for a timed trip over modes, then for the
// planner's default untimed answer.
func DefaultStrategies(modes []string) []Strategy {
	return []Strategy{
		{Name: StrategyTimedMultimodal, Timed: true, Modes: modes},
		{Name: StrategyUntimedDefault},
	}
}
