package meetpoint

import (
	"time"

	"go.uber.org/zap"
)

// State is a step of the search's fallback chain.
type State string

// Fallback chain states, in the order they can be visited.
const (
	StatePrimary           State = "PRIMARY"
	StateMerge             State = "DIRECT_AND_INTERSECTION_MERGE"
	StateEmpty             State = "EMPTY"
	StateMidpointFallback  State = "MIDPOINT_FALLBACK"
	StateEmergencyEstimate State = "EMERGENCY_ESTIMATE"
)

// Step records one visited state.
type Step struct {
	State      State `json:"state"`
	Candidates int   `json:"candidates"`
	DurationMs int64 `json:"durationMs"`
}

// Trace is the ordered list of states a search passed through.
type Trace []Step

// States returns just the state names.
func (t Trace) States() []State {
	out := make([]State, 0, len(t))
	for _, s := range t {
		out = append(out, s.State)
	}
	return out
}

// Visited reports whether the search passed through s.
func (t Trace) Visited(s State) bool {
	for _, step := range t {
		if step.State == s {
			return true
		}
	}
	return false
}

// Last returns the final state, or "" for an empty trace.
func (t Trace) Last() State {
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1].State
}

// track runs fn as state s and appends the outcome to the trace. fn returns
// the number of candidates the state produced.
func (t *Trace) track(s State, fn func() int) int {
	start := time.Now()
	n := fn()
	step := Step{State: s, Candidates: n, DurationMs: time.Since(start).Milliseconds()}
	*t = append(*t, step)

	zap.L().Debug("meetpoint: state complete",
		zap.String("state", string(s)),
		zap.Int("candidates", n),
		zap.Int64("duration_ms", step.DurationMs),
	)
	return n
}
