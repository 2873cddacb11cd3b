package resilience

import (
	"context"
	"sync"
	"time"
)

// GuardConfig combines the protections applied to every external call.
type GuardConfig struct {
	Timeout time.Duration
	Retry   RetryConfig
	Breaker BreakerConfig
}

// DefaultGuardConfig returns an 8s per-call timeout with no retry.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout: 8 * time.Second,
		Retry:   DefaultRetryConfig(),
		Breaker: DefaultBreakerConfig(),
	}
}

// Guard protects calls to one external service. A nil *Guard passes calls
// straight through.
type Guard struct {
	cfg     GuardConfig
	breaker *Breaker
}

// NewGuard creates a Guard with its own breaker.
func NewGuard(service string, cfg GuardConfig) *Guard {
	return &Guard{cfg: cfg, breaker: NewBreaker(service, cfg.Breaker)}
}

// Breaker exposes the guard's breaker for health reporting.
func (g *Guard) Breaker() *Breaker {
	if g == nil {
		return nil
	}
	return g.breaker
}

// Call runs fn under the guard. Each attempt gets its own timeout and must be
// admitted by the breaker. An attempt cut short by the caller's context is not
// counted against the service; one that hits the guard's own timeout is.
func Call[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	return Retry(ctx, g.cfg.Retry, g.breaker.Name(), func(parent context.Context) (T, error) {
		var zero T
		if err := g.breaker.Allow(); err != nil {
			return zero, err
		}
		ctx := parent
		if g.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parent, g.cfg.Timeout)
			defer cancel()
		}
		val, err := fn(ctx)
		if err != nil && parent.Err() != nil {
			g.breaker.Release()
			return val, err
		}
		g.breaker.Record(err)
		return val, err
	})
}

// Guards hands out one Guard per service name so that every client of a
// service shares its breaker.
type Guards struct {
	cfg GuardConfig

	mu     sync.Mutex
	guards map[string]*Guard
}

// NewGuards creates an empty registry.
func NewGuards(cfg GuardConfig) *Guards {
	return &Guards{cfg: cfg, guards: make(map[string]*Guard)}
}

// For returns the guard for service, creating it on first use.
func (gs *Guards) For(service string) *Guard {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	g, ok := gs.guards[service]
	if !ok {
		g = NewGuard(service, gs.cfg)
		gs.guards[service] = g
	}
	return g
}

// States snapshots the breaker state of every known service.
func (gs *Guards) States() map[string]string {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	out := make(map[string]string, len(gs.guards))
	for name, g := range gs.guards {
		out[name] = g.breaker.State().String()
	}
	return out
}
