package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds how often a transient failure is tried again.
type RetryConfig struct {
	// MaxAttempts counts the first try; 1 disables retry.
	MaxAttempts int
	// Backoff is the delay before the first retry. It doubles per attempt.
	Backoff time.Duration
	// MaxBackoff caps the delay.
	MaxBackoff time.Duration
	// Jitter is the random spread applied to each delay, as a fraction.
	Jitter float64
}

// DefaultRetryConfig calls once and never retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 1,
		Backoff:     250 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
		Jitter:      0.2,
	}
}

// Retry runs fn until it succeeds, returns a non-transient error, the
// attempts run out or ctx ends.
func Retry[T any](ctx context.Context, cfg RetryConfig, service string, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(cfg.MaxAttempts, 1)

	var (
		val T
		err error
	)
	for attempt := 1; ; attempt++ {
		val, err = fn(ctx)
		if err == nil || attempt >= attempts || !IsTransient(err) || ctx.Err() != nil {
			return val, err
		}

		delay := backoff(cfg, attempt)
		zap.L().Debug("retrying call",
			zap.String("service", service),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return val, err
		case <-t.C:
		}
	}
}

func backoff(cfg RetryConfig, attempt int) time.Duration {
	d := cfg.Backoff << (attempt - 1)
	if cfg.MaxBackoff > 0 && (d > cfg.MaxBackoff || d <= 0) {
		d = cfg.MaxBackoff
	}
	if cfg.Jitter > 0 {
		spread := float64(d) * cfg.Jitter
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	return max(d, 0)
}
