// Package retry provides bounded retry with exponential, jittered backoff
// around unreliable external calls. The policy only governs scheduling: all
// failures are retried equally up to the attempt budget, without inspecting
// them for retryability.
package retry

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// Config bounds a retry loop.
type Config struct {
	Attempts     int           // total attempts, minimum 1
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // backoff cap
}

// DefaultConfig is a sane starting point for venue calls.
func DefaultConfig() Config {
	return Config{Attempts: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// Do runs op until it succeeds, the attempt budget is exhausted, or the
// context ends. The delay doubles each attempt, capped at MaxDelay, with
// ±25% random jitter to avoid synchronized retry storms. The last observed
// error is returned; a context error wins when the wait is interrupted.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == cfg.Attempts {
			break
		}
		log.Printf("retry: attempt %d/%d failed, backing off %v: %v", attempt, cfg.Attempts, delay, err)

		if err := sleep(ctx, jitter(delay)); err != nil {
			return zero, err
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return zero, lastErr
}

// jitter spreads a delay by ±25%.
func jitter(d time.Duration) time.Duration {
	f := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * f)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
