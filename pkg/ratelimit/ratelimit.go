// Package ratelimit gates calls to rate-limited external resources with a
// minute-scale token bucket: continuous refill proportional to elapsed
// time, capped burst, blocking acquire with timeout.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter admits up to perMinute operations per rolling minute with a
// bounded burst.
type Limiter struct {
	lim       *rate.Limiter
	perMinute int
	burst     int
}

// New creates a limiter. A non-positive burst defaults to perMinute.
func New(perMinute, burst int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &Limiter{
		lim:       rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		perMinute: perMinute,
		burst:     burst,
	}
}

// Acquire blocks until a token is available or the timeout elapses,
// reporting whether a token was obtained. Cancelling ctx also aborts the
// wait.
func (l *Limiter) Acquire(ctx context.Context, timeout time.Duration) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return l.lim.Wait(ctx) == nil
}

// Allow is the non-blocking probe.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// Rate returns the configured per-minute rate and burst.
func (l *Limiter) Rate() (perMinute, burst int) {
	return l.perMinute, l.burst
}
