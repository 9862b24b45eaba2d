// Package ratelimiter throttles how quickly the file server admits new
// connections. It wraps golang.org/x/time/rate's token bucket.
package ratelimiter

import (
	"golang.org/x/time/rate"
)

// RateLimiter admits connections at a sustained rate with a burst allowance.
//
// A nil *RateLimiter admits everything, so callers can keep a single code
// path whether limiting is configured or not.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter admitting perSecond connections per second with the
// given burst. A burst of 0 defaults to perSecond. A perSecond of 0 disables
// limiting and New returns nil.
func New(perSecond, burst uint) *RateLimiter {
	if perSecond == 0 {
		return nil
	}
	if burst == 0 {
		burst = perSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(burst)),
	}
}

// Allow reports whether one more connection may be admitted right now,
// consuming a token if so. It never blocks.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Limit returns the configured sustained rate, 0 when unlimited.
func (r *RateLimiter) Limit() float64 {
	if r == nil {
		return 0
	}
	return float64(r.limiter.Limit())
}

// Burst returns the configured burst size, 0 when unlimited.
func (r *RateLimiter) Burst() int {
	if r == nil {
		return 0
	}
	return r.limiter.Burst()
}
