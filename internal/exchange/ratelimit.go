package exchange

import (
	"context"
	"sync"
	"time"
)

// DefaultMinInterval is the spacing enforced between two calls to the same
// endpoint when the adapter config carries no rate-limit hint.
const DefaultMinInterval = 100 * time.Millisecond

// RateLimiter paces calls per endpoint key. It is not a token bucket: each
// endpoint simply has to wait until minInterval has passed since its
// previous call.
type RateLimiter struct {
	minInterval time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	lastCall map[string]time.Time
}

type RateLimiterOption func(*RateLimiter)

// WithClock replaces the time source and the sleeper, used by tests to
// observe delays without waiting on the wall clock.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) RateLimiterOption {
	return func(r *RateLimiter) {
		if now != nil {
			r.now = now
		}
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

func NewRateLimiter(minInterval time.Duration, opts ...RateLimiterOption) *RateLimiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}

	r := &RateLimiter{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       Sleep,
		lastCall:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RateLimiter) MinInterval() time.Duration {
	return r.minInterval
}

// Wait blocks until endpoint may be called again, then records the call.
// The slot is reserved before sleeping so concurrent callers of the same
// endpoint queue up behind each other.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	r.mu.Lock()
	now := r.now()
	var wait time.Duration
	if last, ok := r.lastCall[endpoint]; ok {
		if elapsed := now.Sub(last); elapsed < r.minInterval {
			wait = r.minInterval - elapsed
		}
	}
	r.lastCall[endpoint] = now.Add(wait)
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return r.sleep(ctx, wait)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
