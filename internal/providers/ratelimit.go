package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket limiter over requests per second.
// The scheduler shares one limiter across all workers hitting the same
// endpoint so the worker count and request rate stay independent knobs.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerSecond float64

	tokens     float64
	lastUpdate time.Time

	totalConsumed int64
	totalWaited   time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
}

// NewRateLimiter creates a new rate limiter. rps <= 0 disables limiting.
func NewRateLimiter(rps float64) *RateLimiter {
	return &RateLimiter{
		requestsPerSecond: rps,
		tokens:            rps,
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}

	for {
		r.mu.Lock()
		if r.requestsPerSecond <= 0 {
			r.mu.Unlock()
			return nil
		}
		r.refill()

		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}

		tokensNeeded := 1.0 - r.tokens
		waitTime := time.Duration(tokensNeeded / r.requestsPerSecond * float64(time.Second))
		r.mu.Unlock()

		// Cap the sleep so SetRate changes are picked up promptly.
		if waitTime > 100*time.Millisecond {
			waitTime = 100 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			r.mu.Lock()
			r.totalWaited += waitTime
			r.mu.Unlock()
		}
	}
}

// SetRate changes the request rate at runtime. Waiters pick up the new
// rate on their next refill. rps <= 0 disables limiting for subsequent
// calls but does not wake waiters already blocked.
func (r *RateLimiter) SetRate(rps float64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	r.requestsPerSecond = rps
	if r.tokens > rps {
		r.tokens = rps
	}
}

// refill adds tokens based on time elapsed. Caller must hold the lock.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.requestsPerSecond
	if r.tokens > r.requestsPerSecond {
		r.tokens = r.requestsPerSecond
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	if r == nil {
		return RateLimiterStatus{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
	}
}
