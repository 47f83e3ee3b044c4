package crawler

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter caps the request rate per host across all workers. A limiter
// created with a non-positive rate lets every request through, which leaves
// the per-worker politeness delay as the only throttle.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	limit    rate.Limit
}

// NewRateLimiter creates a limiter allowing requestsPerSecond per host.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

// Enabled reports whether the limiter throttles at all
func (r *RateLimiter) Enabled() bool {
	return r.limit != rate.Inf
}

// Wait blocks until a request to urlStr is allowed
func (r *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if !r.Enabled() {
		return ctx.Err()
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	return r.getLimiter(parsedURL.Host).Wait(ctx)
}

// getLimiter gets or creates a rate limiter for a host
func (r *RateLimiter) getLimiter(host string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[host]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check again in case another goroutine created it
	if limiter, exists := r.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(r.limit, 1)
	r.limiters[host] = limiter
	return limiter
}
