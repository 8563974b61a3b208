package oracle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedOracle implements rate limiting using a token bucket
// algorithm. This keeps batch runs inside provider rate limits and ensures
// consistent request pacing even when many reviews are scored in parallel.
type rateLimitedOracle struct {
	next    CoreOracle
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that enforces rate limiting using
// a token bucket. The limit parameter sets requests per second, while burst
// allows temporary spikes above the sustained rate.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next CoreOracle) CoreOracle {
		return &rateLimitedOracle{
			next:    next,
			limiter: limiter,
		}
	}
}

// DoRequest waits for rate limit permission before forwarding the request.
// This blocks the calling goroutine until a token is available or the
// context is cancelled.
func (r *rateLimitedOracle) DoRequest(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, prompt)
}

// GetModel returns the model name from the wrapped implementation.
func (r *rateLimitedOracle) GetModel() string { return r.next.GetModel() }
