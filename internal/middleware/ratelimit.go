package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/G1D0/httpkernel/internal/ratelimit"
	"github.com/G1D0/httpkernel/internal/response"
)

// RateLimit rejects requests with 429 when the client exceeds their rate limit.
// Clients are keyed by IP.
func RateLimit(limiter *ratelimit.PerClient) Middleware {
	return RateLimitWithKeyFunc(limiter, ClientIP, nil)
}

// RateLimitWithKeyFunc is like RateLimit but uses a custom function to extract
// the client key (e.g., API key from header instead of IP). onReject, if not
// nil, is told about every rejected key.
func RateLimitWithKeyFunc(limiter *ratelimit.PerClient, keyFunc func(*http.Request) string, onReject func(key string)) Middleware {
	return MiddlewareFunc(func(r *http.Request, next Handler) (*response.Response, error) {
		key := keyFunc(r)

		ok, retryAfter := limiter.Allow(key)
		if !ok {
			if onReject != nil {
				onReject(key)
			}
			h := response.NewHeaders()
			h.Set("Retry-After", retryAfterSeconds(retryAfter))
			return response.JSON(http.StatusTooManyRequests, h, errorBody{Error: "Too many requests."}).Send()
		}

		return next.Handle(r)
	})
}

// NewDefaultLimiter creates a per-client rate limiter with sensible defaults.
func NewDefaultLimiter() *ratelimit.PerClient {
	return ratelimit.NewPerClient(
		100,            // 100 burst
		10.0,           // 10 req/sec sustained
		10*time.Minute, // stale bucket cleanup
	)
}

func retryAfterSeconds(d time.Duration) string {
	return fmt.Sprintf("%.0f", math.Ceil(d.Seconds()))
}

type errorBody struct {
	Error string `json:"error"`
}
