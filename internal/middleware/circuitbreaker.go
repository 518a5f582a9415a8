package middleware

import (
	"net/http"

	"github.com/G1D0/httpkernel/internal/circuitbreaker"
	"github.com/G1D0/httpkernel/internal/response"
)

// CircuitBreaker rejects requests with 503 while the route's circuit is open.
// A returned error or a 5xx response counts as a failure. keyFunc defaults
// to RouteKey.
func CircuitBreaker(set *circuitbreaker.Set, keyFunc func(*http.Request) string) Middleware {
	if keyFunc == nil {
		keyFunc = RouteKey
	}
	return MiddlewareFunc(func(r *http.Request, next Handler) (*response.Response, error) {
		key := keyFunc(r)

		if !set.Allow(key) {
			return response.JSON(http.StatusServiceUnavailable, nil, errorBody{Error: "Service unavailable."}).Send()
		}

		resp, err := next.Handle(r)
		if err != nil || resp.StatusCode >= 500 {
			set.RecordFailure(key)
		} else {
			set.RecordSuccess(key)
		}
		return resp, err
	})
}
