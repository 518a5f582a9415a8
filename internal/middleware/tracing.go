package middleware

import (
	"net/http"

	"github.com/G1D0/httpkernel/internal/observe"
	"github.com/G1D0/httpkernel/internal/response"
)

// Tracing generates or propagates a trace ID for each request.
// If the client sends X-Request-ID, it's reused. Otherwise a new one is generated.
// The trace ID is stored in the context and set on the response header.
func Tracing() Middleware {
	return MiddlewareFunc(func(r *http.Request, next Handler) (*response.Response, error) {
		traceID := observe.TraceIDFromRequest(r)

		// Clone so the inbound request's headers stay untouched.
		r = r.Clone(observe.WithTraceID(r.Context(), traceID))
		r.Header.Set(observe.TraceHeader, traceID)

		resp, err := next.Handle(r)
		if err != nil {
			return nil, err
		}
		if resp.Header == nil {
			resp.Header = response.NewHeaders()
		}
		resp.Header.Set(observe.TraceHeader, traceID)
		return resp, nil
	})
}
