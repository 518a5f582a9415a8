package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/G1D0/httpkernel/internal/observe"
	"github.com/G1D0/httpkernel/internal/response"
)

// Logging logs each request as structured JSON with method, path, status,
// latency, client IP, and trace ID. The request-scoped logger is placed in
// the context for controllers further down the chain.
func Logging(logger *slog.Logger) Middleware {
	return MiddlewareFunc(func(r *http.Request, next Handler) (*response.Response, error) {
		start := time.Now()
		reqLogger := observe.RequestLogger(logger, r.Method, r.URL.Path, ClientIP(r), observe.TraceIDFrom(r.Context()))
		r = r.WithContext(observe.WithLogger(r.Context(), reqLogger))

		resp, err := next.Handle(r)

		if err != nil {
			reqLogger.Error("request failed",
				"latency_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			return nil, err
		}
		reqLogger.Info("request completed",
			"status", resp.StatusCode,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", len(resp.Body),
		)
		return resp, nil
	})
}
