package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/G1D0/httpkernel/internal/observe"
)

// Instrument records request count and latency for an http.Handler.
// It sits in front of the kernel at the transport level.
func Instrument(m *observe.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rc := NewResponseCapture(w)

			next.ServeHTTP(rc, r)

			m.RequestsTotal.WithLabelValues(strconv.Itoa(rc.StatusCode), r.Method).Inc()
			m.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
