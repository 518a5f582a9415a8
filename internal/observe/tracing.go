package observe

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// TraceHeader carries the request ID in both directions.
const TraceHeader = "X-Request-ID"

// maxInboundTraceID bounds client-supplied IDs; longer ones are replaced.
const maxInboundTraceID = 128

type traceKey struct{}

// GenerateTraceID returns a UUIDv4 as 32 lowercase hex digits.
func GenerateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TraceIDFromRequest returns the request's X-Request-ID when it is usable
// and a fresh ID otherwise. Empty, oversized or non-printable values are
// not echoed back to clients or written to logs.
func TraceIDFromRequest(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(TraceHeader))
	if validTraceID(id) {
		return id
	}
	return GenerateTraceID()
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxInboundTraceID {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceIDFrom returns the ID stored by WithTraceID, or "".
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
