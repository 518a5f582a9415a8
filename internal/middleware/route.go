package middleware

import (
	"context"
	"net"
	"net/http"
)

type routeKey struct{}

// WithRoute records the matched route pattern (e.g. "GET /users/{id}") in ctx.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey{}, route)
}

// RouteFrom returns the matched route pattern, or "".
func RouteFrom(ctx context.Context) string {
	if s, ok := ctx.Value(routeKey{}).(string); ok {
		return s
	}
	return ""
}

// RouteKey keys a request by its matched route, falling back to method and path.
func RouteKey(r *http.Request) string {
	if s := RouteFrom(r.Context()); s != "" {
		return s
	}
	return r.Method + " " + r.URL.Path
}

// ClientIP is the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
