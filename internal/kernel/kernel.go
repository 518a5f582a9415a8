// Package kernel turns an HTTP request into a response: it asks the router
// for a match, answers unmatched requests itself and runs matched routes
// through their middleware chain into the controller.
package kernel

import (
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/G1D0/httpkernel/internal/container"
	"github.com/G1D0/httpkernel/internal/middleware"
	"github.com/G1D0/httpkernel/internal/observe"
	"github.com/G1D0/httpkernel/internal/response"
	"github.com/G1D0/httpkernel/internal/router"
)

// Scoper hands out a fresh request scope for every request.
// *container.Container satisfies it.
type Scoper interface {
	Scope() container.Resolver
}

// Kernel is the request pipeline. It holds no per-request state, so one
// Kernel serves concurrent requests; each request gets its own scope.
type Kernel struct {
	scopes  Scoper
	routes  func(router.Registrar)
	logger  *slog.Logger
	metrics *observe.Metrics
	tracer  trace.Tracer
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) { k.logger = l }
}

// WithMetrics enables outcome and contract violation metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(k *Kernel) { k.metrics = m }
}

// WithTracer overrides the tracer. Defaults to the global provider's.
func WithTracer(t trace.Tracer) Option {
	return func(k *Kernel) { k.tracer = t }
}

// New creates a kernel. routes is applied to the router on every request.
func New(scopes Scoper, routes func(router.Registrar), opts ...Option) *Kernel {
	k := &Kernel{
		scopes: scopes,
		routes: routes,
		logger: slog.Default(),
		tracer: observe.Tracer(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Handle runs the pipeline for r.
//
// Unmatched requests produce 404 or 405 responses. Errors from the router
// binding, the resolver, middleware or the controller are returned as they
// are; a controller returning anything but an envelope yields a
// *TypeContractError.
func (k *Kernel) Handle(r *http.Request) (*response.Response, error) {
	ctx, span := k.tracer.Start(r.Context(), "kernel.handle", trace.WithAttributes(
		attribute.String("http.request.method", r.Method),
		attribute.String("url.path", r.URL.Path),
	))
	defer span.End()

	scope := k.scopes.Scope()
	r = r.WithContext(container.WithResolver(ctx, scope))
	scope.Set(container.KeyRequest, r)

	rt, err := k.router(scope)
	if err != nil {
		return nil, spanError(span, err)
	}
	scope.Set(container.KeyRouter, rt)

	match := rt.Group(k.routes).Dispatch(r.Method, r.URL.Path)

	env, found, outcome := classify(match)
	span.SetAttributes(attribute.String("kernel.route.outcome", outcome))
	if k.metrics != nil {
		k.metrics.RouteOutcomes.WithLabelValues(outcome).Inc()
	}
	if env != nil {
		k.logger.Debug("route not matched", "method", r.Method, "path", r.URL.Path, "outcome", outcome)
		return env.Send()
	}

	route := found.Method + " " + found.Pattern
	span.SetAttributes(attribute.String("http.route", found.Pattern))
	r = r.WithContext(middleware.WithRoute(r.Context(), route))

	resp, err := middleware.Chain(found.Middleware, k.terminal(scope, found)).Handle(r)
	if err != nil {
		return nil, spanError(span, err)
	}
	return resp, nil
}

// router obtains the router from the scope.
func (k *Kernel) router(scope container.Resolver) (router.Router, error) {
	v, err := scope.Make(container.KeyRouter)
	if err != nil {
		return nil, err
	}
	rt, ok := v.(router.Router)
	if !ok {
		return nil, fmt.Errorf("binding %q is %T, not a router.Router", container.KeyRouter, v)
	}
	return rt, nil
}

// terminal is the innermost link of the chain: it calls the controller and
// enforces the envelope contract. It never calls a next handler.
func (k *Kernel) terminal(scope container.Resolver, found *router.Found) middleware.Handler {
	return middleware.HandlerFunc(func(r *http.Request) (*response.Response, error) {
		// Middleware may have replaced the request.
		scope.Set(container.KeyRequest, r)

		result, err := scope.Call(r.Context(), found.Controller, found.Params)
		if err != nil {
			return nil, err
		}

		env, ok := result.(*response.Envelope)
		if !ok || env == nil {
			if k.metrics != nil {
				k.metrics.ContractViolations.Inc()
			}
			return nil, &TypeContractError{Controller: found.Controller, Got: result}
		}
		return env.Send()
	})
}

// ServeHTTP adapts the kernel to net/http. Errors are logged and answered
// with a generic 500; their details never reach the client.
func (k *Kernel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := k.Handle(r)
	if err == nil && resp == nil {
		err = middleware.ErrNilResponse
	}
	if err != nil {
		k.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"trace_id", observe.TraceIDFrom(r.Context()),
			"error", err,
		)
		resp = internalError()
	}
	if err := resp.Write(w); err != nil {
		k.logger.Warn("write response", "error", err)
	}
}

func internalError() *response.Response {
	h := response.NewHeaders()
	h.Set("Content-Type", "application/json")
	return &response.Response{
		StatusCode: http.StatusInternalServerError,
		Header:     h,
		Body:       []byte(`{"error":"Internal server error."}`),
	}
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
