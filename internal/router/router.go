package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/G1D0/httpkernel/internal/middleware"
)

// Router is the dispatcher collaborator: Group applies route declarations
// and Dispatch matches a method and path against them.
type Router interface {
	Group(configure func(Registrar)) Router
	Dispatch(method, path string) Match
}

// Registrar declares routes. controller is anything the dependency resolver
// can call: a controller key or a controller value.
type Registrar interface {
	Handle(method, pattern string, controller any, mws ...middleware.Middleware)
	Get(pattern string, controller any, mws ...middleware.Middleware)
	Post(pattern string, controller any, mws ...middleware.Middleware)
	Put(pattern string, controller any, mws ...middleware.Middleware)
	Patch(pattern string, controller any, mws ...middleware.Middleware)
	Delete(pattern string, controller any, mws ...middleware.Middleware)
	// Prefix declares routes under a path prefix; mws run before each
	// route's own middleware.
	Prefix(prefix string, mws []middleware.Middleware, fn func(Registrar))
}

// endpoint is one declared (method, pattern) pair.
type endpoint struct {
	controller any
	middleware []middleware.Middleware
}

// Table is a Router whose path matching is delegated to chi's routing tree.
//
// Path parameters use chi syntax: "/users/{id}", "/files/*".
// A Table is not safe for concurrent declaration; build one per request
// or finish declaring before dispatching concurrently.
type Table struct {
	group
	mux       *chi.Mux
	endpoints map[string]endpoint // "METHOD pattern"
	methods   []string            // first-declaration order
}

// NewTable creates an empty route table.
func NewTable() *Table {
	t := &Table{
		mux:       chi.NewRouter(),
		endpoints: make(map[string]endpoint),
	}
	t.group = group{table: t}
	return t
}

// Group applies configure to the table and returns it.
func (t *Table) Group(configure func(Registrar)) Router {
	if configure != nil {
		configure(t)
	}
	return t
}

// Dispatch matches method and path against the declared routes.
func (t *Table) Dispatch(method, path string) Match {
	method = strings.ToUpper(method)

	if t.hasMethod(method) {
		rctx := chi.NewRouteContext()
		if t.mux.Match(rctx, method, path) && len(rctx.RoutePatterns) > 0 {
			// The last recorded pattern is the endpoint's pattern exactly
			// as it was declared.
			pattern := rctx.RoutePatterns[len(rctx.RoutePatterns)-1]
			if ep, ok := t.endpoints[method+" "+pattern]; ok {
				params := make(map[string]string, len(rctx.URLParams.Keys))
				for i, k := range rctx.URLParams.Keys {
					params[k] = rctx.URLParams.Values[i]
				}
				return Found{
					Method:     method,
					Pattern:    pattern,
					Controller: ep.controller,
					Middleware: append([]middleware.Middleware(nil), ep.middleware...),
					Params:     params,
				}
			}
		}
	}

	var allowed []string
	for _, m := range t.methods {
		if m == method {
			continue
		}
		if t.mux.Match(chi.NewRouteContext(), m, path) {
			allowed = append(allowed, m)
		}
	}
	if len(allowed) > 0 {
		return MethodNotAllowed{Allowed: allowed}
	}
	return NotFound{}
}

// Len reports the number of declared endpoints.
func (t *Table) Len() int { return len(t.endpoints) }

func (t *Table) hasMethod(method string) bool {
	for _, m := range t.methods {
		if m == method {
			return true
		}
	}
	return false
}

func (t *Table) add(method, pattern string, controller any, mws []middleware.Middleware) {
	method = strings.ToUpper(method)
	// chi panics on unknown methods and malformed patterns, same as
	// http.ServeMux does for bad registrations.
	t.mux.Method(method, pattern, http.NotFoundHandler())

	if !t.hasMethod(method) {
		t.methods = append(t.methods, method)
	}
	t.endpoints[method+" "+pattern] = endpoint{controller: controller, middleware: mws}
}

// group is a Registrar view over a table with a prefix and inherited middleware.
type group struct {
	table  *Table
	prefix string
	mws    []middleware.Middleware
}

func (g group) Handle(method, pattern string, controller any, mws ...middleware.Middleware) {
	all := make([]middleware.Middleware, 0, len(g.mws)+len(mws))
	all = append(all, g.mws...)
	all = append(all, mws...)
	g.table.add(method, joinPath(g.prefix, pattern), controller, all)
}

func (g group) Get(pattern string, controller any, mws ...middleware.Middleware) {
	g.Handle(http.MethodGet, pattern, controller, mws...)
}

func (g group) Post(pattern string, controller any, mws ...middleware.Middleware) {
	g.Handle(http.MethodPost, pattern, controller, mws...)
}

func (g group) Put(pattern string, controller any, mws ...middleware.Middleware) {
	g.Handle(http.MethodPut, pattern, controller, mws...)
}

func (g group) Patch(pattern string, controller any, mws ...middleware.Middleware) {
	g.Handle(http.MethodPatch, pattern, controller, mws...)
}

func (g group) Delete(pattern string, controller any, mws ...middleware.Middleware) {
	g.Handle(http.MethodDelete, pattern, controller, mws...)
}

func (g group) Prefix(prefix string, mws []middleware.Middleware, fn func(Registrar)) {
	inherited := make([]middleware.Middleware, 0, len(g.mws)+len(mws))
	inherited = append(inherited, g.mws...)
	inherited = append(inherited, mws...)
	fn(group{table: g.table, prefix: joinPath(g.prefix, prefix), mws: inherited})
}

func joinPath(prefix, pattern string) string {
	if prefix == "" {
		return pattern
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if pattern == "" || pattern == "/" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	return prefix + "/" + strings.TrimPrefix(pattern, "/")
}
