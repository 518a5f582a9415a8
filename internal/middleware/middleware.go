package middleware

import (
	"errors"
	"net/http"

	"github.com/G1D0/httpkernel/internal/response"
)

// ErrNilResponse is returned in place of a handler or middleware result
// that carried neither a response nor an error.
var ErrNilResponse = errors.New("handler returned no response and no error")

// Handler produces the response for a request.
type Handler interface {
	Handle(r *http.Request) (*response.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(r *http.Request) (*response.Response, error)

// Handle calls f(r).
func (f HandlerFunc) Handle(r *http.Request) (*response.Response, error) {
	return f(r)
}

// Middleware processes a request and forwards it to next.
//
// A middleware may change the request before forwarding, return its own
// response without calling next, or post-process what next returned.
type Middleware interface {
	Process(r *http.Request, next Handler) (*response.Response, error)
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(r *http.Request, next Handler) (*response.Response, error)

// Process calls f(r, next).
func (f MiddlewareFunc) Process(r *http.Request, next Handler) (*response.Response, error) {
	return f(r, next)
}

// Chain composes middlewares around terminal. Middleware are applied
// in the order given: Chain([a, b, c], t) behaves like a(b(c(t))).
//
// This means the first middleware in the list is the outermost wrapper
// and runs first on the request path and last on the response path.
// Errors travel back up the chain untouched. A step that returns neither a
// response nor an error yields ErrNilResponse, so callers can rely on one
// of the two being set.
func Chain(middlewares []Middleware, terminal Handler) Handler {
	var h Handler = guard{terminal}
	// Apply in reverse so first middleware is outermost
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = link{mw: middlewares[i], next: h}
	}
	return h
}

// link binds one middleware to the rest of the chain.
type link struct {
	mw   Middleware
	next Handler
}

func (l link) Handle(r *http.Request) (*response.Response, error) {
	return checked(l.mw.Process(r, l.next))
}

type guard struct {
	h Handler
}

func (g guard) Handle(r *http.Request) (*response.Response, error) {
	return checked(g.h.Handle(r))
}

func checked(resp *response.Response, err error) (*response.Response, error) {
	if resp == nil && err == nil {
		return nil, ErrNilResponse
	}
	return resp, err
}
