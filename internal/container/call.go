package container

import (
	"context"
	"fmt"
)

// Params are the named arguments of a controller call: the route's path
// parameters.
type Params map[string]string

// Get returns the named parameter, or "".
func (p Params) Get(name string) string { return p[name] }

// Lookup returns the named parameter and whether it was present.
func (p Params) Lookup(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// Controller handles a matched route. The result is returned to the kernel
// unchanged; the kernel decides whether it is an acceptable response.
type Controller interface {
	Invoke(ctx context.Context, r Resolver, params Params) (any, error)
}

// ControllerFunc adapts a function to Controller.
type ControllerFunc func(ctx context.Context, r Resolver, params Params) (any, error)

// Invoke calls f.
func (f ControllerFunc) Invoke(ctx context.Context, r Resolver, params Params) (any, error) {
	return f(ctx, r, params)
}

// call resolves ref to a controller and invokes it.
//
// ref may be a key bound to a controller, a Controller, a ControllerFunc,
// or a plain func(context.Context, Params) (any, error).
func call(ctx context.Context, r Resolver, ref any, params map[string]string) (any, error) {
	target := ref
	if key, ok := ref.(string); ok {
		v, err := r.Make(key)
		if err != nil {
			return nil, err
		}
		target = v
	}

	p := Params(params)
	if p == nil {
		p = Params{}
	}

	switch c := target.(type) {
	case Controller:
		return c.Invoke(ctx, r, p)
	case func(context.Context, Resolver, Params) (any, error):
		return c(ctx, r, p)
	case func(context.Context, Params) (any, error):
		return c(ctx, p)
	default:
		return nil, fmt.Errorf("call %v (%T): %w", ref, target, ErrNotCallable)
	}
}
