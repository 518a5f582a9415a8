// Package container is the kernel's dependency resolver: a process-wide
// registry of bindings plus request scopes that override it.
package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Well-known keys bound by the kernel and the application.
const (
	KeyContainer = "container"
	KeyRequest   = "request"
	KeyRouter    = "router"
)

var (
	// ErrNotBound is returned by Make when no binding exists for a key.
	ErrNotBound = errors.New("no binding")
	// ErrNotCallable is returned by Call when a reference cannot be invoked.
	ErrNotCallable = errors.New("not callable")
)

// Factory builds a value. It may resolve its own dependencies through r.
type Factory func(r Resolver) (any, error)

// Resolver is what request handling consumes: per-request bindings,
// construction by key and controller invocation with named arguments.
type Resolver interface {
	Set(key string, value any)
	Make(key string) (any, error)
	Call(ctx context.Context, ref any, params map[string]string) (any, error)
}

// binding is either a fixed instance or a factory.
type binding struct {
	instance any
	factory  Factory
	shared   bool
}

// Container is the process-lifetime registry. It is safe for concurrent use.
type Container struct {
	mu       sync.RWMutex
	bindings map[string]*binding
	shared   map[string]any
}

// New creates an empty container.
func New() *Container {
	return &Container{
		bindings: make(map[string]*binding),
		shared:   make(map[string]any),
	}
}

// Instance binds key to a fixed value.
func (c *Container) Instance(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[key] = &binding{instance: value}
	delete(c.shared, key)
}

// Bind registers a factory called on every Make.
func (c *Container) Bind(key string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[key] = &binding{factory: f}
	delete(c.shared, key)
}

// Singleton registers a factory whose first successful result is reused.
func (c *Container) Singleton(key string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[key] = &binding{factory: f, shared: true}
	delete(c.shared, key)
}

// Has reports whether key is bound.
func (c *Container) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[key]
	return ok
}

// Set binds a fixed value process-wide. Per-request values belong on a
// Scope instead.
func (c *Container) Set(key string, value any) {
	c.Instance(key, value)
}

// Make resolves key outside of any request.
func (c *Container) Make(key string) (any, error) {
	return c.resolve(c, key)
}

// Call invokes ref outside of any request.
func (c *Container) Call(ctx context.Context, ref any, params map[string]string) (any, error) {
	return call(ctx, c, ref, params)
}

// Scope starts a request scope. Values Set on it shadow the container's
// bindings and are invisible to other scopes.
func (c *Container) Scope() Resolver {
	return &Scope{parent: c, overrides: make(map[string]any)}
}

// resolve builds key, handing r to factories so that they see the caller's
// scope.
func (c *Container) resolve(r Resolver, key string) (any, error) {
	c.mu.RLock()
	b, ok := c.bindings[key]
	if ok && b.shared {
		if v, done := c.shared[key]; done {
			c.mu.RUnlock()
			return v, nil
		}
	}
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("resolve %q: %w", key, ErrNotBound)
	}
	if b.factory == nil {
		return b.instance, nil
	}

	v, err := b.factory(r)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", key, err)
	}
	if b.shared {
		c.mu.Lock()
		if existing, done := c.shared[key]; done {
			v = existing
		} else {
			c.shared[key] = v
		}
		c.mu.Unlock()
	}
	return v, nil
}

// Scope is a request-scoped resolver. It is meant for a single request and
// is not shared between goroutines handling different requests.
type Scope struct {
	parent    *Container
	mu        sync.RWMutex
	overrides map[string]any
}

// Set binds key to value for this scope only.
func (s *Scope) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key] = value
}

// Make returns the scope's value for key, falling back to the container.
func (s *Scope) Make(key string) (any, error) {
	s.mu.RLock()
	v, ok := s.overrides[key]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}
	return s.parent.resolve(s, key)
}

// Call invokes ref with params as its named arguments.
func (s *Scope) Call(ctx context.Context, ref any, params map[string]string) (any, error) {
	return call(WithResolver(ctx, s), s, ref, params)
}

type resolverKey struct{}

// WithResolver stores r in ctx.
func WithResolver(ctx context.Context, r Resolver) context.Context {
	return context.WithValue(ctx, resolverKey{}, r)
}

// ResolverFrom returns the resolver stored in ctx, if any.
func ResolverFrom(ctx context.Context) (Resolver, bool) {
	r, ok := ctx.Value(resolverKey{}).(Resolver)
	return r, ok
}
