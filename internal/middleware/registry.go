package middleware

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps names used in route files ("tracing", "throttle") to
// middleware instances.
type Registry struct {
	mu  sync.RWMutex
	mws map[string]Middleware
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{mws: make(map[string]Middleware)}
}

// Register adds or replaces the middleware known as name.
func (r *Registry) Register(name string, mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mws[name] = mw
}

// Lookup returns the middleware registered as name.
func (r *Registry) Lookup(name string) (Middleware, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mw, ok := r.mws[name]
	return mw, ok
}

// Resolve maps names to middleware, keeping their order.
func (r *Registry) Resolve(names []string) ([]Middleware, error) {
	out := make([]Middleware, 0, len(names))
	for _, n := range names {
		mw, ok := r.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("unknown middleware %q", n)
		}
		out = append(out, mw)
	}
	return out, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.mws))
	for n := range r.mws {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
