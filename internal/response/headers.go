package response

import "net/http"

// Headers is a header set that remembers the order in which names were
// first added. Names are canonicalized the same way net/http does.
type Headers struct {
	keys   []string
	values map[string][]string
}

// NewHeaders creates an empty header set.
func NewHeaders() *Headers {
	return &Headers{values: make(map[string][]string)}
}

// Add appends a value to name, registering name on first use.
func (h *Headers) Add(name, value string) {
	name = http.CanonicalHeaderKey(name)
	if _, ok := h.values[name]; !ok {
		h.keys = append(h.keys, name)
	}
	h.values[name] = append(h.values[name], value)
}

// Set replaces all values of name. An existing name keeps its position.
func (h *Headers) Set(name, value string) {
	name = http.CanonicalHeaderKey(name)
	if _, ok := h.values[name]; !ok {
		h.keys = append(h.keys, name)
	}
	h.values[name] = []string{value}
}

// Get returns the first value of name, or "".
func (h *Headers) Get(name string) string {
	if h == nil {
		return ""
	}
	vs := h.values[http.CanonicalHeaderKey(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns every value of name in insertion order.
func (h *Headers) Values(name string) []string {
	if h == nil {
		return nil
	}
	return h.values[http.CanonicalHeaderKey(name)]
}

// Del removes name.
func (h *Headers) Del(name string) {
	name = http.CanonicalHeaderKey(name)
	if _, ok := h.values[name]; !ok {
		return
	}
	delete(h.values, name)
	for i, k := range h.keys {
		if k == name {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
}

// Keys returns header names in insertion order.
func (h *Headers) Keys() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.keys...)
}

// Len reports the number of distinct names.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.keys)
}

// Clone returns a deep copy. Cloning nil yields an empty set.
func (h *Headers) Clone() *Headers {
	c := NewHeaders()
	if h == nil {
		return c
	}
	for _, k := range h.keys {
		c.keys = append(c.keys, k)
		c.values[k] = append([]string(nil), h.values[k]...)
	}
	return c
}
