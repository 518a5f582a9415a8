package circuitbreaker

import (
	"sync"
	"time"
)

// State represents circuit breaker states.
type State uint32

const (
	StateClosed   State = iota // requests pass through
	StateOpen                  // reject until the cooldown has elapsed
	StateHalfOpen              // one probe request in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// circuit is the state of a single key.
type circuit struct {
	state       State
	failures    int
	lastFailure time.Time
}

// Set keeps one circuit per key, typically a route ("GET /users/{id}"),
// so that a controller that keeps failing is isolated from healthy ones.
//
// Transitions:
//
//	Closed → Open:      after threshold consecutive failures
//	Open → Half-Open:   first Allow after cooldown
//	Half-Open → Closed: probe succeeded
//	Half-Open → Open:   probe failed
type Set struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit

	// OnStateChange, when set, is called with the new state of key.
	// It runs with the set's lock held and must not call back into the set.
	OnStateChange func(key string, s State)
}

// NewSet creates a breaker set that opens a key's circuit after threshold
// consecutive failures and probes it again after cooldown.
func NewSet(threshold int, cooldown time.Duration) *Set {
	if threshold < 1 {
		threshold = 1
	}
	return &Set{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		circuits:  make(map[string]*circuit),
	}
}

// Allow reports whether a request for key may proceed.
func (s *Set) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.get(key)
	switch c.state {
	case StateClosed:
		return true
	case StateOpen:
		if s.now().Sub(c.lastFailure) >= s.cooldown {
			s.transition(key, c, StateHalfOpen)
			return true
		}
		return false
	default:
		// half-open: the probe is already in flight
		return false
	}
}

// RecordSuccess resets the failure count and closes a half-open circuit.
func (s *Set) RecordSuccess(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.get(key)
	c.failures = 0
	if c.state == StateHalfOpen {
		s.transition(key, c, StateClosed)
	}
}

// RecordFailure counts a failure and opens the circuit when the threshold
// is reached or the half-open probe failed.
func (s *Set) RecordFailure(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.get(key)
	c.failures++
	c.lastFailure = s.now()

	if c.state == StateHalfOpen || c.failures >= s.threshold {
		s.transition(key, c, StateOpen)
	}
}

// State returns the current state for key.
func (s *Set) State(key string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key).state
}

func (s *Set) get(key string) *circuit {
	c, ok := s.circuits[key]
	if !ok {
		c = &circuit{}
		s.circuits[key] = c
	}
	return c
}

func (s *Set) transition(key string, c *circuit, to State) {
	if c.state == to {
		return
	}
	c.state = to
	if s.OnStateChange != nil {
		s.OnStateChange(key, to)
	}
}
