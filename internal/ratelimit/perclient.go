package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientEntry holds a limiter and the last time it was accessed.
type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// PerClient maintains a separate token bucket per client key (IP, API key, etc.).
//
// A background goroutine garbage-collects buckets that have been idle
// longer than staleThreshold to prevent unbounded memory growth.
type PerClient struct {
	mu             sync.Mutex
	clients        map[string]*clientEntry
	burst          int
	limit          rate.Limit
	staleThreshold time.Duration
	now            func() time.Time
	stop           chan struct{}
	stopOnce       sync.Once
}

// NewPerClient creates a per-client rate limiter. Each new client gets a
// bucket holding burst tokens refilled at perSecond tokens per second.
// Buckets idle longer than staleThreshold are garbage collected.
func NewPerClient(burst int, perSecond float64, staleThreshold time.Duration) *PerClient {
	pc := &PerClient{
		clients:        make(map[string]*clientEntry),
		burst:          burst,
		limit:          rate.Limit(perSecond),
		staleThreshold: staleThreshold,
		now:            time.Now,
		stop:           make(chan struct{}),
	}
	go pc.gc()
	return pc
}

// Allow consumes one token for key. When the bucket is empty it reports
// how long the client should wait before retrying.
func (pc *PerClient) Allow(key string) (ok bool, retryAfter time.Duration) {
	now := pc.now()

	pc.mu.Lock()
	entry, exists := pc.clients[key]
	if !exists {
		entry = &clientEntry{limiter: rate.NewLimiter(pc.limit, pc.burst)}
		pc.clients[key] = entry
	}
	entry.lastAccess = now
	pc.mu.Unlock()

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, pc.staleThreshold
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	// Give the token back; the caller is rejected rather than delayed.
	r.CancelAt(now)
	return false, delay
}

// Len reports how many client buckets are currently tracked.
func (pc *PerClient) Len() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.clients)
}

// gc periodically removes stale client buckets.
func (pc *PerClient) gc() {
	ticker := time.NewTicker(pc.staleThreshold / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pc.sweep(pc.now())
		case <-pc.stop:
			return
		}
	}
}

func (pc *PerClient) sweep(now time.Time) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for key, entry := range pc.clients {
		if now.Sub(entry.lastAccess) > pc.staleThreshold {
			delete(pc.clients, key)
		}
	}
}

// Close stops the background garbage collection goroutine.
func (pc *PerClient) Close() error {
	pc.stopOnce.Do(func() { close(pc.stop) })
	return nil
}
