package httpapi

import (
	"sync"
	"time"
)

const (
	// maxTrackedKeys caps the tracked key count so rotating bogus keys
	// cannot grow the map without bound.
	maxTrackedKeys = 4096

	// rateLimitWindow is the fixed counting window per key.
	rateLimitWindow = 60 * time.Second

	// rateLimitMaxHits is the max command submissions per key per window.
	// A submission can block for the full relay timeout (~30s), so even a
	// well-behaved integrator has no use for more than a handful a minute.
	rateLimitMaxHits = 10
)

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

// rateLimiter counts command submissions per API key over a fixed window.
// Safe for concurrent use.
type rateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{entries: make(map[string]*rateLimitEntry)}
}

// Allow reports whether key may submit another command now.
func (r *rateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	e, ok := r.entries[key]
	if ok && now.Sub(e.windowStart) < rateLimitWindow {
		e.count++
		return e.count <= rateLimitMaxHits
	}

	if !ok && len(r.entries) >= maxTrackedKeys {
		r.evictLocked(now)
	}
	r.entries[key] = &rateLimitEntry{windowStart: now, count: 1}
	return true
}

// evictLocked drops entries whose window has lapsed; if every entry is
// still live it drops arbitrary ones until there is room. Called with
// r.mu held.
func (r *rateLimiter) evictLocked(now time.Time) {
	for k, e := range r.entries {
		if now.Sub(e.windowStart) >= rateLimitWindow {
			delete(r.entries, k)
		}
	}
	for k := range r.entries {
		if len(r.entries) < maxTrackedKeys {
			break
		}
		delete(r.entries, k)
	}
}
