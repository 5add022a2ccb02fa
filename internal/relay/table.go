package relay

import (
	"sync"
	"time"
)

// Outcome is what a blocked HTTP caller receives when its request resolves.
type Outcome struct {
	Responses []string
	Err       error
}

// PendingRequest tracks one forwarded command awaiting worker replies.
// The forwarded message id is the correlation key.
type PendingRequest struct {
	ID            int
	OriginMsgID   int // 0 for API-originated requests
	PlaceholderID int // origin-group placeholder to delete on resolution
	Expected      int
	Received      int
	Deadline      time.Time
	Stabilize     bool
	Waiter        chan Outcome // buffered(1); nil for chat-originated requests
	Responses     []string
	watching      bool
}

// resolved reports whether the reply quota has been met.
func (p *PendingRequest) resolved() bool { return p.Received >= p.Expected }

// Table is the correlation table: forwarded message id → pending request.
// All mutation goes through its methods; each method is atomic, which is
// what lets the router, resolver, watcher and bridge goroutines re-validate
// state after every sleep or network call.
type Table struct {
	mu      sync.Mutex
	pending map[int]*PendingRequest
}

func NewTable() *Table {
	return &Table{pending: make(map[int]*PendingRequest)}
}

// Create registers a pending request under its correlation key. A collision
// replaces the previous entry and returns it so the caller can fail its
// waiter instead of leaving it to hang until timeout.
func (t *Table) Create(req *PendingRequest) (superseded *PendingRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	superseded = t.pending[req.ID]
	t.pending[req.ID] = req
	return superseded
}

// Lookup returns a snapshot of the pending request for id, or ok=false when
// the entry is absent, expired, or already at quota. Expired entries are
// left in place; Remove, the bridge's deferred cleanup, or the janitor
// sweep take them out.
func (t *Table) Lookup(id int, now time.Time) (PendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	if !ok || now.After(p.Deadline) || p.resolved() {
		return PendingRequest{}, false
	}
	return snapshot(p), true
}

// Accept records a cleaned reply against id. It re-validates deadline and
// quota under the lock, so a reply that raced past an earlier check still
// cannot overshoot the quota or land after the window. When the quota is
// met the entry is removed. The returned snapshot reflects the state after
// the reply was counted.
func (t *Table) Accept(id int, now time.Time, response string) (PendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	if !ok || now.After(p.Deadline) || p.resolved() {
		return PendingRequest{}, false
	}
	p.Responses = append(p.Responses, response)
	p.Received++
	snap := snapshot(p)
	if p.resolved() {
		delete(t.pending, id)
	}
	return snap, true
}

// ResolveDirect removes the entry for id and returns it. Used by the
// placeholder watcher, which resolves with a single response regardless of
// the expected reply count, and by the bridge's guaranteed cleanup.
func (t *Table) ResolveDirect(id int) (PendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	if !ok {
		return PendingRequest{}, false
	}
	delete(t.pending, id)
	return snapshot(p), true
}

// Remove deletes the entry for id, returning its final snapshot.
func (t *Table) Remove(id int) (PendingRequest, bool) {
	return t.ResolveDirect(id)
}

// MarkWatching flags id as having an active placeholder watcher. It returns
// false when a watcher is already running or the entry is gone, so at most
// one watcher exists per correlation key.
func (t *Table) MarkWatching(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	if !ok || p.watching {
		return false
	}
	p.watching = true
	return true
}

// ExpiredKeys returns the correlation keys whose deadline has passed and
// that have no blocked HTTP waiter. Waiter-carrying entries are cleaned up
// by the bridge itself on every exit path.
func (t *Table) ExpiredKeys(now time.Time) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var keys []int
	for id, p := range t.pending {
		if p.Waiter == nil && now.After(p.Deadline) {
			keys = append(keys, id)
		}
	}
	return keys
}

// Len reports the number of outstanding pending requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func snapshot(p *PendingRequest) PendingRequest {
	snap := *p
	snap.Responses = append([]string(nil), p.Responses...)
	return snap
}
