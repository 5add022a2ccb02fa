// Package relay implements the reply-correlation engine: commands typed in
// the origin group (or submitted over HTTP) are forwarded to a worker
// group, the worker's eventual reply is matched back to the request that
// spawned it, cleaned, and delivered to the origin thread and any blocked
// HTTP caller.
package relay

import (
	"context"
	"log/slog"
	"time"
)

// Options carries the group identifiers and timing knobs for the engine.
type Options struct {
	OriginGroup string
	SecondGroup string
	ThirdGroup  string

	// ReplyWindow is how long worker replies are accepted for a request.
	ReplyWindow time.Duration
	// StabilizeDelay is the wait before re-fetching a reply that may still
	// be edited by the worker.
	StabilizeDelay time.Duration
	// DebounceDelay is the wait before re-fetching the origin command to
	// confirm it was not edited or deleted.
	DebounceDelay time.Duration
	// WatchDuration bounds the placeholder watcher.
	WatchDuration time.Duration
	// WatchInterval is the watcher's poll period.
	WatchInterval time.Duration
	// APITimeout bounds a synchronous HTTP submission end to end.
	APITimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReplyWindow <= 0 {
		o.ReplyWindow = 5 * time.Second
	}
	if o.StabilizeDelay <= 0 {
		o.StabilizeDelay = 3 * time.Second
	}
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = 5 * time.Second
	}
	if o.WatchDuration <= 0 {
		o.WatchDuration = 15 * time.Second
	}
	if o.WatchInterval <= 0 {
		o.WatchInterval = time.Second
	}
	if o.APITimeout <= 0 {
		// reply window + stabilize + watch + margin
		o.APITimeout = o.ReplyWindow + o.StabilizeDelay + o.WatchDuration + 2*time.Second
	}
	return o
}

// Engine owns the correlation table and runs the router, resolver,
// placeholder watcher and API bridge against a single Messenger.
type Engine struct {
	m     Messenger
	table *Table
	opts  Options
}

func NewEngine(m Messenger, opts Options) *Engine {
	return &Engine{
		m:     m,
		table: NewTable(),
		opts:  opts.withDefaults(),
	}
}

// ActiveRequests reports the number of in-flight pending requests, for the
// status page.
func (e *Engine) ActiveRequests() int { return e.table.Len() }

// StartJanitor sweeps expired chat-originated entries until ctx is done.
// Not required for correctness (Lookup and Accept re-check deadlines), but
// it keeps abandoned entries from lingering in memory.
func (e *Engine) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 30 * time.Second
	}
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				for _, id := range e.table.ExpiredKeys(now) {
					if p, ok := e.table.Remove(id); ok {
						slog.Debug("expired pending request swept",
							"correlation_id", id, "received", p.Received)
					}
				}
			}
		}
	}()
}

// sleep waits for d or until ctx is cancelled, reporting whether the full
// wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// deliver sends a cleaned reply to every consumer of the pending request:
// the origin thread (unless API-originated) and the HTTP waiter once the
// quota is met. It re-validates deadline and quota atomically via Accept.
func (e *Engine) deliver(ctx context.Context, id int, text string) {
	snap, ok := e.table.Accept(id, time.Now(), text)
	if !ok {
		slog.Debug("reply dropped: request gone, expired, or quota met", "correlation_id", id)
		return
	}

	if snap.Received == 1 {
		// First accepted reply retires the origin-group placeholder.
		e.deletePlaceholder(ctx, snap.PlaceholderID)
	}
	e.sendToOrigin(ctx, snap, text)

	if snap.resolved() && snap.Waiter != nil {
		signalWaiter(snap.Waiter, Outcome{Responses: snap.Responses})
	}
}

// deliverDirect resolves the request with a single response regardless of
// its expected reply count. Used by the placeholder watcher, which has its
// own duration bound instead of the reply window.
func (e *Engine) deliverDirect(ctx context.Context, id int, text string) bool {
	snap, ok := e.table.ResolveDirect(id)
	if !ok {
		return false
	}

	if snap.Received == 0 {
		e.deletePlaceholder(ctx, snap.PlaceholderID)
	}
	e.sendToOrigin(ctx, snap, text)

	if snap.Waiter != nil {
		signalWaiter(snap.Waiter, Outcome{Responses: []string{text}})
	}
	return true
}

func (e *Engine) deletePlaceholder(ctx context.Context, placeholderID int) {
	if placeholderID == 0 {
		return
	}
	if err := e.m.Delete(ctx, e.opts.OriginGroup, placeholderID); err != nil {
		slog.Debug("placeholder delete failed", "message_id", placeholderID, "error", err)
	}
}

func (e *Engine) sendToOrigin(ctx context.Context, snap PendingRequest, text string) {
	if snap.OriginMsgID == 0 {
		return
	}
	if _, err := e.m.Send(ctx, e.opts.OriginGroup, text, snap.OriginMsgID); err != nil {
		slog.Error("failed to deliver reply to origin thread",
			"origin_msg_id", snap.OriginMsgID, "error", err)
	}
}

// signalWaiter resolves a waiter at most once; the channel is buffered(1)
// and nobody else sends on it, so a failed send means it was already
// resolved.
func signalWaiter(w chan Outcome, out Outcome) {
	select {
	case w <- out:
	default:
	}
}
