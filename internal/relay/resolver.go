package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/relayd/internal/textutil"
)

// HandleWorkerMessage is the reply resolver: it reacts to a message posted
// in a worker group, matches it to the pending request it replies to, and
// either delivers it or hands off to the placeholder watcher. It may sleep
// (stabilize delay), so callers run it on its own goroutine.
func (e *Engine) HandleWorkerMessage(ctx context.Context, group string, msg Message) {
	if msg.ReplyToID == 0 {
		return
	}
	correlationID := msg.ReplyToID

	if _, ok := e.table.Lookup(correlationID, time.Now()); !ok {
		return
	}

	if textutil.IsPlaceholder(msg.Text) {
		if e.table.MarkWatching(correlationID) {
			go e.watchPlaceholder(ctx, group, correlationID)
		}
		return
	}

	text := msg.Text
	snap, ok := e.table.Lookup(correlationID, time.Now())
	if !ok {
		return
	}
	if snap.Stabilize {
		// The worker may still edit this message; wait, then trust the
		// re-fetched state over the event payload.
		if !sleep(ctx, e.opts.StabilizeDelay) {
			return
		}
		refetched, err := e.m.Fetch(ctx, group, msg.ID)
		if err == nil && refetched != nil {
			text = refetched.Text
		}
		// The sleep was a suspension point: deliver() re-validates
		// deadline and quota before counting this reply.
	}

	cleaned := textutil.Clean(text)
	if cleaned == "" {
		slog.Debug("reply cleaned to empty, dropping",
			"correlation_id", correlationID, "reply_id", msg.ID)
		return
	}

	e.deliver(ctx, correlationID, cleaned)
}
