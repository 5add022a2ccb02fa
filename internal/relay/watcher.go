package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/relayd/internal/textutil"
)

// watchPlaceholder polls the worker group after a placeholder reply was
// observed. Workers finish in one of two ways: by editing a message in
// place, or by sending a delayed second reply in the same thread. The
// watcher unifies both into a single resolution: any watched message whose
// text becomes non-empty, non-placeholder and different from what was last
// recorded ends the watch. It gives up after the configured duration; the
// pending request then stays until its own deadline or the bridge's
// timeout cleans it up.
func (e *Engine) watchPlaceholder(ctx context.Context, group string, correlationID int) {
	const replyScanLimit = 3

	deadline := time.Now().Add(e.opts.WatchDuration)
	lastText := make(map[int]string)

	// Baseline the forwarded command message itself so an unchanged text
	// never counts as a resolution.
	if msg, err := e.m.Fetch(ctx, group, correlationID); err == nil && msg != nil {
		lastText[correlationID] = msg.Text
	}

	ticker := time.NewTicker(e.opts.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			slog.Debug("placeholder watch expired", "correlation_id", correlationID)
			return
		}

		// An edit of the forwarded message in place. The command text is
		// the baseline; it must actually change before it counts.
		if msg, err := e.m.Fetch(ctx, group, correlationID); err == nil && msg != nil {
			if _, seen := lastText[msg.ID]; !seen {
				lastText[msg.ID] = msg.Text
			} else if e.tryResolve(ctx, correlationID, msg.ID, msg.Text, lastText) {
				return
			}
		}

		// New or edited replies threaded to the forwarded message.
		replies, err := e.m.Replies(ctx, group, correlationID, replyScanLimit)
		if err != nil {
			slog.Debug("placeholder watch reply scan failed",
				"correlation_id", correlationID, "error", err)
			continue
		}
		for _, reply := range replies {
			if e.tryResolve(ctx, correlationID, reply.ID, reply.Text, lastText) {
				return
			}
		}
	}
}

// tryResolve delivers text as the final answer if it is a new or changed
// non-placeholder message, recording what was seen either way.
func (e *Engine) tryResolve(ctx context.Context, correlationID, msgID int, text string, lastText map[int]string) bool {
	prev, seen := lastText[msgID]
	lastText[msgID] = text
	if text == "" || textutil.IsPlaceholder(text) {
		return false
	}
	if seen && prev == text {
		return false
	}
	cleaned := textutil.Clean(text)
	if cleaned == "" {
		return false
	}
	if !e.deliverDirect(ctx, correlationID, cleaned) {
		// Already resolved elsewhere; stop watching anyway.
		return true
	}
	slog.Debug("placeholder watch resolved",
		"correlation_id", correlationID, "resolved_by", msgID)
	return true
}
