package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// multiReplyCommands are the commands whose worker sends a provisional
// answer followed by a final one. They expect two replies and get the
// stabilize re-fetch, since their worker is also known to edit its first
// message moments after sending.
var multiReplyCommands = map[string]bool{
	"/vnum":   true,
	"/bomber": true,
	"/family": true,
	"/insta":  true,
}

// placeholderText picks the "fetching" line posted into the origin thread
// while the worker is queried, by simple keyword match on the command.
func placeholderText(cmd string) string {
	lower := strings.ToLower(cmd)
	switch {
	case strings.Contains(lower, "vnum") || strings.Contains(lower, "vehicle"):
		return "⏳ Fetching vehicle info… Please wait."
	case strings.Contains(lower, "family"):
		return "⏳ Fetching family details… Please wait."
	case strings.Contains(lower, "aadhar"):
		return "⏳ Fetching Aadhaar details… Please wait."
	case strings.Contains(lower, "pan"):
		return "⏳ Fetching PAN details… Please wait."
	case strings.Contains(lower, "voter"):
		return "⏳ Fetching voter ID details… Please wait."
	case strings.Contains(lower, "insta"):
		return "⏳ Fetching Instagram info… Please wait."
	case strings.Contains(lower, "bomber"):
		return "⏳ Starting bomber… Please wait."
	default:
		return "⏳ Fetching info… Please wait."
	}
}

// routeCommand decides the destination group and the normalized command
// text. ok=false means the text is not a routable command.
func (e *Engine) routeCommand(text string) (target, routed string, ok bool) {
	switch {
	case strings.HasPrefix(text, "2/"):
		target, routed = e.opts.ThirdGroup, "/"+text[2:]
	case strings.HasPrefix(text, "/"):
		target, routed = e.opts.SecondGroup, text
	default:
		return "", "", false
	}
	// A bare prefix carries no command.
	if strings.TrimSpace(routed) == "/" {
		return "", "", false
	}
	return target, routed, true
}

// commandToken returns the first whitespace-delimited token of a command.
func commandToken(cmd string) string {
	if i := strings.IndexAny(cmd, " \t\n"); i >= 0 {
		return cmd[:i]
	}
	return cmd
}

// HandleOriginMessage is the command router: it reacts to a message typed
// in the origin group, posts a placeholder, debounces against edits, then
// forwards the command to the chosen worker group and registers the
// pending request. It sleeps, so callers run it on its own goroutine.
func (e *Engine) HandleOriginMessage(ctx context.Context, msg Message) {
	if msg.Text == "" {
		return
	}
	target, routed, ok := e.routeCommand(msg.Text)
	if !ok {
		return
	}
	if strings.EqualFold(commandToken(routed), "/start") {
		return
	}

	placeholderID, err := e.m.Send(ctx, e.opts.OriginGroup, placeholderText(routed), msg.ID)
	if err != nil {
		slog.Error("failed to post placeholder", "origin_msg_id", msg.ID, "error", err)
		return
	}

	// Debounce: give the author a window to edit or delete the command
	// before it is acted on.
	if !sleep(ctx, e.opts.DebounceDelay) {
		return
	}
	current, err := e.m.Fetch(ctx, e.opts.OriginGroup, msg.ID)
	if err != nil || current == nil || current.Text != msg.Text {
		slog.Info("command changed or deleted during debounce, aborting",
			"origin_msg_id", msg.ID)
		e.deletePlaceholder(ctx, placeholderID)
		return
	}

	forwardedID, err := e.m.Send(ctx, target, routed, 0)
	if err != nil {
		if errors.Is(err, ErrCannotWrite) {
			if _, werr := e.m.Send(ctx, e.opts.OriginGroup,
				"⚠️ Cannot reach the lookup service right now.", msg.ID); werr != nil {
				slog.Error("failed to post destination warning", "error", werr)
			}
		} else {
			slog.Error("failed to forward command", "target", target, "error", err)
		}
		e.deletePlaceholder(ctx, placeholderID)
		return
	}

	token := strings.ToLower(commandToken(routed))
	expected, stabilize := 1, false
	if multiReplyCommands[token] {
		expected, stabilize = 2, true
	}

	req := &PendingRequest{
		ID:            forwardedID,
		OriginMsgID:   msg.ID,
		PlaceholderID: placeholderID,
		Expected:      expected,
		Stabilize:     stabilize,
		Deadline:      time.Now().Add(e.opts.ReplyWindow),
	}
	if superseded := e.table.Create(req); superseded != nil {
		slog.Warn("correlation key collision, superseding previous request",
			"correlation_id", forwardedID)
		if superseded.Waiter != nil {
			signalWaiter(superseded.Waiter, Outcome{Err: ErrSuperseded})
		}
	}

	slog.Debug("command forwarded",
		"target", target,
		"correlation_id", forwardedID,
		"origin_msg_id", msg.ID,
		"expected_replies", expected,
	)
}
