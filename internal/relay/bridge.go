package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrBadCommand means the submitted command is not targetable over
	// the API (only the third worker group is reachable there).
	ErrBadCommand = errors.New("invalid command")
	// ErrTimeout means no reply quota was met within the overall timeout.
	// Partial responses may still accompany it.
	ErrTimeout = errors.New("timeout waiting for worker reply")
	// ErrSuperseded means a later request reused this correlation key.
	ErrSuperseded = errors.New("request superseded by key collision")
)

// Submit forwards a command to the third worker group on behalf of an HTTP
// caller and blocks until the reply quota is met, the overall timeout
// fires, or ctx is cancelled. Commands must carry the "2/" prefix. On
// timeout it returns whatever partial responses were accumulated together
// with ErrTimeout. The pending request is removed on every exit path.
func (e *Engine) Submit(ctx context.Context, command string) ([]string, error) {
	if !strings.HasPrefix(command, "2/") {
		return nil, ErrBadCommand
	}
	routed := "/" + command[2:]
	if strings.TrimSpace(routed) == "/" {
		return nil, ErrBadCommand
	}

	forwardedID, err := e.m.Send(ctx, e.opts.ThirdGroup, routed, 0)
	if err != nil {
		return nil, fmt.Errorf("forward command: %w", err)
	}

	token := strings.ToLower(commandToken(routed))
	expected, stabilize := 1, false
	if multiReplyCommands[token] {
		expected, stabilize = 2, true
	}

	waiter := make(chan Outcome, 1)
	req := &PendingRequest{
		ID:        forwardedID,
		Expected:  expected,
		Stabilize: stabilize,
		Deadline:  time.Now().Add(e.opts.ReplyWindow),
		Waiter:    waiter,
	}
	if superseded := e.table.Create(req); superseded != nil {
		slog.Warn("correlation key collision on API submit", "correlation_id", forwardedID)
		if superseded.Waiter != nil {
			signalWaiter(superseded.Waiter, Outcome{Err: ErrSuperseded})
		}
	}
	// Whatever happens below, the entry must not outlive this call.
	defer e.table.Remove(forwardedID)

	select {
	case out := <-waiter:
		if out.Err != nil {
			return nil, out.Err
		}
		return out.Responses, nil
	case <-time.After(e.opts.APITimeout):
		partial, _ := e.table.Remove(forwardedID)
		return partial.Responses, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
