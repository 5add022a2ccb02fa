package relay

import (
	"context"
	"errors"
)

// Message is the platform-independent view of a chat message.
type Message struct {
	ID        int
	Group     string
	Text      string
	ReplyToID int // 0 when the message is not a threaded reply
}

// ErrCannotWrite is returned by Messenger.Send when the platform refuses
// writes to the destination (kicked from group, insufficient rights).
// The router reports it back into the origin thread instead of failing
// silently.
var ErrCannotWrite = errors.New("cannot write to destination")

// Messenger abstracts the messaging platform. Fetch and Replies return what
// the platform currently knows about a message, which is how edits made
// after the original event are observed.
type Messenger interface {
	// Send posts text into group, threaded to replyTo when non-zero, and
	// returns the new message id.
	Send(ctx context.Context, group, text string, replyTo int) (int, error)

	// Fetch returns the current state of a message, or nil when the
	// message no longer exists (deleted) or was never seen.
	Fetch(ctx context.Context, group string, id int) (*Message, error)

	// Delete removes a message. Deleting an already-gone message is not
	// an error worth surfacing; implementations may return one anyway.
	Delete(ctx context.Context, group string, id int) error

	// Replies returns up to limit of the most recent messages threaded to
	// replyTo, newest first.
	Replies(ctx context.Context, group string, replyTo, limit int) ([]Message, error)
}
