package relay

import (
	"context"
	"sync"
)

// fakeMessenger is an in-memory Messenger for engine tests. Tests mutate
// its message map directly to simulate edits and deletions made by workers.
type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	msgs    map[string]map[int]*Message // group → id → message
	sent    []Message                   // every Send in order
	deleted []int
	sendErr map[string]error // group → error to return from Send
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		msgs:    make(map[string]map[int]*Message),
		sendErr: make(map[string]error),
	}
}

func (f *fakeMessenger) Send(_ context.Context, group, text string, replyTo int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[group]; err != nil {
		return 0, err
	}
	f.nextID++
	msg := &Message{ID: f.nextID, Group: group, Text: text, ReplyToID: replyTo}
	if f.msgs[group] == nil {
		f.msgs[group] = make(map[int]*Message)
	}
	f.msgs[group][msg.ID] = msg
	f.sent = append(f.sent, *msg)
	return msg.ID, nil
}

func (f *fakeMessenger) Fetch(_ context.Context, group string, id int) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.msgs[group][id]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (f *fakeMessenger) Delete(_ context.Context, group string, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.msgs[group], id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeMessenger) Replies(_ context.Context, group string, replyTo, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	// Newest first: ids are monotonically increasing.
	for id := f.nextID; id > 0 && len(out) < limit; id-- {
		if msg, ok := f.msgs[group][id]; ok && msg.ReplyToID == replyTo {
			out = append(out, *msg)
		}
	}
	return out, nil
}

// inject places a message into the fake without going through Send,
// simulating a worker or human posting. Returns the message id.
func (f *fakeMessenger) inject(group, text string, replyTo int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if f.msgs[group] == nil {
		f.msgs[group] = make(map[int]*Message)
	}
	f.msgs[group][f.nextID] = &Message{ID: f.nextID, Group: group, Text: text, ReplyToID: replyTo}
	return f.nextID
}

// edit replaces the text of an existing message in place.
func (f *fakeMessenger) edit(group string, id int, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := f.msgs[group][id]; ok {
		msg.Text = text
	}
}

// remove deletes a message without recording it as a bot-initiated delete.
func (f *fakeMessenger) remove(group string, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.msgs[group], id)
}

// sentTo returns the messages sent to group, oldest first.
func (f *fakeMessenger) sentTo(group string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, msg := range f.sent {
		if msg.Group == group {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeMessenger) wasDeleted(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deleted {
		if d == id {
			return true
		}
	}
	return false
}
