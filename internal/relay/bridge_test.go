package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSubmitRejectsBadPrefix(t *testing.T) {
	e, _ := newTestEngine()
	for _, cmd := range []string{"", "/vnum MH12", "lookup 999", "2/"} {
		if _, err := e.Submit(context.Background(), cmd); !errors.Is(err, ErrBadCommand) {
			t.Errorf("Submit(%q) err = %v, want ErrBadCommand", cmd, err)
		}
	}
}

// Scenario: a valid API command gets a real reply inside the window and the
// caller receives the cleaned text well before the overall timeout.
func TestSubmitReturnsWorkerReply(t *testing.T) {
	e, fm := newTestEngine()

	done := make(chan struct{})
	var responses []string
	var submitErr error
	go func() {
		defer close(done)
		responses, submitErr = e.Submit(context.Background(), "2/lookup 9998887776")
	}()

	// Wait for the forwarded command to land in the third group.
	if !waitFor(t, time.Second, func() bool { return len(fm.sentTo(thirdGroup)) == 1 }) {
		t.Fatal("command never forwarded to third group")
	}
	fid := fm.sentTo(thirdGroup)[0].ID
	if fm.sentTo(thirdGroup)[0].Text != "/lookup 9998887776" {
		t.Fatalf("forwarded text wrong: %q", fm.sentTo(thirdGroup)[0].Text)
	}

	replyID := fm.inject(thirdGroup, "Lookup result: J. Doe, visit https://promo.example.com", fid)
	e.HandleWorkerMessage(context.Background(), thirdGroup, Message{
		ID: replyID, Group: thirdGroup,
		Text: "Lookup result: J. Doe, visit https://promo.example.com", ReplyToID: fid,
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit did not return after the reply arrived")
	}
	if submitErr != nil {
		t.Fatalf("Submit error: %v", submitErr)
	}
	if len(responses) != 1 || !strings.Contains(responses[0], "Lookup result: J. Doe") {
		t.Fatalf("unexpected responses: %v", responses)
	}
	if strings.Contains(responses[0], "https://") {
		t.Fatalf("response was not cleaned: %q", responses[0])
	}

	// API-originated requests never write into the origin group.
	if len(fm.sentTo(originGroup)) != 0 {
		t.Fatal("API request must not touch the origin group")
	}
}

// Scenario: the worker never answers. The caller gets a timeout and the
// pending request is removed, so repeated timeouts do not grow memory.
func TestSubmitTimesOutAndCleansUp(t *testing.T) {
	fm := newFakeMessenger()
	opts := fastOptions()
	opts.APITimeout = 60 * time.Millisecond
	e := NewEngine(fm, opts)

	for i := 0; i < 5; i++ {
		responses, err := e.Submit(context.Background(), "2/vnum MH12AB1234")
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("want ErrTimeout, got %v", err)
		}
		if len(responses) != 0 {
			t.Fatalf("no partial responses expected, got %v", responses)
		}
	}
	if e.ActiveRequests() != 0 {
		t.Fatalf("pending requests leaked across timeouts: %d", e.ActiveRequests())
	}
}

// A multi-reply command that only produces one reply inside the timeout
// yields that partial result together with ErrTimeout.
func TestSubmitReturnsPartialOnTimeout(t *testing.T) {
	fm := newFakeMessenger()
	opts := fastOptions()
	opts.StabilizeDelay = time.Millisecond
	opts.APITimeout = 150 * time.Millisecond
	e := NewEngine(fm, opts)

	done := make(chan struct{})
	var responses []string
	var submitErr error
	go func() {
		defer close(done)
		responses, submitErr = e.Submit(context.Background(), "2/vnum MH12AB1234")
	}()

	if !waitFor(t, time.Second, func() bool { return len(fm.sentTo(thirdGroup)) == 1 }) {
		t.Fatal("command never forwarded")
	}
	fid := fm.sentTo(thirdGroup)[0].ID
	replyID := fm.inject(thirdGroup, "provisional vehicle record", fid)
	e.HandleWorkerMessage(context.Background(), thirdGroup, Message{
		ID: replyID, Group: thirdGroup, Text: "provisional vehicle record", ReplyToID: fid,
	})

	<-done
	if !errors.Is(submitErr, ErrTimeout) {
		t.Fatalf("want ErrTimeout with partials, got %v", submitErr)
	}
	if len(responses) != 1 || responses[0] != "provisional vehicle record" {
		t.Fatalf("partial responses wrong: %v", responses)
	}
	if e.ActiveRequests() != 0 {
		t.Fatal("pending request leaked after partial timeout")
	}
}

func TestSubmitCancelledContextCleansUp(t *testing.T) {
	e, fm := newTestEngine()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(ctx, "2/lookup 12345")
		done <- err
	}()
	if !waitFor(t, time.Second, func() bool { return len(fm.sentTo(thirdGroup)) == 1 }) {
		t.Fatal("command never forwarded")
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit did not return on cancellation")
	}
	if e.ActiveRequests() != 0 {
		t.Fatal("pending request leaked after cancellation")
	}
}
