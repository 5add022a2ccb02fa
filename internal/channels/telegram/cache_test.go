package telegram

import (
	"fmt"
	"testing"

	"github.com/nextlevelbuilder/relayd/internal/relay"
)

func TestCacheRecordAndGet(t *testing.T) {
	c := newMessageCache()
	c.Record("g", relay.Message{ID: 1, Group: "g", Text: "hello"})

	msg, ok := c.Get("g", 1)
	if !ok || msg.Text != "hello" {
		t.Fatalf("get: ok=%v msg=%+v", ok, msg)
	}
	if _, ok := c.Get("g", 2); ok {
		t.Fatal("unknown id must miss")
	}
	if _, ok := c.Get("other", 1); ok {
		t.Fatal("wrong group must miss")
	}
}

func TestCacheEditOverwritesText(t *testing.T) {
	c := newMessageCache()
	c.Record("g", relay.Message{ID: 7, Text: "before"})
	c.Record("g", relay.Message{ID: 7, Text: "after"})

	msg, _ := c.Get("g", 7)
	if msg.Text != "after" {
		t.Fatalf("edit not applied: %q", msg.Text)
	}
}

func TestCacheDelete(t *testing.T) {
	c := newMessageCache()
	c.Record("g", relay.Message{ID: 3, Text: "x"})
	c.Delete("g", 3)
	if _, ok := c.Get("g", 3); ok {
		t.Fatal("deleted message still cached")
	}
}

func TestCacheRepliesNewestFirst(t *testing.T) {
	c := newMessageCache()
	c.Record("g", relay.Message{ID: 10, Text: "cmd"})
	c.Record("g", relay.Message{ID: 11, Text: "first", ReplyToID: 10})
	c.Record("g", relay.Message{ID: 12, Text: "unrelated"})
	c.Record("g", relay.Message{ID: 13, Text: "second", ReplyToID: 10})

	got := c.Replies("g", 10, 5)
	if len(got) != 2 {
		t.Fatalf("replies: got %d", len(got))
	}
	if got[0].ID != 13 || got[1].ID != 11 {
		t.Fatalf("order: got %d,%d", got[0].ID, got[1].ID)
	}

	limited := c.Replies("g", 10, 1)
	if len(limited) != 1 || limited[0].ID != 13 {
		t.Fatalf("limit: %+v", limited)
	}
}

func TestCacheEviction(t *testing.T) {
	c := newMessageCache()
	for i := 1; i <= maxCachedPerGroup+10; i++ {
		c.Record("g", relay.Message{ID: i, Text: fmt.Sprintf("m%d", i)})
	}
	if _, ok := c.Get("g", 5); ok {
		t.Fatal("oldest entries must be evicted")
	}
	if _, ok := c.Get("g", maxCachedPerGroup+10); !ok {
		t.Fatal("newest entry missing")
	}
}
