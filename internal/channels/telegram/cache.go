package telegram

import (
	"sync"

	"github.com/nextlevelbuilder/relayd/internal/relay"
)

// maxCachedPerGroup bounds the per-group message cache. Old entries are
// evicted in insertion order.
const maxCachedPerGroup = 1024

// messageCache remembers messages (and their subsequent edits) seen in the
// update stream. The Bot API offers no way to read an arbitrary message
// back, so re-fetches and reply scans are served from here; edits arrive
// as edited_message updates and overwrite the cached text.
type messageCache struct {
	mu     sync.Mutex
	groups map[string]*groupCache
}

type groupCache struct {
	msgs  map[int]relay.Message
	order []int // insertion order for eviction and newest-first scans
}

func newMessageCache() *messageCache {
	return &messageCache{groups: make(map[string]*groupCache)}
}

// Record stores or updates a message. Edits keep their original position.
func (c *messageCache) Record(group string, msg relay.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gc := c.groups[group]
	if gc == nil {
		gc = &groupCache{msgs: make(map[int]relay.Message)}
		c.groups[group] = gc
	}
	if _, exists := gc.msgs[msg.ID]; !exists {
		gc.order = append(gc.order, msg.ID)
		if len(gc.order) > maxCachedPerGroup {
			evict := gc.order[0]
			gc.order = gc.order[1:]
			delete(gc.msgs, evict)
		}
	}
	gc.msgs[msg.ID] = msg
}

// Get returns the current state of a cached message.
func (c *messageCache) Get(group string, id int) (relay.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gc := c.groups[group]
	if gc == nil {
		return relay.Message{}, false
	}
	msg, ok := gc.msgs[id]
	return msg, ok
}

// Delete drops a message from the cache.
func (c *messageCache) Delete(group string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gc := c.groups[group]; gc != nil {
		delete(gc.msgs, id)
	}
}

// Replies returns up to limit cached messages threaded to replyTo, newest
// first.
func (c *messageCache) Replies(group string, replyTo, limit int) []relay.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	gc := c.groups[group]
	if gc == nil {
		return nil
	}
	var out []relay.Message
	for i := len(gc.order) - 1; i >= 0 && len(out) < limit; i-- {
		if msg, ok := gc.msgs[gc.order[i]]; ok && msg.ReplyToID == replyTo {
			out = append(out, msg)
		}
	}
	return out
}
