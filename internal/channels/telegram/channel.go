// Package telegram connects the relay engine to Telegram via the Bot API
// using long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/relayd/internal/config"
	"github.com/nextlevelbuilder/relayd/internal/relay"
)

// Channel pumps Telegram updates into the relay engine and implements
// relay.Messenger for it.
type Channel struct {
	bot    *telego.Bot
	groups config.GroupsConfig
	engine *relay.Engine
	cache  *messageCache

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates the Telegram channel. SetEngine must be called before Start.
func New(cfg config.TelegramConfig, groups config.GroupsConfig) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Channel{
		bot:    bot,
		groups: groups,
		cache:  newMessageCache(),
	}, nil
}

// SetEngine wires the relay engine the channel dispatches into. The engine
// needs the channel as its Messenger, hence the two-step construction.
func (c *Channel) SetEngine(e *relay.Engine) { c.engine = e }

// Start begins long polling for updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram relay (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(&telego.GetUpdatesParams{
		Timeout: 30,
		AllowedUpdates: []string{
			"message",
			"edited_message",
		},
	}, telego.WithLongPollingContext(pollCtx))
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	if me, err := c.bot.GetMe(); err == nil {
		slog.Info("telegram relay connected", "username", me.Username)
	} else {
		slog.Info("telegram relay connected")
	}

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				c.handleUpdate(pollCtx, update)
			}
		}
	}()

	return nil
}

// Stop cancels long polling and waits for the pump goroutine to exit so
// Telegram releases the getUpdates lock before a new instance starts.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram relay")
	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram relay stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}
	return nil
}

func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	edited := false
	message := update.Message
	if message == nil {
		message = update.EditedMessage
		edited = true
	}
	if message == nil {
		return
	}

	group, known := c.groupFor(message.Chat)
	if !known {
		slog.Debug("message from unconfigured chat skipped", "chat_id", message.Chat.ID)
		return
	}

	msg := toRelayMessage(message)
	msg.Group = group
	c.cache.Record(group, msg)

	if edited {
		// Edits only refresh the cache; the placeholder watcher observes
		// them through Fetch/Replies.
		slog.Debug("cached message edit", "group", group, "message_id", msg.ID)
		return
	}

	// Engine handlers sleep (debounce, stabilize), so each event gets its
	// own goroutine. Panics must not take down the pump.
	switch group {
	case c.groups.First:
		go c.dispatch(ctx, func() { c.engine.HandleOriginMessage(ctx, msg) })
	case c.groups.Second, c.groups.Third:
		workerGroup := group
		go c.dispatch(ctx, func() { c.engine.HandleWorkerMessage(ctx, workerGroup, msg) })
	}
}

func (c *Channel) dispatch(_ context.Context, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("relay event handler panicked", "panic", r)
		}
	}()
	fn()
}

// groupFor maps a Telegram chat to the configured group label.
func (c *Channel) groupFor(chat telego.Chat) (string, bool) {
	for _, group := range []string{c.groups.First, c.groups.Second, c.groups.Third} {
		if group == "" {
			continue
		}
		if matchesGroup(group, chat) {
			return group, true
		}
	}
	return "", false
}

func matchesGroup(group string, chat telego.Chat) bool {
	name := strings.TrimPrefix(group, "@")
	if chat.Username != "" && strings.EqualFold(chat.Username, name) {
		return true
	}
	if id, err := strconv.ParseInt(group, 10, 64); err == nil && id == chat.ID {
		return true
	}
	return false
}

func toRelayMessage(msg *telego.Message) relay.Message {
	replyTo := 0
	if msg.ReplyToMessage != nil {
		replyTo = msg.ReplyToMessage.MessageID
	}
	return relay.Message{
		ID:        msg.MessageID,
		Text:      msg.Text,
		ReplyToID: replyTo,
	}
}

// chatID turns a configured group value into a Telegram chat reference.
func chatID(group string) telego.ChatID {
	if id, err := strconv.ParseInt(group, 10, 64); err == nil {
		return tu.ID(id)
	}
	return tu.Username("@" + strings.TrimPrefix(group, "@"))
}

// --- relay.Messenger ---

// Send posts text into group, threaded to replyTo when non-zero.
func (c *Channel) Send(_ context.Context, group, text string, replyTo int) (int, error) {
	params := tu.Message(chatID(group), text)
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
	}
	sent, err := c.bot.SendMessage(params)
	if err != nil {
		if isForbidden(err) {
			return 0, fmt.Errorf("%w: %s", relay.ErrCannotWrite, group)
		}
		return 0, fmt.Errorf("telegram send: %w", err)
	}
	msg := toRelayMessage(sent)
	msg.Group = group
	c.cache.Record(group, msg)
	return sent.MessageID, nil
}

// Fetch serves the current state of a message from the update-stream
// cache. A message the bot never saw, or that was deleted, reads as nil.
func (c *Channel) Fetch(_ context.Context, group string, id int) (*relay.Message, error) {
	msg, ok := c.cache.Get(group, id)
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

// Delete removes a message from Telegram and from the cache.
func (c *Channel) Delete(_ context.Context, group string, id int) error {
	c.cache.Delete(group, id)
	if err := c.bot.DeleteMessage(&telego.DeleteMessageParams{
		ChatID:    chatID(group),
		MessageID: id,
	}); err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}
	return nil
}

// Replies scans the cache for the most recent messages threaded to replyTo.
func (c *Channel) Replies(_ context.Context, group string, replyTo, limit int) ([]relay.Message, error) {
	return c.cache.Replies(group, replyTo, limit), nil
}

// isForbidden detects the "bot can't write there" family of API errors.
func isForbidden(err error) bool {
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == 403
	}
	return false
}
