// Package chats projects chat updates into an ordered main chat list and a
// map of chat snapshots.
package chats

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/observe"
	"go.uber.org/zap"
)

// Projection maintains the chat list. Apply must be called from one goroutine
// at a time; readers may load IDs and Chats concurrently.
type Projection struct {
	client feed.Client
	logger *zap.Logger

	index *orderIndex
	ids   *observe.Value[[]feed.ChatID]
	chats *observe.Value[map[feed.ChatID]feed.Chat]

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an empty projection reading from client.
func New(client feed.Client, logger *zap.Logger) *Projection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projection{
		client: client,
		logger: logger,
		index:  newOrderIndex(),
		ids:    observe.NewValue([]feed.ChatID{}),
		chats:  observe.NewValue(map[feed.ChatID]feed.Chat{}),
	}
}

// IDs is the main list, most recent first.
func (p *Projection) IDs() *observe.Value[[]feed.ChatID] { return p.ids }

// Chats maps every announced chat to its snapshot.
func (p *Projection) Chats() *observe.Value[map[feed.ChatID]feed.Chat] { return p.chats }

// Chat returns the snapshot of one chat.
func (p *Projection) Chat(id feed.ChatID) (feed.Chat, bool) {
	c, ok := p.chats.Load()[id]
	return c, ok
}

// Ordered returns the snapshots of the main list in rank order.
func (p *Projection) Ordered() []feed.Chat {
	ids := p.ids.Load()
	m := p.chats.Load()
	out := make([]feed.Chat, 0, len(ids))
	for _, id := range ids {
		if c, ok := m[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Start applies updates from the client until ctx ends or Stop is called.
func (p *Projection) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	ch, unsub := p.client.Subscribe(256)

	go func() {
		defer close(p.done)
		defer unsub()
		for {
			select {
			case u := <-ch:
				p.Apply(u)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the update loop and waits for it to exit.
func (p *Projection) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

// Load asks the backend to announce up to limit more chats of the main list.
// It reports false once the backend has no more chats to announce.
func (p *Projection) Load(ctx context.Context, limit int32) (bool, error) {
	_, err := p.client.Call(ctx, feed.LoadChats{List: feed.MainList, Limit: limit})
	if errors.Is(err, feed.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load chats: %w", err)
	}
	return true, nil
}

// Apply folds one update into the projection. Updates that do not concern
// chats are ignored; deltas for chats not yet announced are dropped.
func (p *Projection) Apply(u feed.Update) {
	switch u := u.(type) {
	case feed.NewChat:
		p.newChat(u.Chat)
	case feed.ChatPositionChanged:
		// Only the event's own position ranks the chat: a non-main
		// position takes it out of the main list.
		if p.mutate(u.ChatID, "position", func(c *feed.Chat) {
			c.Positions = withPosition(c.Positions, u.Position)
		}) {
			p.rankFrom(u.ChatID, []feed.ChatPosition{u.Position})
		}
	case feed.ChatLastMessageChanged:
		if p.mutate(u.ChatID, "last_message", func(c *feed.Chat) {
			c.LastMessage = u.LastMessage
			c.Positions = u.Positions
		}) {
			p.rankFrom(u.ChatID, u.Positions)
		}
	case feed.ChatDraftChanged:
		if p.mutate(u.ChatID, "draft", func(c *feed.Chat) {
			c.Draft = u.Draft
			c.Positions = u.Positions
		}) {
			p.rankFrom(u.ChatID, u.Positions)
		}
	case feed.ChatTitleChanged:
		p.mutate(u.ChatID, "title", func(c *feed.Chat) { c.Title = u.Title })
	case feed.ChatPhotoChanged:
		p.mutate(u.ChatID, "photo", func(c *feed.Chat) { c.Photo = u.Photo })
	case feed.ChatReadInboxChanged:
		p.mutate(u.ChatID, "read_inbox", func(c *feed.Chat) {
			c.LastReadInboxMessageID = u.LastReadInboxMessageID
			c.UnreadCount = u.UnreadCount
		})
	case feed.ChatReadOutboxChanged:
		p.mutate(u.ChatID, "read_outbox", func(c *feed.Chat) {
			c.LastReadOutboxMessageID = u.LastReadOutboxMessageID
		})
	case feed.ChatUnreadMentionCountChanged:
		p.mutate(u.ChatID, "unread_mention_count", func(c *feed.Chat) {
			c.UnreadMentionCount = u.UnreadMentionCount
		})
	case feed.MessageMentionRead:
		p.mutate(u.ChatID, "mention_read", func(c *feed.Chat) {
			c.UnreadMentionCount = u.UnreadMentionCount
		})
	case feed.ChatPermissionsChanged:
		p.mutate(u.ChatID, "permissions", func(c *feed.Chat) { c.Permissions = u.Permissions })
	case feed.ChatNotificationSettingsChanged:
		p.mutate(u.ChatID, "notification_settings", func(c *feed.Chat) {
			c.NotificationSettings = u.Settings
		})
	case feed.ChatReplyMarkupChanged:
		p.mutate(u.ChatID, "reply_markup", func(c *feed.Chat) {
			c.ReplyMarkupMessageID = u.ReplyMarkupMessageID
		})
	case feed.ChatMarkedAsUnreadChanged:
		p.mutate(u.ChatID, "marked_as_unread", func(c *feed.Chat) {
			c.IsMarkedAsUnread = u.IsMarkedAsUnread
		})
	case feed.ChatBlockedChanged:
		p.mutate(u.ChatID, "blocked", func(c *feed.Chat) { c.IsBlocked = u.IsBlocked })
	case feed.ChatScheduledMessagesChanged:
		p.mutate(u.ChatID, "scheduled_messages", func(c *feed.Chat) {
			c.HasScheduledMessages = u.HasScheduledMessages
		})
	case feed.ChatDefaultDisableNotificationChanged:
		p.mutate(u.ChatID, "default_disable_notification", func(c *feed.Chat) {
			c.DefaultDisableNotification = u.DefaultDisableNotification
		})
	}
}

func (p *Projection) newChat(c feed.Chat) {
	next := maps.Clone(p.chats.Load())
	next[c.ID] = c
	p.chats.Set(next)
	p.rankFrom(c.ID, c.Positions)
}

// mutate applies fn to a copy of the chat's snapshot and publishes a new map.
// It reports false when the chat is unknown.
func (p *Projection) mutate(id feed.ChatID, field string, fn func(*feed.Chat)) bool {
	cur := p.chats.Load()
	c, ok := cur[id]
	if !ok {
		p.logger.Debug("dropping update for unknown chat",
			zap.Int64("chat_id", int64(id)),
			zap.String("field", field),
		)
		return false
	}
	fn(&c)
	next := maps.Clone(cur)
	next[id] = c
	p.chats.Set(next)
	return true
}

func (p *Projection) rankFrom(id feed.ChatID, positions []feed.ChatPosition) {
	pos, _ := feed.MainPosition(positions)
	p.rank(id, pos.Order)
}

func (p *Projection) rank(id feed.ChatID, order int64) {
	if changed, ids := p.index.set(id, order); changed {
		p.ids.Set(ids)
	}
}

// withPosition returns positions with pos replacing the entry for the same
// list. A zero order removes the entry.
func withPosition(positions []feed.ChatPosition, pos feed.ChatPosition) []feed.ChatPosition {
	out := make([]feed.ChatPosition, 0, len(positions)+1)
	for _, existing := range positions {
		if existing.List != pos.List {
			out = append(out, existing)
		}
	}
	if pos.Order != 0 {
		out = append(out, pos)
	}
	return out
}
