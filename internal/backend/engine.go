package backend

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wgram/internal/bus"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/store"
	"github.com/matheus3301/wgram/internal/wa"
)

const historySyncedKey = "history_synced_at"

// Engine ingests transport events into the store and turns them into feed
// updates. It subscribes to "wa." events on the bus and applies them on a
// single goroutine.
type Engine struct {
	local  *Local
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new ingestion engine.
func NewEngine(l *Local, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{local: l, bus: b, logger: logger}
}

// Start subscribes to inbound WhatsApp events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("wa.", 256)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	var err error
	switch p := evt.Payload.(type) {
	case wa.Message:
		err = e.IngestMessage(p)
	case []wa.Message:
		err = e.IngestHistoryBatch(p)
	case wa.Revoke:
		err = e.IngestRevoke(p)
	case wa.Edit:
		err = e.IngestEdit(p)
	case wa.Receipt:
		err = e.IngestReceipt(p)
	case wa.Contact:
		err = e.IngestContacts([]wa.Contact{p})
	case []wa.Contact:
		err = e.IngestContacts(p)
	default:
		e.handleConnection(evt)
	}
	if err != nil {
		e.logger.Error("failed to ingest event", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

func (e *Engine) handleConnection(evt bus.Event) {
	switch evt.Kind {
	case bus.KindWAQRCode:
		code, _ := evt.Payload.(string)
		e.local.SetAuthorization(feed.AuthorizationState{Kind: feed.AuthWaitOtherDeviceConfirmation, Link: code})
	case bus.KindWAPaired:
		e.local.SetAuthorization(feed.AuthorizationState{Kind: feed.AuthReady})
	case bus.KindWAConnected:
		if e.local.pairer != nil && e.local.pairer.IsLoggedIn() {
			e.local.SetAuthorization(feed.AuthorizationState{Kind: feed.AuthReady})
		}
	case bus.KindWAPairFailed, bus.KindWALoggedOut:
		e.local.SetAuthorization(feed.AuthorizationState{Kind: feed.AuthWaitOtherDeviceConfirmation})
	}
}

// IngestMessage stores one live message idempotently, announces it and
// raises a notification when its chat is closed.
func (e *Engine) IngestMessage(msg wa.Message) error {
	l := e.local
	l.mu.Lock()
	defer l.mu.Unlock()

	chat, err := e.ensureChatLocked(msg)
	if err != nil {
		return err
	}
	m, created, err := e.storeMessageLocked(chat.ID, msg)
	if err != nil || !created {
		return err
	}
	moved, err := l.db.TouchChat(chat.ID, m.ID, m.Timestamp)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if chat.Announced && !msg.IsGroup {
		// A new push name may have renamed the chat.
		if fresh, err := l.db.GetChat(chat.ID); err == nil && fresh != nil && fresh.Title != chat.Title {
			l.hub.Publish(feed.ChatTitleChanged{ChatID: feed.ChatID(chat.ID), Title: fresh.Title})
		}
	}

	if chat.Announced {
		l.hub.Publish(feed.NewMessage{Message: toFeedMessage(m)})
	}
	if moved {
		if err := l.publishLastMessageLocked(chat.ID); err != nil {
			return err
		}
	}
	if m.FromMe {
		return nil
	}
	unread, err := l.db.IncrementUnread(chat.ID)
	if err != nil {
		return fmt.Errorf("increment unread: %w", err)
	}
	l.hub.Publish(feed.ChatReadInboxChanged{
		ChatID:                 feed.ChatID(chat.ID),
		LastReadInboxMessageID: feed.MessageID(chat.LastReadInboxID),
		UnreadCount:            int32(unread),
	})
	if l.isOpen(feed.ChatID(chat.ID)) {
		return nil
	}
	return l.notifyLocked(chat, m)
}

// IngestHistoryBatch stores a history sync batch oldest first, so row ids
// follow message time within the batch. Only chat-level updates are
// published; history caches pick the messages up by paging.
func (e *Engine) IngestHistoryBatch(msgs []wa.Message) error {
	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, func(a, b wa.Message) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})

	touched := make(map[int64]bool)
	for _, msg := range sorted {
		chatID, err := e.ingestHistoryMessage(msg)
		if err != nil {
			return err
		}
		if chatID != 0 {
			touched[chatID] = true
		}
	}

	l := e.local
	l.mu.Lock()
	defer l.mu.Unlock()
	for chatID := range touched {
		c, err := l.db.GetChat(chatID)
		if err != nil || c == nil || !c.Announced {
			continue
		}
		if err := l.publishLastMessageLocked(chatID); err != nil {
			return err
		}
	}
	if err := l.db.SetSyncState(historySyncedKey, strconv.FormatInt(time.Now().UnixMilli(), 10)); err != nil {
		e.logger.Warn("failed to record history checkpoint", zap.Error(err))
	}
	e.logger.Info("history batch ingested", zap.Int("messages", len(msgs)), zap.Int("chats", len(touched)))
	return nil
}

func (e *Engine) ingestHistoryMessage(msg wa.Message) (int64, error) {
	l := e.local
	l.mu.Lock()
	defer l.mu.Unlock()

	chat, err := e.ensureChatLocked(msg)
	if err != nil {
		return 0, err
	}
	m, created, err := e.storeMessageLocked(chat.ID, msg)
	if err != nil || !created {
		return 0, err
	}
	moved, err := l.db.TouchChat(chat.ID, m.ID, m.Timestamp)
	if err != nil || !moved {
		return 0, err
	}
	return chat.ID, nil
}

// IngestRevoke removes a message deleted for everyone.
func (e *Engine) IngestRevoke(r wa.Revoke) error {
	l := e.local
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := e.lookupLocked(r.ChatJID, r.RemoteID)
	if err != nil || m == nil {
		return err
	}
	return l.removeMessagesLocked(m.ChatID, []int64{m.ID})
}

// IngestEdit replaces the content of an edited message.
func (e *Engine) IngestEdit(ed wa.Edit) error {
	l := e.local
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.db.GetChatByJID(ed.ChatJID)
	if err != nil || c == nil {
		return err
	}
	content, err := encodeContent(ed.Content)
	if err != nil {
		return err
	}
	m, err := l.db.UpdateMessageContent(c.ID, ed.RemoteID, feed.Summary(ed.Content), content, ed.EditDate)
	if err != nil || m == nil {
		return err
	}
	l.hub.Publish(feed.MessageContentChanged{
		ChatID:     feed.ChatID(c.ID),
		MessageID:  feed.MessageID(m.ID),
		NewContent: ed.Content,
	})
	l.hub.Publish(feed.MessageEdited{
		ChatID:    feed.ChatID(c.ID),
		MessageID: feed.MessageID(m.ID),
		EditDate:  ed.EditDate / 1000,
	})
	if m.ID == c.LastMessageID {
		return l.publishLastMessageLocked(c.ID)
	}
	return nil
}

// IngestReceipt advances the outbox read marker to the newest message the
// peer has read.
func (e *Engine) IngestReceipt(r wa.Receipt) error {
	l := e.local
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.db.GetChatByJID(r.ChatJID)
	if err != nil || c == nil {
		return err
	}
	var upTo int64
	for _, remoteID := range r.RemoteIDs {
		m, err := l.db.GetMessageByRemoteID(c.ID, remoteID)
		if err != nil {
			return err
		}
		if m != nil && m.FromMe {
			upTo = max(upTo, m.ID)
		}
	}
	if upTo == 0 {
		return nil
	}
	moved, err := l.db.MarkOutboxRead(c.ID, upTo)
	if err != nil || !moved || !c.Announced {
		return err
	}
	l.hub.Publish(feed.ChatReadOutboxChanged{
		ChatID:                  feed.ChatID(c.ID),
		LastReadOutboxMessageID: feed.MessageID(upTo),
	})
	return nil
}

// IngestContacts upserts contacts, publishing UserUpdated for changes and
// ChatTitleChanged for private chats whose display title moved.
func (e *Engine) IngestContacts(contacts []wa.Contact) error {
	l := e.local
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ct := range contacts {
		if ct.JID == "" {
			continue
		}
		before, err := l.db.GetContact(ct.JID)
		if err != nil {
			return err
		}
		chatBefore, err := l.db.GetChatByJID(ct.JID)
		if err != nil {
			return err
		}
		after, err := l.db.UpsertContact(&store.Contact{JID: ct.JID, Name: ct.Name, PushName: ct.PushName, Phone: ct.Phone})
		if err != nil {
			return err
		}
		if before == nil || *before != *after {
			l.hub.Publish(feed.UserUpdated{User: toFeedUser(*after)})
		}
		if chatBefore == nil || !chatBefore.Announced {
			continue
		}
		chatAfter, err := l.db.GetChat(chatBefore.ID)
		if err != nil {
			return err
		}
		if chatAfter.Title != chatBefore.Title {
			l.hub.Publish(feed.ChatTitleChanged{ChatID: feed.ChatID(chatAfter.ID), Title: chatAfter.Title})
		}
	}
	return nil
}

func (e *Engine) ensureChatLocked(msg wa.Message) (*store.Chat, error) {
	l := e.local
	// Private chats keep an empty title so the contact name shows through.
	typ, title := string(feed.ChatTypePrivate), ""
	if msg.IsGroup {
		typ, title = string(feed.ChatTypeBasicGroup), msg.ChatName
	}
	id, created, err := l.db.EnsureChat(msg.ChatJID, typ, title)
	if err != nil {
		return nil, err
	}
	if !created && msg.ChatName != "" && msg.IsGroup {
		changed, err := l.db.SetChatTitle(id, msg.ChatName)
		if err != nil {
			return nil, err
		}
		if changed {
			defer l.hub.Publish(feed.ChatTitleChanged{ChatID: feed.ChatID(id), Title: msg.ChatName})
		}
	}
	c, err := l.db.GetChat(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("chat %s vanished", msg.ChatJID)
	}
	return c, nil
}

func (e *Engine) storeMessageLocked(chatID int64, msg wa.Message) (store.Message, bool, error) {
	l := e.local
	content, err := encodeContent(msg.Content)
	if err != nil {
		return store.Message{}, false, err
	}
	m := store.Message{
		ChatID:     chatID,
		RemoteID:   msg.RemoteID,
		SenderJID:  msg.SenderJID,
		SenderName: msg.SenderName,
		Body:       feed.Summary(msg.Content),
		Content:    content,
		FromMe:     msg.FromMe,
		Timestamp:  msg.Timestamp,
	}
	if !msg.FromMe && msg.SenderJID != "" {
		if m.SenderID, err = e.touchSenderLocked(msg.SenderJID, msg.SenderName); err != nil {
			return store.Message{}, false, err
		}
	}
	if msg.ReplyTo != "" {
		if q, err := l.db.GetMessageByRemoteID(chatID, msg.ReplyTo); err == nil && q != nil {
			m.ReplyToID = q.ID
		}
	}
	created, err := l.db.UpsertMessage(&m)
	if err != nil {
		return store.Message{}, false, err
	}
	return m, created, nil
}

// touchSenderLocked records the sender's push name and returns its user id.
func (e *Engine) touchSenderLocked(jid, pushName string) (int64, error) {
	l := e.local
	if pushName == "" {
		return l.db.EnsureContact(jid)
	}
	before, err := l.db.GetContact(jid)
	if err != nil {
		return 0, err
	}
	after, err := l.db.UpsertContact(&store.Contact{JID: jid, PushName: pushName})
	if err != nil {
		return 0, err
	}
	if before == nil || *before != *after {
		l.hub.Publish(feed.UserUpdated{User: toFeedUser(*after)})
	}
	return after.ID, nil
}

func (e *Engine) lookupLocked(chatJID, remoteID string) (*store.Message, error) {
	c, err := e.local.db.GetChatByJID(chatJID)
	if err != nil || c == nil {
		return nil, err
	}
	return e.local.db.GetMessageByRemoteID(c.ID, remoteID)
}
