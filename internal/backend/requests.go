package backend

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/store"
)

func (l *Local) loadChats(r feed.LoadChats) (feed.Response, error) {
	if !r.List.IsMain() {
		return nil, feed.Errorf(feed.CodeNotFound, "chat list %s is empty", r.List.Kind)
	}
	limit := int(r.Limit)
	if limit <= 0 {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "limit must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	chats, err := l.db.NextUnannounced(limit)
	if err != nil {
		return nil, l.internal("load chats", err)
	}
	if len(chats) == 0 {
		return nil, feed.ErrNotFound
	}
	ids := make([]feed.ChatID, 0, len(chats))
	for i := range chats {
		if _, err := l.announceLocked(&chats[i]); err != nil {
			return nil, l.internal("announce chat", err)
		}
		ids = append(ids, feed.ChatID(chats[i].ID))
	}
	return feed.Chats{ChatIDs: ids}, nil
}

// getChatHistory pages backwards from FromMessageID, exclusive. A negative
// offset also returns up to -offset newer messages.
func (l *Local) getChatHistory(r feed.GetChatHistory) (feed.Response, error) {
	limit := int(r.Limit)
	if limit <= 0 {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "limit must be positive")
	}
	limit = min(limit, maxHistoryLimit)
	offset := max(min(int(r.Offset), 0), -limit+1)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.chatLocked(r.ChatID); err != nil {
		return nil, err
	}

	var out []feed.Message
	if offset < 0 && r.FromMessageID > 0 {
		newer, err := l.db.ListNewer(int64(r.ChatID), int64(r.FromMessageID), -offset)
		if err != nil {
			return nil, l.internal("list newer messages", err)
		}
		slices.Reverse(newer)
		for _, m := range newer {
			out = append(out, toFeedMessage(m))
		}
	}
	older, err := l.db.ListMessages(int64(r.ChatID), int64(r.FromMessageID), limit-len(out))
	if err != nil {
		return nil, l.internal("list messages", err)
	}
	for _, m := range older {
		out = append(out, toFeedMessage(m))
	}
	total, err := l.db.CountMessages(int64(r.ChatID))
	if err != nil {
		return nil, l.internal("count messages", err)
	}
	return feed.Messages{TotalCount: int32(total), Messages: out}, nil
}

func (l *Local) sendMessage(r feed.SendMessage) (feed.Response, error) {
	text, ok := r.Content.(feed.Text)
	if !ok {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "content %T cannot be sent", r.Content)
	}
	if strings.TrimSpace(text.Text) == "" {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "message text is empty")
	}
	content, err := encodeContent(text)
	if err != nil {
		return nil, l.internal("encode content", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	chat, err := l.chatLocked(r.ChatID)
	if err != nil {
		return nil, err
	}
	if r.ReplyToMessageID != 0 {
		if m, err := l.db.GetMessage(int64(r.ReplyToMessageID)); err != nil || m == nil || m.ChatID != chat.ID {
			return nil, feed.Errorf(feed.CodeInvalidArgument, "reply target %d not found", r.ReplyToMessageID)
		}
	}

	clientID := uuid.NewString()
	m := store.Message{
		ChatID:    chat.ID,
		RemoteID:  "local:" + clientID,
		Body:      text.Text,
		Content:   content,
		FromMe:    true,
		State:     store.StatePending,
		ReplyToID: int64(r.ReplyToMessageID),
		Timestamp: time.Now().UnixMilli(),
	}
	if _, err := l.db.UpsertMessage(&m); err != nil {
		return nil, l.internal("store pending message", err)
	}
	if err := l.db.QueueOutbox(clientID, chat.ID, m.ID, content); err != nil {
		return nil, l.internal("queue outbox", err)
	}
	if _, err := l.db.TouchChat(chat.ID, m.ID, m.Timestamp); err != nil {
		return nil, l.internal("touch chat", err)
	}

	pending := toFeedMessage(m)
	l.hub.Publish(feed.NewMessage{Message: pending})
	if err := l.publishLastMessageLocked(chat.ID); err != nil {
		l.logger.Warn("failed to publish last message", zap.Error(err))
	}
	l.kick()
	return feed.MessageResult{Message: pending}, nil
}

func (l *Local) deleteMessages(ctx context.Context, r feed.DeleteMessages) (feed.Response, error) {
	if len(r.MessageIDs) == 0 {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "no messages to delete")
	}

	l.mu.Lock()
	chat, err := l.chatLocked(r.ChatID)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	var revoke []string
	if r.Revoke {
		for _, id := range r.MessageIDs {
			m, err := l.db.GetMessage(int64(id))
			if err == nil && m != nil && m.ChatID == chat.ID && m.FromMe && m.State == store.StateAcknowledged {
				revoke = append(revoke, m.RemoteID)
			}
		}
	}
	err = l.removeMessagesLocked(chat.ID, rowIDs(r.MessageIDs))
	l.mu.Unlock()
	if err != nil {
		return nil, l.internal("delete messages", err)
	}

	for _, remoteID := range revoke {
		if err := l.transport.Revoke(ctx, chat.JID, remoteID); err != nil {
			l.logger.Warn("failed to revoke message", zap.Error(err), zap.String("remote_id", remoteID))
		}
	}
	return feed.Ok{}, nil
}

// removeMessagesLocked deletes rows and publishes the resulting updates.
func (l *Local) removeMessagesLocked(chatID int64, ids []int64) error {
	before, err := l.db.GetChat(chatID)
	if err != nil {
		return err
	}
	deleted, err := l.db.DeleteMessages(chatID, ids)
	if err != nil || len(deleted) == 0 {
		return err
	}
	l.hub.Publish(feed.MessagesDeleted{
		ChatID:      feed.ChatID(chatID),
		MessageIDs:  messageIDs(deleted),
		IsPermanent: true,
	})
	if slices.Contains(deleted, before.LastMessageID) {
		if _, err := l.db.RefreshLastMessage(chatID); err != nil {
			return err
		}
		if err := l.publishLastMessageLocked(chatID); err != nil {
			return err
		}
	}
	return l.dropNotificationsLocked(chatID, 0, deleted)
}

func (l *Local) getMessage(r feed.GetMessage) (feed.Response, error) {
	m, err := l.db.GetMessage(int64(r.MessageID))
	if err != nil {
		return nil, l.internal("get message", err)
	}
	if m == nil || m.ChatID != int64(r.ChatID) {
		return nil, feed.Errorf(feed.CodeNotFound, "message %d not found", r.MessageID)
	}
	return feed.MessageResult{Message: toFeedMessage(*m)}, nil
}

// viewMessages marks incoming messages as read when the chat is open or the
// caller forces it.
func (l *Local) viewMessages(r feed.ViewMessages) (feed.Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chat, err := l.chatLocked(r.ChatID)
	if err != nil {
		return nil, err
	}
	if len(r.MessageIDs) == 0 || (!r.ForceRead && !l.isOpen(r.ChatID)) {
		return feed.Ok{}, nil
	}
	upTo := int64(slices.Max(r.MessageIDs))
	if upTo <= 0 {
		return feed.Ok{}, nil
	}

	lastRead, unread, err := l.db.MarkInboxRead(chat.ID, upTo)
	if err != nil {
		return nil, l.internal("mark read", err)
	}
	if lastRead != chat.LastReadInboxID || unread != chat.UnreadCount {
		l.hub.Publish(feed.ChatReadInboxChanged{
			ChatID:                 r.ChatID,
			LastReadInboxMessageID: feed.MessageID(lastRead),
			UnreadCount:            int32(unread),
		})
	}
	if err := l.dropNotificationsLocked(chat.ID, upTo, rowIDs(r.MessageIDs)); err != nil {
		return nil, l.internal("drop notifications", err)
	}
	return feed.Ok{}, nil
}

func (l *Local) openChat(id feed.ChatID, delta int) (feed.Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.chatLocked(id); err != nil {
		return nil, err
	}
	n := max(l.opened[id]+delta, 0)
	if n == 0 {
		delete(l.opened, id)
	} else {
		l.opened[id] = n
	}
	return feed.Ok{}, nil
}

func (l *Local) setOption(r feed.SetOption) (feed.Response, error) {
	if r.Name != OptionGroupCountMax {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "unknown option %q", r.Name)
	}
	if r.Value < 1 || r.Value > 25 {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "%s must be in [1, 25]", r.Name)
	}
	if err := l.db.SetOption(r.Name, r.Value); err != nil {
		return nil, l.internal("set option", err)
	}
	return feed.Ok{}, nil
}

func (l *Local) searchMessages(r feed.SearchMessages) (feed.Response, error) {
	if strings.TrimSpace(r.Query) == "" {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "query is empty")
	}
	results, err := l.db.SearchMessages(r.Query, int64(r.ChatID), int(r.Limit))
	if err != nil {
		if strings.Contains(err.Error(), "fts5") {
			return nil, feed.Errorf(feed.CodeInvalidArgument, "bad query: %v", err)
		}
		return nil, l.internal("search", err)
	}
	found := feed.FoundMessages{
		TotalCount: int32(len(results)),
		Snippets:   make(map[feed.MessageID]string, len(results)),
	}
	for _, res := range results {
		m := toFeedMessage(res.Message)
		found.Messages = append(found.Messages, m)
		found.Snippets[m.ID] = res.Snippet
	}
	return found, nil
}
