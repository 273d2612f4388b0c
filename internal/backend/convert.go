package backend

import (
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/store"
)

const (
	orderDateShift = 20
	orderIDMask    = 1<<orderDateShift - 1
	pinnedOrderBit = int64(1) << 61
)

// chatOrder derives a main-list order from the last activity time. The low
// bits carry the chat id so distinct chats rarely share an order.
func chatOrder(c store.Chat) int64 {
	if c.LastMessageAt <= 0 {
		return 0
	}
	order := c.LastMessageAt<<orderDateShift | c.ID&orderIDMask
	if c.IsPinned {
		order |= pinnedOrderBit
	}
	return order
}

func positionsOf(c store.Chat) []feed.ChatPosition {
	list := feed.MainList
	if c.IsArchived {
		list = feed.ChatList{Kind: feed.ChatListArchive}
	}
	return []feed.ChatPosition{{List: list, Order: chatOrder(c), IsPinned: c.IsPinned}}
}

func chatType(t string) feed.ChatType {
	switch feed.ChatType(t) {
	case feed.ChatTypeBasicGroup, feed.ChatTypeSupergroup, feed.ChatTypeSecret:
		return feed.ChatType(t)
	default:
		return feed.ChatTypePrivate
	}
}

func toFeedChat(c store.Chat, last *store.Message) feed.Chat {
	fc := feed.Chat{
		ID:                      feed.ChatID(c.ID),
		Type:                    chatType(c.Type),
		Title:                   c.Title,
		Positions:               positionsOf(c),
		UnreadCount:             int32(c.UnreadCount),
		LastReadInboxMessageID:  feed.MessageID(c.LastReadInboxID),
		LastReadOutboxMessageID: feed.MessageID(c.LastReadOutboxID),
		Permissions: feed.ChatPermissions{
			CanSendMessages:      true,
			CanSendMediaMessages: true,
			CanSendPolls:         true,
		},
		NotificationSettings: feed.NotificationSettings{
			UseDefaultMuteFor: c.MutedUntil == 0,
			ShowPreview:       true,
		},
	}
	if last != nil {
		m := toFeedMessage(*last)
		fc.LastMessage = &m
	}
	return fc
}

func toFeedMessage(m store.Message) feed.Message {
	content, err := feed.UnmarshalContent([]byte(m.Content))
	if err != nil || m.Content == "" {
		content = feed.Text{Text: m.Body}
	}
	fm := feed.Message{
		ID:               feed.MessageID(m.ID),
		ChatID:           feed.ChatID(m.ChatID),
		Sender:           feed.MessageSender{UserID: feed.UserID(m.SenderID)},
		Content:          content,
		Date:             m.Timestamp / 1000,
		EditDate:         m.EditDate / 1000,
		IsOutgoing:       m.FromMe,
		ReplyToMessageID: feed.MessageID(m.ReplyToID),
	}
	switch m.State {
	case store.StatePending:
		fm.SendingState = feed.SendingPending
	case store.StateFailed:
		fm.SendingState = feed.SendingFailed
		fm.SendError = &feed.SendError{Code: m.ErrorCode, Message: m.ErrorMessage}
	}
	return fm
}

func toFeedUser(c store.Contact) feed.User {
	name := c.Name
	if name == "" {
		name = c.PushName
	}
	return feed.User{
		ID:          feed.UserID(c.ID),
		FirstName:   name,
		PhoneNumber: c.Phone,
	}
}

func encodeContent(c feed.Content) (string, error) {
	b, err := feed.MarshalContent(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func messageIDs(ids []int64) []feed.MessageID {
	out := make([]feed.MessageID, len(ids))
	for i, id := range ids {
		out[i] = feed.MessageID(id)
	}
	return out
}

func rowIDs(ids []feed.MessageID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
