package api

import (
	"encoding/json"

	"github.com/matheus3301/wgram/internal/auth"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/notify"
)

type Empty struct{}

type StatusRequest struct{}

// Status describes the daemon and its projections.
type Status struct {
	Session       string        `json:"session"`
	Backend       string        `json:"backend"`
	Auth          auth.Snapshot `json:"auth"`
	PhoneNumber   string        `json:"phone_number,omitempty"`
	UptimeMs      int64         `json:"uptime_ms"`
	ChatCount     int32         `json:"chat_count"`
	OpenChatID    feed.ChatID   `json:"open_chat_id,omitempty"`
	Notifications int32         `json:"notifications"`
	DroppedEvents uint64        `json:"dropped_events"`
}

// ListChatsRequest reads the main chat list. Load first asks the backend for
// Limit more chats.
type ListChatsRequest struct {
	Limit int32 `json:"limit"`
	Load  bool  `json:"load"`
}

type ChatList struct {
	Chats []Chat `json:"chats"`
	// More is false once the backend has announced every chat.
	More bool `json:"more"`
}

// Chat is a chat snapshot with its last message rendered as text.
type Chat struct {
	feed.Chat
	LastText string `json:"last_text,omitempty"`
}

// Message is a message snapshot with its content encoded for the wire.
type Message struct {
	feed.Message
	Key         uint64          `json:"key,omitempty"`
	ContentType string          `json:"content_type"`
	Content     json.RawMessage `json:"content,omitempty"`
	Text        string          `json:"text"`
	SenderName  string          `json:"sender_name,omitempty"`
}

// Decode returns the message with its content decoded.
func (m Message) Decode() (feed.Message, error) {
	out := m.Message
	if len(m.Content) == 0 {
		out.Content = feed.Text{Text: m.Text}
		return out, nil
	}
	c, err := feed.UnmarshalContent(m.Content)
	if err != nil {
		return out, err
	}
	out.Content = c
	return out, nil
}

type OpenChatRequest struct {
	ChatID feed.ChatID `json:"chat_id"`
}

type HistoryRequest struct {
	ChatID feed.ChatID `json:"chat_id"`
}

// HistoryPage is the cached history of the open chat, newest first.
type HistoryPage struct {
	ChatID        feed.ChatID `json:"chat_id"`
	Messages      []Message   `json:"messages"`
	Exhausted     bool        `json:"exhausted"`
	BackfillError string      `json:"backfill_error,omitempty"`
}

type PullResponse struct {
	Requested bool `json:"requested"`
}

// SendTextRequest sends text to the open chat. With Wait the call returns
// once the backend confirms or rejects the message.
type SendTextRequest struct {
	ChatID  feed.ChatID    `json:"chat_id"`
	Text    string         `json:"text"`
	ReplyTo feed.MessageID `json:"reply_to,omitempty"`
	Silent  bool           `json:"silent,omitempty"`
	Wait    bool           `json:"wait,omitempty"`
}

type SendResponse struct {
	Accepted bool     `json:"accepted"`
	Message  *Message `json:"message,omitempty"`
}

type RetryRequest struct {
	MessageID feed.MessageID `json:"message_id"`
	Wait      bool           `json:"wait,omitempty"`
}

type DeleteRequest struct {
	MessageIDs []feed.MessageID `json:"message_ids"`
	Revoke     bool             `json:"revoke,omitempty"`
}

// MarkReadRequest marks messages of the open chat as viewed. No ids means
// every loaded message.
type MarkReadRequest struct {
	MessageIDs []feed.MessageID `json:"message_ids,omitempty"`
}

type NotificationList struct {
	Groups []notify.Rendered `json:"groups"`
}

type MarkNotificationsRequest struct {
	GroupID feed.NotificationGroupID `json:"group_id"`
}

type SearchRequest struct {
	Query  string      `json:"query"`
	ChatID feed.ChatID `json:"chat_id,omitempty"`
	Limit  int32       `json:"limit,omitempty"`
}

type SearchHit struct {
	Message Message `json:"message"`
	Snippet string  `json:"snippet"`
}

type SearchResponse struct {
	Total int32       `json:"total"`
	Hits  []SearchHit `json:"hits"`
}

// AuthRequest carries exactly one login step.
type AuthRequest struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Code        string `json:"code,omitempty"`
	Password    string `json:"password,omitempty"`
	QR          bool   `json:"qr,omitempty"`
	LogOut      bool   `json:"log_out,omitempty"`
}

type AuthState struct {
	auth.Snapshot
}

// WatchRequest selects event kinds by prefix. No prefixes means every
// projection event.
type WatchRequest struct {
	Prefixes []string `json:"prefixes,omitempty"`
}

// Event is one projection change.
type Event struct {
	ID               string          `json:"id"`
	Session          string          `json:"session"`
	Kind             string          `json:"kind"`
	OccurredAtUnixMs int64           `json:"occurred_at_unix_ms"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}
