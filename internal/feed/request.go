package feed

import (
	"context"
	"fmt"
)

// Request is a call issued to the backend. The set of implementations is closed.
type Request interface {
	isRequest()
}

// Response is a backend answer to a Request.
type Response interface {
	isResponse()
}

// LoadChats asks the backend to announce up to Limit more chats of List
// through NewChat updates. ErrNotFound means every chat is already known.
type LoadChats struct {
	List  ChatList
	Limit int32
}

// GetChatHistory returns messages older than FromMessageID (0 means newest),
// newest first. A negative Offset also returns up to -Offset newer messages.
type GetChatHistory struct {
	ChatID        ChatID
	FromMessageID MessageID
	Offset        int32
	Limit         int32
	OnlyLocal     bool
}

// SendOptions tune how a message is delivered.
type SendOptions struct {
	DisableNotification bool `json:"disable_notification,omitempty"`
	FromBackground      bool `json:"from_background,omitempty"`
}

// SendMessage answers with the pending message. Delivery is reported later by
// MessageSendSucceeded or MessageSendFailed.
type SendMessage struct {
	ChatID           ChatID
	ReplyToMessageID MessageID
	Options          SendOptions
	Content          Content
}

// DeleteMessages deletes messages; Revoke also deletes them for the other side.
type DeleteMessages struct {
	ChatID     ChatID
	MessageIDs []MessageID
	Revoke     bool
}

type GetMessage struct {
	ChatID    ChatID
	MessageID MessageID
}

// ViewMessages marks messages as seen. ForceRead marks them read even when the
// chat is closed.
type ViewMessages struct {
	ChatID     ChatID
	MessageIDs []MessageID
	ForceRead  bool
}

type OpenChat struct {
	ChatID ChatID
}

type CloseChat struct {
	ChatID ChatID
}

type SetOption struct {
	Name  string
	Value int64
}

// SearchMessages runs a full-text search. ChatID 0 searches every chat.
type SearchMessages struct {
	ChatID ChatID
	Query  string
	Limit  int32
}

type GetAuthorizationState struct{}

type SetPhoneNumber struct {
	PhoneNumber string
}

type CheckCode struct {
	Code string
}

type CheckPassword struct {
	Password string
}

type RequestQrCodeAuthentication struct{}

type LogOut struct{}

func (LoadChats) isRequest()                   {}
func (GetChatHistory) isRequest()              {}
func (SendMessage) isRequest()                 {}
func (DeleteMessages) isRequest()              {}
func (GetMessage) isRequest()                  {}
func (ViewMessages) isRequest()                {}
func (OpenChat) isRequest()                    {}
func (CloseChat) isRequest()                   {}
func (SetOption) isRequest()                   {}
func (SearchMessages) isRequest()              {}
func (GetAuthorizationState) isRequest()       {}
func (SetPhoneNumber) isRequest()              {}
func (CheckCode) isRequest()                   {}
func (CheckPassword) isRequest()               {}
func (RequestQrCodeAuthentication) isRequest() {}
func (LogOut) isRequest()                      {}

// Ok acknowledges a request that has no payload.
type Ok struct{}

// Messages is a page of history, newest first.
type Messages struct {
	TotalCount int32
	Messages   []Message
}

// MessageResult wraps a single message.
type MessageResult struct {
	Message Message
}

type Chats struct {
	ChatIDs []ChatID
}

// FoundMessages is a search result page.
type FoundMessages struct {
	TotalCount int32
	Messages   []Message
	Snippets   map[MessageID]string
}

func (Ok) isResponse()                 {}
func (Messages) isResponse()           {}
func (MessageResult) isResponse()      {}
func (Chats) isResponse()              {}
func (FoundMessages) isResponse()      {}
func (AuthorizationState) isResponse() {}

// CallAs issues req and asserts the response type.
func CallAs[T Response](ctx context.Context, c Client, req Request) (T, error) {
	var zero T
	resp, err := c.Call(ctx, req)
	if err != nil {
		return zero, err
	}
	out, ok := resp.(T)
	if !ok {
		return zero, &Error{Code: CodeInternal, Message: fmt.Sprintf("unexpected response %T for %T", resp, req)}
	}
	return out, nil
}
