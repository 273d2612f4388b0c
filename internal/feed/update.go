package feed

// Update is a backend-originated change event. The set of implementations is
// closed; consumers dispatch with a type switch.
type Update interface {
	isUpdate()
}

// NewChat announces a chat with its full snapshot.
type NewChat struct {
	Chat Chat
}

// ChatPositionChanged moves a chat within one list. Order 0 removes it.
type ChatPositionChanged struct {
	ChatID   ChatID
	Position ChatPosition
}

// ChatLastMessageChanged carries the new last message and the chat's
// resulting positions.
type ChatLastMessageChanged struct {
	ChatID      ChatID
	LastMessage *Message
	Positions   []ChatPosition
}

type ChatTitleChanged struct {
	ChatID ChatID
	Title  string
}

type ChatPhotoChanged struct {
	ChatID ChatID
	Photo  *ChatPhoto
}

type ChatReadInboxChanged struct {
	ChatID                 ChatID
	LastReadInboxMessageID MessageID
	UnreadCount            int32
}

type ChatReadOutboxChanged struct {
	ChatID                  ChatID
	LastReadOutboxMessageID MessageID
}

// ChatDraftChanged carries the draft and the chat's resulting positions.
type ChatDraftChanged struct {
	ChatID    ChatID
	Draft     *DraftMessage
	Positions []ChatPosition
}

type ChatUnreadMentionCountChanged struct {
	ChatID             ChatID
	UnreadMentionCount int32
}

// MessageMentionRead reports a mention as read and the remaining count.
type MessageMentionRead struct {
	ChatID             ChatID
	MessageID          MessageID
	UnreadMentionCount int32
}

type ChatPermissionsChanged struct {
	ChatID      ChatID
	Permissions ChatPermissions
}

type ChatNotificationSettingsChanged struct {
	ChatID   ChatID
	Settings NotificationSettings
}

type ChatReplyMarkupChanged struct {
	ChatID               ChatID
	ReplyMarkupMessageID MessageID
}

type ChatMarkedAsUnreadChanged struct {
	ChatID           ChatID
	IsMarkedAsUnread bool
}

type ChatBlockedChanged struct {
	ChatID    ChatID
	IsBlocked bool
}

type ChatScheduledMessagesChanged struct {
	ChatID               ChatID
	HasScheduledMessages bool
}

type ChatDefaultDisableNotificationChanged struct {
	ChatID                     ChatID
	DefaultDisableNotification bool
}

// NewMessage announces a message, including pending outgoing ones.
type NewMessage struct {
	Message Message
}

type MessageContentChanged struct {
	ChatID     ChatID
	MessageID  MessageID
	NewContent Content
}

type MessageEdited struct {
	ChatID    ChatID
	MessageID MessageID
	EditDate  int64
}

// MessagesDeleted removes messages. Only permanent deletions drop them from
// caches; non-permanent ones merely evict them from the backend's memory.
type MessagesDeleted struct {
	ChatID      ChatID
	MessageIDs  []MessageID
	IsPermanent bool
	FromCache   bool
}

// MessageSendSucceeded swaps a pending id for the server-assigned message.
type MessageSendSucceeded struct {
	OldMessageID MessageID
	Message      Message
}

// MessageSendFailed reports that a pending message could not be delivered.
type MessageSendFailed struct {
	OldMessageID MessageID
	Message      Message
	Error        SendError
}

// ActiveNotifications is a full snapshot of notification groups.
type ActiveNotifications struct {
	Groups []NotificationGroup
}

// NotificationGroupChanged is an incremental group delta.
type NotificationGroupChanged struct {
	GroupID    NotificationGroupID
	Type       NotificationGroupType
	ChatID     ChatID
	TotalCount int32
	Added      []Notification
	Removed    []NotificationID
}

// NotificationChanged replaces one notification inside a group.
type NotificationChanged struct {
	GroupID      NotificationGroupID
	Notification Notification
}

type UserUpdated struct {
	User User
}

type UserStatusChanged struct {
	UserID UserID
	Status string
}

type AuthorizationStateChanged struct {
	State AuthorizationState
}

func (NewChat) isUpdate()                               {}
func (ChatPositionChanged) isUpdate()                   {}
func (ChatLastMessageChanged) isUpdate()                {}
func (ChatTitleChanged) isUpdate()                      {}
func (ChatPhotoChanged) isUpdate()                      {}
func (ChatReadInboxChanged) isUpdate()                  {}
func (ChatReadOutboxChanged) isUpdate()                 {}
func (ChatDraftChanged) isUpdate()                      {}
func (ChatUnreadMentionCountChanged) isUpdate()         {}
func (MessageMentionRead) isUpdate()                    {}
func (ChatPermissionsChanged) isUpdate()                {}
func (ChatNotificationSettingsChanged) isUpdate()       {}
func (ChatReplyMarkupChanged) isUpdate()                {}
func (ChatMarkedAsUnreadChanged) isUpdate()             {}
func (ChatBlockedChanged) isUpdate()                    {}
func (ChatScheduledMessagesChanged) isUpdate()          {}
func (ChatDefaultDisableNotificationChanged) isUpdate() {}
func (NewMessage) isUpdate()                            {}
func (MessageContentChanged) isUpdate()                 {}
func (MessageEdited) isUpdate()                         {}
func (MessagesDeleted) isUpdate()                       {}
func (MessageSendSucceeded) isUpdate()                  {}
func (MessageSendFailed) isUpdate()                     {}
func (ActiveNotifications) isUpdate()                   {}
func (NotificationGroupChanged) isUpdate()              {}
func (NotificationChanged) isUpdate()                   {}
func (UserUpdated) isUpdate()                           {}
func (UserStatusChanged) isUpdate()                     {}
func (AuthorizationStateChanged) isUpdate()             {}

// AuthorizationStateKind is the backend's view of the login flow.
type AuthorizationStateKind string

const (
	AuthWaitPhoneNumber             AuthorizationStateKind = "wait_phone_number"
	AuthWaitOtherDeviceConfirmation AuthorizationStateKind = "wait_other_device_confirmation"
	AuthWaitCode                    AuthorizationStateKind = "wait_code"
	AuthWaitPassword                AuthorizationStateKind = "wait_password"
	AuthReady                       AuthorizationStateKind = "ready"
	AuthLoggingOut                  AuthorizationStateKind = "logging_out"
	AuthClosed                      AuthorizationStateKind = "closed"
)

// AuthorizationState is the current login step. Link is set while waiting for
// another device to confirm (it is what a QR code encodes).
type AuthorizationState struct {
	Kind AuthorizationStateKind `json:"kind"`
	Link string                 `json:"link,omitempty"`
}
