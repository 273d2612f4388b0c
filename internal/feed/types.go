package feed

// ChatID identifies a chat. Issued by the backend, stable for the chat's lifetime.
type ChatID int64

// MessageID identifies a message within a chat. Server-assigned ids increase
// monotonically in server order; pending ids are temporary.
type MessageID int64

// UserID identifies a user.
type UserID int64

// NotificationGroupID identifies a notification group.
type NotificationGroupID int32

// NotificationID identifies a single notification inside a group.
type NotificationID int32

// ChatType classifies a chat.
type ChatType string

const (
	ChatTypePrivate    ChatType = "private"
	ChatTypeBasicGroup ChatType = "basic_group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeSecret     ChatType = "secret"
)

// IsGroup reports whether the chat has more than one counterpart.
func (t ChatType) IsGroup() bool {
	return t == ChatTypeBasicGroup || t == ChatTypeSupergroup
}

// ChatListKind is the list-membership tag of a chat position.
type ChatListKind string

const (
	ChatListMain    ChatListKind = "main"
	ChatListArchive ChatListKind = "archive"
	ChatListFolder  ChatListKind = "folder"
)

// ChatList names one list a chat can be a member of.
type ChatList struct {
	Kind     ChatListKind `json:"kind"`
	FolderID int32        `json:"folder_id,omitempty"`
}

// MainList is the default chat list.
var MainList = ChatList{Kind: ChatListMain}

// IsMain reports whether l is the main chat list.
func (l ChatList) IsMain() bool { return l.Kind == ChatListMain }

// ChatPosition is a chat's position in one list. Order 0 means the chat is
// not a member of the list.
type ChatPosition struct {
	List     ChatList `json:"list"`
	Order    int64    `json:"order"`
	IsPinned bool     `json:"is_pinned,omitempty"`
}

// ChatPhoto references a chat's avatar.
type ChatPhoto struct {
	ID       int64  `json:"id"`
	SmallRef string `json:"small_ref,omitempty"`
	BigRef   string `json:"big_ref,omitempty"`
}

// ChatPermissions lists what members may do in a chat.
type ChatPermissions struct {
	CanSendMessages      bool `json:"can_send_messages"`
	CanSendMediaMessages bool `json:"can_send_media_messages"`
	CanSendPolls         bool `json:"can_send_polls"`
	CanInviteUsers       bool `json:"can_invite_users"`
	CanPinMessages       bool `json:"can_pin_messages"`
}

// NotificationSettings are the per-chat notification preferences.
type NotificationSettings struct {
	UseDefaultMuteFor bool  `json:"use_default_mute_for"`
	MuteFor           int32 `json:"mute_for"`
	ShowPreview       bool  `json:"show_preview"`
}

// DraftMessage is an unsent draft attached to a chat.
type DraftMessage struct {
	ReplyToMessageID MessageID `json:"reply_to_message_id,omitempty"`
	Date             int64     `json:"date"`
	Text             string    `json:"text"`
}

// Chat is the snapshot of one chat. Deltas replace only the fields they name.
type Chat struct {
	ID                         ChatID               `json:"id"`
	Type                       ChatType             `json:"type"`
	Title                      string               `json:"title"`
	Photo                      *ChatPhoto           `json:"photo,omitempty"`
	Permissions                ChatPermissions      `json:"permissions"`
	LastMessage                *Message             `json:"last_message,omitempty"`
	Positions                  []ChatPosition       `json:"positions,omitempty"`
	IsMarkedAsUnread           bool                 `json:"is_marked_as_unread,omitempty"`
	IsBlocked                  bool                 `json:"is_blocked,omitempty"`
	HasScheduledMessages       bool                 `json:"has_scheduled_messages,omitempty"`
	DefaultDisableNotification bool                 `json:"default_disable_notification,omitempty"`
	UnreadCount                int32                `json:"unread_count"`
	LastReadInboxMessageID     MessageID            `json:"last_read_inbox_message_id"`
	LastReadOutboxMessageID    MessageID            `json:"last_read_outbox_message_id"`
	UnreadMentionCount         int32                `json:"unread_mention_count"`
	NotificationSettings       NotificationSettings `json:"notification_settings"`
	ReplyMarkupMessageID       MessageID            `json:"reply_markup_message_id,omitempty"`
	Draft                      *DraftMessage        `json:"draft,omitempty"`
}

// MainPosition returns the chat's position in the main list, if any.
func MainPosition(positions []ChatPosition) (ChatPosition, bool) {
	for _, p := range positions {
		if p.List.IsMain() {
			return p, p.Order != 0
		}
	}
	return ChatPosition{}, false
}

// SendingState tracks an outgoing message's delivery to the backend.
type SendingState string

const (
	SendingAcknowledged SendingState = ""
	SendingPending      SendingState = "pending"
	SendingFailed       SendingState = "failed"
)

// MessageSender is either a user or a chat (channels post as the chat).
type MessageSender struct {
	UserID UserID `json:"user_id,omitempty"`
	ChatID ChatID `json:"chat_id,omitempty"`
}

// SendError describes why a send failed.
type SendError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Message is one message body.
type Message struct {
	ID               MessageID     `json:"id"`
	ChatID           ChatID        `json:"chat_id"`
	Sender           MessageSender `json:"sender"`
	Content          Content       `json:"-"`
	Date             int64         `json:"date"`
	EditDate         int64         `json:"edit_date,omitempty"`
	IsOutgoing       bool          `json:"is_outgoing"`
	SendingState     SendingState  `json:"sending_state,omitempty"`
	SendError        *SendError    `json:"send_error,omitempty"`
	ReplyToMessageID MessageID     `json:"reply_to_message_id,omitempty"`
}

// IsPending reports whether the message still awaits acknowledgment.
func (m Message) IsPending() bool { return m.SendingState == SendingPending }

// User is a user snapshot.
type User struct {
	ID          UserID `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
	Username    string `json:"username,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Status      string `json:"status,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	if u.FirstName == "" {
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// NotificationGroupType classifies a notification group.
type NotificationGroupType string

const (
	GroupMessages   NotificationGroupType = "messages"
	GroupMentions   NotificationGroupType = "mentions"
	GroupSecretChat NotificationGroupType = "secret_chat"
	GroupCalls      NotificationGroupType = "calls"
)

// NotificationType is the payload of a notification.
type NotificationType interface {
	notificationType() string
}

// NewMessageNotification announces a message.
type NewMessageNotification struct {
	Message Message
}

// NewSecretChatNotification announces a created secret chat.
type NewSecretChatNotification struct{}

// NewCallNotification announces an incoming call.
type NewCallNotification struct {
	CallID int32
}

// NewPushMessageNotification is a message known only from a push payload.
type NewPushMessageNotification struct {
	MessageID MessageID
	Sender    MessageSender
	Text      string
}

func (NewMessageNotification) notificationType() string     { return "new_message" }
func (NewSecretChatNotification) notificationType() string  { return "new_secret_chat" }
func (NewCallNotification) notificationType() string        { return "new_call" }
func (NewPushMessageNotification) notificationType() string { return "new_push_message" }

// Notification is a single entry of a notification group.
type Notification struct {
	ID       NotificationID
	Date     int64
	IsSilent bool
	Type     NotificationType
}

// NotificationGroup holds the active notifications of one group, sorted by id.
type NotificationGroup struct {
	ID            NotificationGroupID
	Type          NotificationGroupType
	ChatID        ChatID
	TotalCount    int32
	Notifications []Notification
}
