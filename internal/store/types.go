package store

// Chat represents a persisted chat. ID is the SQLite row id and doubles as the
// feed chat id.
type Chat struct {
	ID               int64
	JID              string
	Type             string // private, basic_group, supergroup
	Title            string
	LastMessageID    int64
	LastMessageAt    int64
	LastReadInboxID  int64
	LastReadOutboxID int64
	UnreadCount      int
	IsPinned         bool
	IsArchived       bool
	MutedUntil       int64
	Announced        bool
}

// Contact represents a synced contact. ID doubles as the feed user id.
type Contact struct {
	ID       int64
	JID      string
	Name     string
	PushName string
	Phone    string
}

// Message represents a persisted message. Body holds the plain-text summary
// indexed by FTS; Content holds the JSON encoded feed content.
type Message struct {
	ID           int64
	ChatID       int64
	RemoteID     string
	SenderJID    string
	SenderID     int64
	SenderName   string
	Body         string
	Content      string
	FromMe       bool
	State        string // "", pending, failed
	ErrorCode    int
	ErrorMessage string
	ReplyToID    int64
	Timestamp    int64
	EditDate     int64
}

// Message states.
const (
	StateAcknowledged = ""
	StatePending      = "pending"
	StateFailed       = "failed"
)

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatID       int64
	MessageID    int64
	Content      string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	ServerMsgID  string
}

// Notification is an active notification for an incoming message.
type Notification struct {
	ID        int64
	ChatID    int64
	MessageID int64
	Date      int64
	Silent    bool
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
