package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Transport events, published by the WhatsApp adapter.
const (
	KindWAMessage      = "wa.message"
	KindWAHistoryBatch = "wa.history_batch"
	KindWARevoke       = "wa.revoke"
	KindWAEdit         = "wa.edit"
	KindWAReadReceipt  = "wa.read_receipt"
	KindWAContact      = "wa.contact"
	KindWAContacts     = "wa.contacts"
	KindWAConnected    = "wa.connected"
	KindWADisconnected = "wa.disconnected"
	KindWALoggedOut    = "wa.logged_out"
	KindWAQRCode       = "wa.qr_code"
	KindWAPaired       = "wa.paired"
	KindWAPairFailed   = "wa.pair_failed"
)

// Projection change hints, consumed by the watch stream.
const (
	KindAuthStateChanged = "auth.state_changed"
	KindChatsChanged     = "chats.changed"
	KindHistoryChanged   = "history.changed"
	KindNotifyRendered   = "notify.rendered"
)
