// Package wa adapts a whatsmeow client into the transport behind the local
// backend. Inbound events are normalized and published on the bus; outbound
// sends and revokes are plain method calls.
package wa

import (
	"context"
	"errors"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/matheus3301/wgram/internal/bus"

	_ "github.com/mattn/go-sqlite3"
)

// ErrAlreadyLoggedIn is returned when pairing is requested for a linked device.
var ErrAlreadyLoggedIn = errors.New("already logged in")

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
}

// NewAdapter opens the whatsmeow device store at dbPath.
func NewAdapter(ctx context.Context, dbPath string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Set device name shown on the phone's linked devices list.
	wastore.SetOSInfo("wgram", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)
	a := &Adapter{
		client:    client,
		container: container,
		bus:       b,
		logger:    logger,
	}
	client.AddEventHandler(NewEventHandler(b, logger).Handle)
	return a, nil
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// SendText sends a text message to the given JID, optionally quoting
// replyTo. Returns the server message ID.
func (a *Adapter) SendText(ctx context.Context, jid, text, replyTo string) (string, error) {
	to, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	msg := &waE2E.Message{Conversation: proto.String(text)}
	if replyTo != "" {
		msg = &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text:        proto.String(text),
			ContextInfo: &waE2E.ContextInfo{StanzaID: proto.String(replyTo)},
		}}
	}
	resp, err := a.client.SendMessage(ctx, to, msg)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// Revoke deletes one of our messages for everyone in the chat.
func (a *Adapter) Revoke(ctx context.Context, chatJID, remoteID string) error {
	chat, err := types.ParseJID(chatJID)
	if err != nil {
		return fmt.Errorf("parse JID: %w", err)
	}
	if _, err := a.client.SendMessage(ctx, chat, a.client.BuildRevoke(chat, types.EmptyJID, remoteID)); err != nil {
		return fmt.Errorf("revoke %s: %w", remoteID, err)
	}
	return nil
}

// SyncContacts publishes every contact from the device store as one
// "wa.contacts" event.
func (a *Adapter) SyncContacts(ctx context.Context) int {
	contacts := a.Contacts(ctx)
	if len(contacts) > 0 {
		a.bus.Publish(busEvent(bus.KindWAContacts, contacts))
	}
	return len(contacts)
}

// Contacts returns all contacts from the whatsmeow device store.
func (a *Adapter) Contacts(ctx context.Context) []Contact {
	allContacts, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return nil
	}
	contacts := make([]Contact, 0, len(allContacts))
	for jid, info := range allContacts {
		contacts = append(contacts, Contact{
			JID:      normalizeJID(jid),
			Name:     info.FullName,
			PushName: info.PushName,
			Phone:    phoneOf(jid),
		})
	}
	return contacts
}

// PhoneNumber returns the phone number from the device store, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}
