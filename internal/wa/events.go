package wa

import (
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/matheus3301/wgram/internal/bus"
)

// EventHandler turns whatsmeow events into normalized "wa." bus events. It
// does NOT write to the store; the backend engine subscribes to the bus
// independently.
type EventHandler struct {
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{bus: b, logger: logger}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.PushName:
		h.publish(bus.KindWAContact, Contact{
			JID:      normalizeJID(evt.JID),
			PushName: evt.NewPushName,
			Phone:    phoneOf(evt.JID),
		})
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		h.publish(bus.KindWAConnected, nil)
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		h.publish(bus.KindWADisconnected, nil)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		h.publish(bus.KindWALoggedOut, evt.Reason.String())
	}
}

func (h *EventHandler) publish(kind string, payload any) {
	h.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	chat := normalizeJID(evt.Info.Chat)
	msg := evt.Message

	if pm, ok := protocolAction(msg); ok {
		target := pm.GetKey().GetID()
		switch pm.GetType() {
		case waE2E.ProtocolMessage_REVOKE:
			h.publish(bus.KindWARevoke, Revoke{ChatJID: chat, RemoteID: target})
		case waE2E.ProtocolMessage_MESSAGE_EDIT:
			h.publish(bus.KindWAEdit, Edit{
				ChatJID:  chat,
				RemoteID: target,
				Content:  parseContent(pm.GetEditedMessage()),
				EditDate: evt.Info.Timestamp.UnixMilli(),
			})
		}
		return
	}
	if msg.GetProtocolMessage() != nil || msg.GetReactionMessage() != nil {
		h.logger.Debug("skipping non-content message", zap.String("msg_id", evt.Info.ID))
		return
	}

	h.publish(bus.KindWAMessage, ParseLiveMessage(evt))
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	var msgs []Message
	for _, conv := range data.GetConversations() {
		chatJID := normalizeJIDString(conv.GetID())
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			if wmsg.GetMessage().GetProtocolMessage() != nil {
				continue
			}
			msgs = append(msgs, Message{
				ChatJID:    chatJID,
				ChatName:   conv.GetName(),
				IsGroup:    isGroupJID(chatJID),
				RemoteID:   wmsg.GetKey().GetID(),
				SenderJID:  normalizeJIDString(wmsg.GetKey().GetParticipant()),
				SenderName: wmsg.GetPushName(),
				Content:    parseContent(wmsg.GetMessage()),
				FromMe:     wmsg.GetKey().GetFromMe(),
				ReplyTo:    quotedID(wmsg.GetMessage()),
				Timestamp:  int64(wmsg.GetMessageTimestamp()) * 1000,
			})
		}
	}

	if len(msgs) > 0 {
		h.publish(bus.KindWAHistoryBatch, msgs)
	}
}

func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	if evt.IsFromMe || (evt.Type != types.ReceiptTypeRead && evt.Type != types.ReceiptTypeReadSelf) {
		return
	}
	ids := make([]string, len(evt.MessageIDs))
	for i, id := range evt.MessageIDs {
		ids[i] = string(id)
	}
	h.publish(bus.KindWAReadReceipt, Receipt{
		ChatJID:   normalizeJID(evt.Chat),
		RemoteIDs: ids,
		Timestamp: evt.Timestamp.UnixMilli(),
	})
}

// ParseLiveMessage normalizes a live whatsmeow message event.
func ParseLiveMessage(evt *events.Message) Message {
	chat := normalizeJID(evt.Info.Chat)
	m := Message{
		ChatJID:    chat,
		IsGroup:    evt.Info.IsGroup,
		RemoteID:   evt.Info.ID,
		SenderJID:  normalizeJID(evt.Info.Sender),
		SenderName: evt.Info.PushName,
		Content:    parseContent(evt.Message),
		FromMe:     evt.Info.IsFromMe,
		ReplyTo:    quotedID(evt.Message),
		Timestamp:  evt.Info.Timestamp.UnixMilli(),
	}
	if !m.IsGroup && !m.FromMe {
		m.ChatName = evt.Info.PushName
	}
	return m
}

func phoneOf(jid types.JID) string {
	if jid.Server != types.DefaultUserServer {
		return ""
	}
	return "+" + jid.User
}
