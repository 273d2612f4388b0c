package wa

import (
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/matheus3301/wgram/internal/bus"
	"github.com/matheus3301/wgram/internal/feed"
)

func receive(t *testing.T, ch <-chan bus.Event, kind string) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		if evt.Kind != kind {
			t.Fatalf("event kind = %q, want %s", evt.Kind, kind)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %s event", kind)
	}
	return bus.Event{}
}

func TestConnectionEvents(t *testing.T) {
	tests := []struct {
		evt  any
		kind string
	}{
		{&events.Connected{}, bus.KindWAConnected},
		{&events.Disconnected{}, bus.KindWADisconnected},
		{&events.LoggedOut{}, bus.KindWALoggedOut},
	}
	for _, tt := range tests {
		b := bus.New()
		ch, unsub := b.Subscribe("wa.", 10)
		NewEventHandler(b, nil).Handle(tt.evt)
		receive(t, ch, tt.kind)
		unsub()
	}
}

func TestHandleMessagePublishesParsed(t *testing.T) {
	b := bus.New()
	h := NewEventHandler(b, nil)
	ch, unsub := b.Subscribe("wa.", 10)
	defer unsub()

	h.Handle(&events.Message{
		Info: types.MessageInfo{
			ID:        "m1",
			Timestamp: time.Now(),
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "558592403672", Server: "s.whatsapp.net", Device: 1},
				Sender: types.JID{User: "558592403672", Server: "s.whatsapp.net", Device: 3},
			},
		},
		Message: &waE2E.Message{Conversation: proto.String("hello")},
	})

	evt := receive(t, ch, bus.KindWAMessage)
	msg, ok := evt.Payload.(Message)
	if !ok {
		t.Fatalf("payload type = %T, want Message", evt.Payload)
	}
	if msg.ChatJID != "558592403672@s.whatsapp.net" {
		t.Errorf("ChatJID = %q (device suffix not stripped)", msg.ChatJID)
	}
}

func TestProtocolMessages(t *testing.T) {
	info := types.MessageInfo{
		ID:            "p1",
		Timestamp:     time.UnixMilli(5000),
		MessageSource: types.MessageSource{Chat: types.JID{User: "c", Server: types.DefaultUserServer}},
	}

	t.Run("revoke", func(t *testing.T) {
		b := bus.New()
		ch, unsub := b.Subscribe("wa.", 10)
		defer unsub()
		NewEventHandler(b, nil).Handle(&events.Message{Info: info, Message: &waE2E.Message{
			ProtocolMessage: &waE2E.ProtocolMessage{
				Type: waE2E.ProtocolMessage_REVOKE.Enum(),
				Key:  &waCommon.MessageKey{ID: proto.String("target")},
			},
		}})
		evt := receive(t, ch, bus.KindWARevoke)
		if r := evt.Payload.(Revoke); r.RemoteID != "target" || r.ChatJID != "c@s.whatsapp.net" {
			t.Errorf("revoke = %+v", r)
		}
	})

	t.Run("edit", func(t *testing.T) {
		b := bus.New()
		ch, unsub := b.Subscribe("wa.", 10)
		defer unsub()
		NewEventHandler(b, nil).Handle(&events.Message{Info: info, Message: &waE2E.Message{
			ProtocolMessage: &waE2E.ProtocolMessage{
				Type:          waE2E.ProtocolMessage_MESSAGE_EDIT.Enum(),
				Key:           &waCommon.MessageKey{ID: proto.String("target")},
				EditedMessage: &waE2E.Message{Conversation: proto.String("fixed")},
			},
		}})
		evt := receive(t, ch, bus.KindWAEdit)
		e := evt.Payload.(Edit)
		if e.RemoteID != "target" || e.Content != (feed.Text{Text: "fixed"}) || e.EditDate != 5000 {
			t.Errorf("edit = %+v", e)
		}
	})

	t.Run("reaction is skipped", func(t *testing.T) {
		b := bus.New()
		ch, unsub := b.Subscribe("wa.", 10)
		defer unsub()
		NewEventHandler(b, nil).Handle(&events.Message{Info: info, Message: &waE2E.Message{
			ReactionMessage: &waE2E.ReactionMessage{Text: proto.String("👍")},
		}})
		select {
		case evt := <-ch:
			t.Errorf("unexpected event %s", evt.Kind)
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestHandleHistorySync(t *testing.T) {
	b := bus.New()
	h := NewEventHandler(b, nil)
	ch, unsub := b.Subscribe("wa.history_batch", 10)
	defer unsub()

	msgTS := uint64(time.Now().Unix())
	h.Handle(&events.HistorySync{
		Data: &waHistorySync.HistorySync{
			Conversations: []*waHistorySync.Conversation{
				{
					// Device-suffix JID.
					ID:   proto.String("558592403672:0@s.whatsapp.net"),
					Name: proto.String("Eric"),
					Messages: []*waHistorySync.HistorySyncMsg{
						{
							Message: &waWeb.WebMessageInfo{
								Key: &waCommon.MessageKey{
									ID:          proto.String("hm1"),
									FromMe:      proto.Bool(false),
									RemoteJID:   proto.String("558592403672:0@s.whatsapp.net"),
									Participant: proto.String("558592403672:2@s.whatsapp.net"),
								},
								MessageTimestamp: &msgTS,
								Message:          &waE2E.Message{Conversation: proto.String("hello")},
							},
						},
						{
							// Protocol messages never reach the store.
							Message: &waWeb.WebMessageInfo{
								Key:              &waCommon.MessageKey{ID: proto.String("hm2")},
								MessageTimestamp: &msgTS,
								Message: &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
									Type: waE2E.ProtocolMessage_REVOKE.Enum(),
								}},
							},
						},
					},
				},
			},
		},
	})

	evt := receive(t, ch, bus.KindWAHistoryBatch)
	msgs, ok := evt.Payload.([]Message)
	if !ok || len(msgs) != 1 {
		t.Fatalf("history batch = %#v, want one message", evt.Payload)
	}
	m := msgs[0]
	if m.ChatJID != "558592403672@s.whatsapp.net" || m.SenderJID != "558592403672@s.whatsapp.net" {
		t.Errorf("jids = %q/%q (device suffix not stripped)", m.ChatJID, m.SenderJID)
	}
	if m.ChatName != "Eric" || m.Timestamp != int64(msgTS)*1000 {
		t.Errorf("message = %+v", m)
	}
}

func TestHandleHistorySyncNilData(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("wa.", 10)
	defer unsub()

	NewEventHandler(b, nil).Handle(&events.HistorySync{})

	select {
	case evt := <-ch:
		t.Errorf("unexpected event %s for empty history sync", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReadReceipt(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("wa.", 10)
	defer unsub()
	h := NewEventHandler(b, nil)

	chat := types.JID{User: "c", Server: types.DefaultUserServer}
	// Our own read receipts are ignored.
	h.Handle(&events.Receipt{
		MessageSource: types.MessageSource{Chat: chat, IsFromMe: true},
		MessageIDs:    []types.MessageID{"x"},
		Type:          types.ReceiptTypeRead,
	})
	h.Handle(&events.Receipt{
		MessageSource: types.MessageSource{Chat: chat},
		MessageIDs:    []types.MessageID{"a", "b"},
		Timestamp:     time.UnixMilli(10),
		Type:          types.ReceiptTypeRead,
	})

	evt := receive(t, ch, bus.KindWAReadReceipt)
	r := evt.Payload.(Receipt)
	if r.ChatJID != "c@s.whatsapp.net" || len(r.RemoteIDs) != 2 || r.Timestamp != 10 {
		t.Errorf("receipt = %+v", r)
	}
}

// TestPushNameContactJIDNormalized verifies that PushName events produce
// contact entries with normalized JIDs (no device suffix).
func TestPushNameContactJIDNormalized(t *testing.T) {
	b := bus.New()
	h := NewEventHandler(b, nil)

	ch, unsub := b.Subscribe("wa.contact", 10)
	defer unsub()

	h.Handle(&events.PushName{
		JID:         types.JID{User: "558592403672", Server: "s.whatsapp.net", Device: 5},
		NewPushName: "Eric",
	})

	evt := receive(t, ch, bus.KindWAContact)
	contact, ok := evt.Payload.(Contact)
	if !ok {
		t.Fatalf("payload type = %T, want Contact", evt.Payload)
	}
	if contact.JID != "558592403672@s.whatsapp.net" {
		t.Errorf("JID = %q, want 558592403672@s.whatsapp.net (device suffix not stripped)", contact.JID)
	}
	if contact.PushName != "Eric" || contact.Phone != "+558592403672" {
		t.Errorf("contact = %+v", contact)
	}
}
