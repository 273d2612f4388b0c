package wa

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"

	"github.com/matheus3301/wgram/internal/feed"
)

// Message is a normalized inbound message, the payload of "wa.message" and,
// in batches, "wa.history_batch".
type Message struct {
	ChatJID    string
	ChatName   string
	IsGroup    bool
	RemoteID   string
	SenderJID  string
	SenderName string
	Content    feed.Content
	FromMe     bool
	ReplyTo    string // remote id of the quoted message
	Timestamp  int64  // unix millis
}

// Revoke is the payload of "wa.revoke": a message deleted for everyone.
type Revoke struct {
	ChatJID  string
	RemoteID string
}

// Edit is the payload of "wa.edit".
type Edit struct {
	ChatJID  string
	RemoteID string
	Content  feed.Content
	EditDate int64
}

// Receipt is the payload of "wa.read_receipt": the peer read our messages.
type Receipt struct {
	ChatJID   string
	RemoteIDs []string
	Timestamp int64
}

// Contact is the payload of "wa.contact" and, in batches, "wa.contacts".
type Contact struct {
	JID      string
	Name     string
	PushName string
	Phone    string
}

// normalizeJID strips the device part so every device of a user maps to one chat.
func normalizeJID(jid types.JID) string {
	if jid.IsEmpty() {
		return ""
	}
	return jid.ToNonAD().String()
}

func normalizeJIDString(s string) string {
	if s == "" {
		return ""
	}
	jid, err := types.ParseJID(s)
	if err != nil {
		return s
	}
	return normalizeJID(jid)
}

func isGroupJID(s string) bool {
	jid, err := types.ParseJID(s)
	return err == nil && jid.Server == types.GroupServer
}

// parseContent maps a WhatsApp message payload onto feed content.
func parseContent(msg *waE2E.Message) feed.Content {
	if msg == nil {
		return feed.Unsupported{Kind: "empty"}
	}
	switch {
	case msg.GetConversation() != "":
		return feed.Text{Text: msg.GetConversation()}
	case msg.GetExtendedTextMessage() != nil:
		return feed.Text{Text: msg.GetExtendedTextMessage().GetText()}
	case msg.GetImageMessage() != nil:
		im := msg.GetImageMessage()
		return feed.Photo{Caption: im.GetCaption(), Width: int32(im.GetWidth()), Height: int32(im.GetHeight())}
	case msg.GetVideoMessage() != nil:
		vm := msg.GetVideoMessage()
		if vm.GetGifPlayback() {
			return feed.Animation{Caption: vm.GetCaption()}
		}
		return feed.Video{Caption: vm.GetCaption(), Duration: int32(vm.GetSeconds())}
	case msg.GetAudioMessage() != nil:
		am := msg.GetAudioMessage()
		if am.GetPTT() {
			return feed.VoiceNote{Duration: int32(am.GetSeconds())}
		}
		return feed.Audio{Duration: int32(am.GetSeconds())}
	case msg.GetDocumentMessage() != nil:
		dm := msg.GetDocumentMessage()
		return feed.Document{FileName: dm.GetFileName(), Caption: dm.GetCaption()}
	case msg.GetStickerMessage() != nil:
		return feed.Sticker{}
	case msg.GetContactMessage() != nil:
		return feed.Contact{FirstName: msg.GetContactMessage().GetDisplayName()}
	case msg.GetLocationMessage() != nil:
		lm := msg.GetLocationMessage()
		return feed.Location{Latitude: lm.GetDegreesLatitude(), Longitude: lm.GetDegreesLongitude()}
	case msg.GetPollCreationMessage() != nil:
		pm := msg.GetPollCreationMessage()
		p := feed.Poll{Question: pm.GetName()}
		for _, o := range pm.GetOptions() {
			p.Options = append(p.Options, o.GetOptionName())
		}
		return p
	default:
		return feed.Unsupported{Kind: "unknown"}
	}
}

func quotedID(msg *waE2E.Message) string {
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetContextInfo().GetStanzaID()
	}
	return ""
}

// protocolAction classifies revoke and edit protocol messages. ok is false for
// ordinary messages.
func protocolAction(msg *waE2E.Message) (pm *waE2E.ProtocolMessage, ok bool) {
	pm = msg.GetProtocolMessage()
	if pm == nil {
		return nil, false
	}
	switch pm.GetType() {
	case waE2E.ProtocolMessage_REVOKE, waE2E.ProtocolMessage_MESSAGE_EDIT:
		return pm, true
	}
	return nil, false
}
