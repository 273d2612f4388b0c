package feed

import (
	"encoding/json"
	"fmt"
)

// Content is the closed set of message payloads.
type Content interface {
	ContentType() string
}

type Text struct {
	Text string `json:"text"`
}

type Photo struct {
	Caption string `json:"caption,omitempty"`
	Width   int32  `json:"width,omitempty"`
	Height  int32  `json:"height,omitempty"`
	FileRef string `json:"file_ref,omitempty"`
}

type Audio struct {
	Title    string `json:"title,omitempty"`
	Duration int32  `json:"duration,omitempty"`
	FileRef  string `json:"file_ref,omitempty"`
}

type VoiceNote struct {
	Duration int32  `json:"duration,omitempty"`
	FileRef  string `json:"file_ref,omitempty"`
}

type Video struct {
	Caption  string `json:"caption,omitempty"`
	Duration int32  `json:"duration,omitempty"`
	FileRef  string `json:"file_ref,omitempty"`
}

type VideoNote struct {
	Duration int32  `json:"duration,omitempty"`
	FileRef  string `json:"file_ref,omitempty"`
}

type Sticker struct {
	Emoji   string `json:"emoji,omitempty"`
	FileRef string `json:"file_ref,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Document struct {
	FileName string `json:"file_name,omitempty"`
	Caption  string `json:"caption,omitempty"`
	FileRef  string `json:"file_ref,omitempty"`
}

type Animation struct {
	Caption string `json:"caption,omitempty"`
	FileRef string `json:"file_ref,omitempty"`
}

type AnimatedEmoji struct {
	Emoji string `json:"emoji"`
}

// CallDiscardReason tells how a call ended.
type CallDiscardReason string

const (
	CallDiscardEmpty        CallDiscardReason = ""
	CallDiscardMissed       CallDiscardReason = "missed"
	CallDiscardDeclined     CallDiscardReason = "declined"
	CallDiscardDisconnected CallDiscardReason = "disconnected"
	CallDiscardHungUp       CallDiscardReason = "hung_up"
)

type Call struct {
	IsVideo       bool              `json:"is_video,omitempty"`
	Duration      int32             `json:"duration,omitempty"`
	DiscardReason CallDiscardReason `json:"discard_reason,omitempty"`
}

type Poll struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

// Service covers chat service events (member joined, title changed, ...).
type Service struct {
	Action string `json:"action"`
	Text   string `json:"text,omitempty"`
}

// Unsupported is any payload this client cannot show.
type Unsupported struct {
	Kind string `json:"kind,omitempty"`
}

func (Text) ContentType() string          { return "text" }
func (Photo) ContentType() string         { return "photo" }
func (Audio) ContentType() string         { return "audio" }
func (VoiceNote) ContentType() string     { return "voice_note" }
func (Video) ContentType() string         { return "video" }
func (VideoNote) ContentType() string     { return "video_note" }
func (Sticker) ContentType() string       { return "sticker" }
func (Location) ContentType() string      { return "location" }
func (Document) ContentType() string      { return "document" }
func (Animation) ContentType() string     { return "animation" }
func (AnimatedEmoji) ContentType() string { return "animated_emoji" }
func (Call) ContentType() string          { return "call" }
func (Poll) ContentType() string          { return "poll" }
func (Contact) ContentType() string       { return "contact" }
func (Service) ContentType() string       { return "service" }
func (Unsupported) ContentType() string   { return "unsupported" }

// Summary renders content as one line of text for chat previews and notifications.
func Summary(c Content) string {
	switch c := c.(type) {
	case Text:
		return c.Text
	case Audio:
		return "Audio"
	case Call:
		if r := discardReasonText(c.DiscardReason); r != "" {
			return r + " Call"
		}
		return "Call"
	case VoiceNote:
		return "Voice note"
	case Animation:
		return "GIF"
	case AnimatedEmoji:
		return c.Emoji
	case Photo:
		return withCaption("Photo", c.Caption)
	case Video:
		return withCaption("Video", c.Caption)
	case VideoNote:
		return "Video note"
	case Location:
		return "Location"
	case Contact:
		return "Contact"
	case Document:
		return withCaption("Document", c.Caption)
	case Poll:
		return "Poll"
	case Sticker:
		if c.Emoji == "" {
			return "Sticker"
		}
		return c.Emoji + " Sticker"
	case Service:
		if c.Text != "" {
			return c.Text
		}
		return c.Action
	default:
		return "Unsupported message"
	}
}

func withCaption(label, caption string) string {
	if caption == "" {
		return label
	}
	return label + ": " + caption
}

func discardReasonText(r CallDiscardReason) string {
	switch r {
	case CallDiscardDeclined:
		return "Declined"
	case CallDiscardMissed:
		return "Missed"
	case CallDiscardDisconnected:
		return "Disconnected"
	case CallDiscardHungUp:
		return "Hung Up"
	default:
		return ""
	}
}

type contentEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalContent encodes content with a type discriminator.
func MarshalContent(c Content) ([]byte, error) {
	if c == nil {
		c = Unsupported{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", c.ContentType(), err)
	}
	return json.Marshal(contentEnvelope{Type: c.ContentType(), Data: data})
}

// UnmarshalContent decodes content written by MarshalContent. Unknown
// discriminators decode to Unsupported rather than failing.
func UnmarshalContent(b []byte) (Content, error) {
	var env contentEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal content envelope: %w", err)
	}
	switch env.Type {
	case "text":
		return decodeContent[Text](env.Data)
	case "photo":
		return decodeContent[Photo](env.Data)
	case "audio":
		return decodeContent[Audio](env.Data)
	case "voice_note":
		return decodeContent[VoiceNote](env.Data)
	case "video":
		return decodeContent[Video](env.Data)
	case "video_note":
		return decodeContent[VideoNote](env.Data)
	case "sticker":
		return decodeContent[Sticker](env.Data)
	case "location":
		return decodeContent[Location](env.Data)
	case "document":
		return decodeContent[Document](env.Data)
	case "animation":
		return decodeContent[Animation](env.Data)
	case "animated_emoji":
		return decodeContent[AnimatedEmoji](env.Data)
	case "call":
		return decodeContent[Call](env.Data)
	case "poll":
		return decodeContent[Poll](env.Data)
	case "contact":
		return decodeContent[Contact](env.Data)
	case "service":
		return decodeContent[Service](env.Data)
	case "unsupported":
		return decodeContent[Unsupported](env.Data)
	default:
		return Unsupported{Kind: env.Type}, nil
	}
}

func decodeContent[T Content](data json.RawMessage) (Content, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s content: %w", v.ContentType(), err)
	}
	return v, nil
}

type messageJSON Message

type messageWire struct {
	messageJSON
	Content json.RawMessage `json:"content,omitempty"`
}

// MarshalJSON includes the content union with its discriminator.
func (m Message) MarshalJSON() ([]byte, error) {
	content, err := MarshalContent(m.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageWire{messageJSON: messageJSON(m), Content: content})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w messageWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Message(w.messageJSON)
	if len(w.Content) == 0 {
		m.Content = Unsupported{}
		return nil
	}
	c, err := UnmarshalContent(w.Content)
	if err != nil {
		return err
	}
	m.Content = c
	return nil
}
