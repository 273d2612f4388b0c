package views

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/rivo/tview"
)

// cellText prepares backend text for a tview cell: it drops the code points
// tcell draws with the wrong width and escapes color tags.
func cellText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		case r == 0x200D: // zero width joiner
		case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF: // variation selectors
		case r == '\n', r == '\r':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return tview.Escape(b.String())
}

// bodyText is cellText that keeps line breaks.
func bodyText(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = cellText(l)
	}
	return strings.Join(lines, "\n")
}

// stamp formats a unix time in seconds: clock time today, date otherwise.
func stamp(sec int64, now time.Time) string {
	if sec == 0 {
		return ""
	}
	t := time.Unix(sec, 0).In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 02")
	}
	return t.Format("2006-01-02")
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func chatKind(t feed.ChatType) string {
	switch t {
	case feed.ChatTypeBasicGroup, feed.ChatTypeSupergroup:
		return "GROUP"
	case feed.ChatTypeSecret:
		return "SECRET"
	}
	return "DM"
}

// sender names the author of m as the thread shows it.
func sender(m api.Message) string {
	switch {
	case m.IsOutgoing:
		return "You"
	case m.SenderName != "":
		return m.SenderName
	case m.Sender.UserID != 0:
		return fmt.Sprintf("user %d", m.Sender.UserID)
	}
	return "unknown"
}

// deliveryMark is the suffix shown after an outgoing message.
func deliveryMark(m api.Message) string {
	switch m.SendingState {
	case feed.SendingPending:
		return "sending"
	case feed.SendingFailed:
		if m.SendError != nil && m.SendError.Message != "" {
			return "failed: " + m.SendError.Message
		}
		return "failed"
	}
	return ""
}
