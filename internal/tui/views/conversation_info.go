package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays detailed information about a chat.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Chat Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

func (ci *ConversationInfo) Name() string { return "Details" }

// Update renders chat details.
func (ci *ConversationInfo) Update(chat api.Chat) {
	ci.Clear()

	type row struct{ label, value string }
	rows := []row{
		{"Title", cellText(chat.Title)},
		{"ID", fmt.Sprint(chat.ID)},
		{"Type", string(chat.Type)},
		{"Unread", fmt.Sprint(chat.UnreadCount)},
		{"Mentions", fmt.Sprint(chat.UnreadMentionCount)},
		{"Muted", muted(chat.NotificationSettings)},
	}
	if pos, ok := feed.MainPosition(chat.Positions); ok {
		rows = append(rows, row{"Pinned", yesNo(pos.IsPinned)})
	} else {
		rows = append(rows, row{"Pinned", "not in main list"})
	}
	rows = append(rows, row{"Can send", yesNo(chat.Permissions.CanSendMessages)})
	if chat.LastMessage != nil {
		rows = append(rows, row{"Last active", time.Unix(chat.LastMessage.Date, 0).Format(time.DateTime)})
	}
	rows = append(rows, row{"Last message", cellText(chat.LastText)})
	if chat.Draft != nil && chat.Draft.Text != "" {
		rows = append(rows, row{"Draft", cellText(chat.Draft.Text)})
	}

	fg := ui.Tag(ci.theme.FgColor)
	ct := ui.Tag(ci.theme.CounterColor)
	var b strings.Builder
	b.WriteString("\n")
	for _, r := range rows {
		fmt.Fprintf(&b, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", fg, r.label+":", ct, r.value)
	}
	_, _ = fmt.Fprint(ci, b.String())
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(chat.Title)))
}

func muted(s feed.NotificationSettings) string {
	if s.UseDefaultMuteFor {
		return "default"
	}
	if s.MuteFor > 0 {
		return (time.Duration(s.MuteFor) * time.Second).String()
	}
	return "no"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
