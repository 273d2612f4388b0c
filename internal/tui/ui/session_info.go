package ui

import (
	"fmt"
	"time"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/rivo/tview"
)

// SessionInfo displays daemon status in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the status. A nil status means the daemon is unreachable.
func (si *SessionInfo) Update(st *api.Status) {
	si.Clear()
	fg := Tag(si.theme.FgColor)
	ct := Tag(si.theme.CounterColor)
	if st == nil {
		_, _ = fmt.Fprintf(si, "[%s]daemon unreachable[-]", Tag(si.theme.FailedColor))
		return
	}

	phone := st.PhoneNumber
	if phone == "" {
		phone = "-"
	}
	uptime := formatDuration(time.Duration(st.UptimeMs) * time.Millisecond)

	_, _ = fmt.Fprintf(si,
		"[%s::b]%s[-:-:-] [%s](%s)[-]  [%s]%s[-]  phone [%s]%s[-]  chats [%s]%d[-]  notifications [%s]%d[-]  up [%s]%s[-]",
		fg, st.Session, fg, st.Backend,
		ct, st.Auth.State,
		ct, phone,
		ct, st.ChatCount,
		ct, st.Notifications,
		ct, uptime,
	)
	if st.DroppedEvents > 0 {
		_, _ = fmt.Fprintf(si, "  [%s]dropped %d[-]", Tag(si.theme.FlashWarnColor), st.DroppedEvents)
	}
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
