package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the open chat's history and a composer. One message
// is always selected so it can be replied to, retried or deleted.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	title    string
	// page.Messages is newest first; cursor indexes into it.
	page    *api.HistoryPage
	cursor  int
	replyTo feed.MessageID
	onSend  func(text string, replyTo feed.MessageID)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}
	mt.setComposerTitle()

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := composer.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		mt.onSend(text, mt.replyTo)
		composer.SetText("")
		mt.CancelReply()
	})

	return mt
}

func (mt *MessageThread) Name() string {
	if mt.title != "" {
		return mt.title
	}
	return "Messages"
}

// SetOnSend sets the callback run when the composer submits text.
func (mt *MessageThread) SetOnSend(fn func(text string, replyTo feed.MessageID)) {
	mt.onSend = fn
}

// Update renders a history page under title. The selection follows the
// selected message id across updates; a new chat starts at the newest.
func (mt *MessageThread) Update(title string, page *api.HistoryPage) {
	keep, _ := mt.SelectedMessage()
	if page == nil || mt.page == nil || page.ChatID != mt.page.ChatID {
		keep = api.Message{}
		mt.replyTo = 0
		mt.setComposerTitle()
	}
	mt.title = title
	mt.page = page
	mt.cursor = 0
	if keep.ID != 0 {
		for i, m := range mt.loaded() {
			if m.ID == keep.ID {
				mt.cursor = i
				break
			}
		}
	}
	mt.render()
}

func (mt *MessageThread) loaded() []api.Message {
	if mt.page == nil {
		return nil
	}
	return mt.page.Messages
}

func (mt *MessageThread) render() {
	mt.messages.Clear()
	msgs := mt.loaded()
	mt.messages.SetTitle(fmt.Sprintf(" %s (%d) ", cellText(mt.Name()), len(msgs)))

	var b strings.Builder
	if mt.page != nil {
		switch {
		case mt.page.BackfillError != "":
			fmt.Fprintf(&b, "[%s]older messages unavailable: %s[-]\n\n", ui.Tag(mt.theme.FailedColor), cellText(mt.page.BackfillError))
		case mt.page.Exhausted:
			b.WriteString("[::d]beginning of history[-:-:-]\n\n")
		default:
			b.WriteString("[::d]press p for older messages[-:-:-]\n\n")
		}
	}

	now := time.Now()
	byID := make(map[feed.MessageID]api.Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		fmt.Fprintf(&b, `["m%d"]`, i)
		fmt.Fprintf(&b, "[::b]%s[-:-:-] [::d]%s[-:-:-]", cellText(sender(m)), stamp(m.Date, now))
		if m.EditDate != 0 {
			b.WriteString(" [::d](edited)[-:-:-]")
		}
		if mark := deliveryMark(m); mark != "" {
			color := mt.theme.PendingColor
			if m.SendingState == feed.SendingFailed {
				color = mt.theme.FailedColor
			}
			fmt.Fprintf(&b, " [%s]%s[-]", ui.Tag(color), cellText(mark))
		}
		b.WriteString("\n")
		if m.ReplyToMessageID != 0 {
			quoted := "message not loaded"
			if r, ok := byID[m.ReplyToMessageID]; ok {
				quoted = sender(r) + ": " + r.Text
			}
			fmt.Fprintf(&b, "[::d]| %s[-:-:-]\n", cellText(truncate(quoted, 60)))
		}
		if m.ContentType != "" && m.ContentType != "text" {
			fmt.Fprintf(&b, "[::i][%s][-:-:-] ", tview.Escape(m.ContentType))
		}
		b.WriteString(bodyText(m.Text))
		b.WriteString(`[""]`)
		b.WriteString("\n\n")
	}
	_, _ = fmt.Fprint(mt.messages, b.String())

	if len(msgs) > 0 {
		mt.messages.Highlight(fmt.Sprintf("m%d", mt.cursor))
		mt.messages.ScrollToHighlight()
	} else {
		mt.messages.Highlight()
	}
}

// Older moves the selection one message back in time. It reports false at
// the oldest loaded message.
func (mt *MessageThread) Older() bool {
	if mt.cursor+1 >= len(mt.loaded()) {
		return false
	}
	mt.cursor++
	mt.render()
	return true
}

// Newer moves the selection one message forward in time.
func (mt *MessageThread) Newer() bool {
	if mt.cursor == 0 {
		return false
	}
	mt.cursor--
	mt.render()
	return true
}

// SelectedMessage returns the highlighted message.
func (mt *MessageThread) SelectedMessage() (api.Message, bool) {
	msgs := mt.loaded()
	if mt.cursor < 0 || mt.cursor >= len(msgs) {
		return api.Message{}, false
	}
	return msgs[mt.cursor], true
}

// ReplyToSelected makes the next sent message a reply to the selection.
func (mt *MessageThread) ReplyToSelected() bool {
	m, ok := mt.SelectedMessage()
	if !ok || m.IsPending() {
		return false
	}
	mt.replyTo = m.ID
	mt.setComposerTitle()
	return true
}

func (mt *MessageThread) CancelReply() {
	mt.replyTo = 0
	mt.setComposerTitle()
}

func (mt *MessageThread) setComposerTitle() {
	if mt.replyTo != 0 {
		mt.composer.SetTitle(fmt.Sprintf(" Reply to %d (Esc cancels) ", mt.replyTo))
		return
	}
	mt.composer.SetTitle(" Compose (i to focus) ")
}

// Messages returns the history text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
