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

// ConversationList is the main chat list view.
type ConversationList struct {
	*tview.Table
	theme  *ui.Theme
	chats  []api.Chat
	more   bool
	filter string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{
		Table: table,
		theme: theme,
	}
	cl.render()
	return cl
}

func (cl *ConversationList) Name() string { return "Chats" }

// Update replaces the chats, which arrive in main list order. more tells
// whether the daemon can load further chats.
func (cl *ConversationList) Update(chats []api.Chat, more bool) {
	selected := cl.SelectedChat()
	cl.chats = chats
	cl.more = more
	cl.render()
	cl.selectChat(selected)
}

func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = strings.TrimSpace(filter)
	cl.render()
	cl.Select(1, 0)
}

func (cl *ConversationList) ClearFilter() { cl.SetFilter("") }

func (cl *ConversationList) Filter() string { return cl.filter }

func (cl *ConversationList) visible() []api.Chat {
	if cl.filter == "" {
		return cl.chats
	}
	var out []api.Chat
	for _, c := range cl.chats {
		if containsFold(c.Title, cl.filter) || containsFold(c.LastText, cl.filter) {
			out = append(out, c)
		}
	}
	return out
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" TYPE", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	now := time.Now()
	rows := cl.visible()
	for i, chat := range rows {
		row := i + 1
		name := cellText(chat.Title)
		if name == "" {
			name = fmt.Sprintf("chat %d", chat.ID)
		}
		fg := cl.theme.FgColor
		if chat.UnreadCount > 0 || chat.IsMarkedAsUnread {
			fg = cl.theme.UnreadColor
			name = fmt.Sprintf("(%d) %s", chat.UnreadCount, name)
		}
		if pos, ok := feed.MainPosition(chat.Positions); ok && pos.IsPinned {
			name = "* " + name
		}
		var when int64
		if chat.LastMessage != nil {
			when = chat.LastMessage.Date
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+name).SetExpansion(1).SetTextColor(fg))
		cl.SetCell(row, 1, tview.NewTableCell(" "+cellText(chat.LastText)).SetExpansion(2).SetMaxWidth(60).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+stamp(when, now)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(" "+chatKind(chat.Type)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	more := ""
	if cl.more {
		more = "+"
	}
	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Chats (%d/%d%s) filter: %s ", len(rows), len(cl.chats), more, tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Chats (%d%s) ", len(cl.chats), more))
	}
}

// SelectedChat returns the id of the highlighted chat, or 0.
func (cl *ConversationList) SelectedChat() feed.ChatID {
	row, _ := cl.GetSelection()
	return cl.ChatByIndex(row)
}

// ChatByIndex returns the id of the nth visible chat (1-based), or 0.
func (cl *ConversationList) ChatByIndex(n int) feed.ChatID {
	rows := cl.visible()
	if n < 1 || n > len(rows) {
		return 0
	}
	return rows[n-1].ID
}

func (cl *ConversationList) selectChat(id feed.ChatID) {
	for i, c := range cl.visible() {
		if c.ID == id {
			cl.Select(i+1, 0)
			return
		}
	}
	if cl.GetRowCount() > 1 {
		row, _ := cl.GetSelection()
		if row < 1 || row >= cl.GetRowCount() {
			cl.Select(1, 0)
		}
	}
}
