package views

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/auth"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/notify"
	"github.com/matheus3301/wgram/internal/tui/ui"
)

func TestCellText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"\U0001F44D\U0001F3FB", "\U0001F44D"},
		{"a\u200db", "ab"},
		{"two\nlines", "two lines"},
		{"[red]x", "[red[]x"},
	}
	for _, tt := range tests {
		if got := cellText(tt.in); got != tt.want {
			t.Errorf("cellText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStamp(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-time.Hour), "14:00"},
		{now.AddDate(0, 0, -2), "Mar 08"},
		{now.AddDate(-1, 0, 0), "2025-03-10"},
	}
	for _, tt := range tests {
		if got := stamp(tt.at.Unix(), now); got != tt.want {
			t.Errorf("stamp(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
	if got := stamp(0, now); got != "" {
		t.Errorf("stamp(0) = %q, want empty", got)
	}
}

func TestDeliveryMark(t *testing.T) {
	m := api.Message{Message: feed.Message{IsOutgoing: true, SendingState: feed.SendingFailed, SendError: &feed.SendError{Code: 400, Message: "too long"}}}
	if got := deliveryMark(m); got != "failed: too long" {
		t.Errorf("deliveryMark() = %q", got)
	}
	m.SendingState = feed.SendingPending
	if got := deliveryMark(m); got != "sending" {
		t.Errorf("deliveryMark() = %q", got)
	}
	m.SendingState = feed.SendingAcknowledged
	if got := deliveryMark(m); got != "" {
		t.Errorf("deliveryMark() = %q", got)
	}
}

func testChats() []api.Chat {
	return []api.Chat{
		{Chat: feed.Chat{ID: 3, Title: "Ana", Type: feed.ChatTypePrivate, UnreadCount: 2}, LastText: "see you"},
		{Chat: feed.Chat{ID: 5, Title: "Climbing", Type: feed.ChatTypeSupergroup}, LastText: "rope?"},
		{Chat: feed.Chat{ID: 9, Title: "Bruno", Type: feed.ChatTypePrivate}, LastText: "climbing tomorrow"},
	}
}

func TestConversationListFilter(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update(testChats(), false)

	if got := cl.SelectedChat(); got != 3 {
		t.Errorf("initial selection = %d, want 3", got)
	}
	cl.SetFilter("climb")
	if got := cl.ChatByIndex(1); got != 5 {
		t.Errorf("ChatByIndex(1) = %d, want 5", got)
	}
	if got := cl.ChatByIndex(2); got != 9 {
		t.Errorf("ChatByIndex(2) = %d, want 9 (matches last message)", got)
	}
	if got := cl.ChatByIndex(3); got != 0 {
		t.Errorf("ChatByIndex(3) = %d, want 0", got)
	}
	cl.ClearFilter()
	if got := cl.GetRowCount(); got != 4 {
		t.Errorf("rows = %d, want header + 3", got)
	}
}

func TestConversationListKeepsSelection(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update(testChats(), true)
	cl.Select(2, 0)

	reordered := testChats()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	cl.Update(reordered, true)
	if got := cl.SelectedChat(); got != 5 {
		t.Errorf("selection after reorder = %d, want 5", got)
	}
	if !strings.Contains(cl.GetTitle(), "3+") {
		t.Errorf("title = %q, want more marker", cl.GetTitle())
	}
}

func testPage(chat feed.ChatID) *api.HistoryPage {
	return &api.HistoryPage{ChatID: chat, Messages: []api.Message{
		{Message: feed.Message{ID: 30, ChatID: chat, IsOutgoing: true, SendingState: feed.SendingPending}, Text: "on my way"},
		{Message: feed.Message{ID: 20, ChatID: chat, ReplyToMessageID: 10}, Text: "where are you", SenderName: "Ana"},
		{Message: feed.Message{ID: 10, ChatID: chat}, Text: "hi", SenderName: "Ana"},
	}}
}

func TestMessageThreadSelection(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme())
	mt.Update("Ana", testPage(3))

	m, ok := mt.SelectedMessage()
	if !ok || m.ID != 30 {
		t.Fatalf("initial selection = %d, want newest", m.ID)
	}
	if mt.ReplyToSelected() {
		t.Error("replying to a pending message should be refused")
	}
	if mt.Newer() {
		t.Error("Newer at the newest message should report false")
	}
	mt.Older()
	mt.Older()
	if mt.Older() {
		t.Error("Older at the oldest message should report false")
	}
	if m, _ := mt.SelectedMessage(); m.ID != 10 {
		t.Errorf("selection = %d, want 10", m.ID)
	}

	// A refresh of the same chat keeps the selected message.
	page := testPage(3)
	page.Messages = append([]api.Message{{Message: feed.Message{ID: 40, ChatID: 3}, Text: "new"}}, page.Messages...)
	mt.Update("Ana", page)
	if m, _ := mt.SelectedMessage(); m.ID != 10 {
		t.Errorf("selection after refresh = %d, want 10", m.ID)
	}

	// Another chat starts at its newest message.
	mt.Update("Bruno", testPage(9))
	if m, _ := mt.SelectedMessage(); m.ID != 30 {
		t.Errorf("selection in new chat = %d, want 30", m.ID)
	}
}

func TestMessageThreadReply(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme())
	mt.Update("Ana", testPage(3))
	mt.Older()

	var sent string
	var replyTo feed.MessageID
	mt.SetOnSend(func(text string, r feed.MessageID) { sent, replyTo = text, r })

	if !mt.ReplyToSelected() {
		t.Fatal("ReplyToSelected should accept a delivered message")
	}
	if !strings.Contains(mt.Composer().GetTitle(), "20") {
		t.Errorf("composer title = %q", mt.Composer().GetTitle())
	}
	mt.onSend("ok", mt.replyTo)
	if sent != "ok" || replyTo != 20 {
		t.Errorf("sent %q reply to %d", sent, replyTo)
	}
	mt.CancelReply()
	if mt.replyTo != 0 {
		t.Error("CancelReply should clear the reply target")
	}
}

func TestAuthQuestion(t *testing.T) {
	tests := []struct {
		state  auth.State
		ok     bool
		secret bool
	}{
		{auth.WaitPhoneNumber, true, false},
		{auth.InvalidCode, true, false},
		{auth.WaitPassword, true, true},
		{auth.WaitOtherDeviceConfirmation, false, false},
		{auth.Authorized, false, false},
	}
	for _, tt := range tests {
		q, ok := AuthQuestion(tt.state)
		if ok != tt.ok || q.Secret != tt.secret {
			t.Errorf("AuthQuestion(%s) = %+v, %v", tt.state, q, ok)
		}
	}
}

func TestAuthViewRendersLink(t *testing.T) {
	av := NewAuthView(ui.DefaultTheme())
	av.Update(auth.Snapshot{State: auth.WaitOtherDeviceConfirmation, Link: "wgram://link/abc"})
	text := av.GetText(true)
	if !strings.Contains(text, "WAIT_OTHER_DEVICE_CONFIRMATION") || !strings.Contains(text, "█") {
		t.Errorf("auth view text = %q", text)
	}
}

func TestSearchViewSelection(t *testing.T) {
	sv := NewSearchView(ui.DefaultTheme(), func(id feed.ChatID) string {
		if id == 3 {
			return "Ana"
		}
		return ""
	})
	if _, _, ok := sv.SelectedResult(); ok {
		t.Error("empty results should select nothing")
	}
	sv.Update([]api.SearchHit{
		{Message: api.Message{Message: feed.Message{ID: 10, ChatID: 3}, Text: "hi"}, Snippet: "[hi]"},
		{Message: api.Message{Message: feed.Message{ID: 11, ChatID: 4}, Text: "hi again"}},
	})
	chat, msg, ok := sv.SelectedResult()
	if !ok || chat != 3 || msg != 10 {
		t.Errorf("SelectedResult() = %d, %d, %v", chat, msg, ok)
	}
	if got := sv.Results().GetCell(2, 0).Text; got != " chat 4" {
		t.Errorf("untitled chat cell = %q", got)
	}
}

func TestNotificationsView(t *testing.T) {
	nv := NewNotificationsView(ui.DefaultTheme())
	nv.Update([]notify.Rendered{{
		GroupID:     7,
		ChatID:      5,
		Title:       "Climbing",
		IsGroupChat: true,
		TotalCount:  3,
		Lines:       []notify.Line{{Sender: "Ana", Text: "rope?", Date: 100}},
	}})
	nv.Select(1, 0)
	g, ok := nv.SelectedGroup()
	if !ok || g.GroupID != 7 {
		t.Fatalf("SelectedGroup() = %+v, %v", g, ok)
	}
	if got := nv.GetCell(1, 2).Text; got != " Ana: rope?" {
		t.Errorf("latest cell = %q", got)
	}
}

func TestHelpListsSections(t *testing.T) {
	hv := NewHelpView(ui.DefaultTheme())
	hv.Update([]HelpSection{{Title: "Chats", Hints: []ui.MenuHint{{Key: "Enter", Description: "Open"}}}})
	text := hv.GetText(true)
	for _, want := range []string{"Chats", "Enter", "Open", ":search <query>"} {
		if !strings.Contains(text, want) {
			t.Errorf("help text missing %q", want)
		}
	}
}
