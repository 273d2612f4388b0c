package notify

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/matheus3301/wgram/internal/bus"
	"github.com/matheus3301/wgram/internal/feed"
	"go.uber.org/zap"
)

type chatTable map[feed.ChatID]feed.Chat

func (t chatTable) Chat(id feed.ChatID) (feed.Chat, bool) {
	c, ok := t[id]
	return c, ok
}

type nameTable map[feed.UserID]string

func (t nameTable) DisplayName(id feed.UserID) string { return t[id] }

type recordingPresenter struct {
	calls [][]Rendered
}

func (p *recordingPresenter) Present(r []Rendered) { p.calls = append(p.calls, r) }

func msgNote(id feed.NotificationID, msgID feed.MessageID, text string) feed.Notification {
	return feed.Notification{
		ID:   id,
		Date: int64(id) * 10,
		Type: feed.NewMessageNotification{Message: feed.Message{
			ID: msgID, ChatID: 1, Sender: feed.MessageSender{UserID: 7}, Content: feed.Text{Text: text},
		}},
	}
}

func ids(g feed.NotificationGroup) []feed.NotificationID {
	out := make([]feed.NotificationID, len(g.Notifications))
	for i, n := range g.Notifications {
		out[i] = n.ID
	}
	return out
}

func TestGroupDeltasDeduplicate(t *testing.T) {
	a := New(nil, nil, nil, nil, zap.NewNop())
	a.ApplyGroupChanged(feed.NotificationGroupChanged{
		GroupID: 1, ChatID: 1, TotalCount: 2,
		Added: []feed.Notification{msgNote(1, 10, "a"), msgNote(2, 11, "b")},
	})
	a.ApplyGroupChanged(feed.NotificationGroupChanged{
		GroupID: 1, ChatID: 1, TotalCount: 3,
		Added: []feed.Notification{msgNote(3, 12, "c"), msgNote(2, 11, "b")},
	})

	g := a.Groups().Load()[1]
	if got, want := ids(g), []feed.NotificationID{1, 2, 3}; !slices.Equal(got, want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
}

func TestGroupDeltaRemovesAndSorts(t *testing.T) {
	a := New(nil, nil, nil, nil, zap.NewNop())
	a.ApplyActiveNotifications([]feed.NotificationGroup{{
		ID: 4, ChatID: 1, TotalCount: 3,
		Notifications: []feed.Notification{msgNote(9, 1, "x"), msgNote(5, 2, "y"), msgNote(7, 3, "z")},
	}})
	a.ApplyGroupChanged(feed.NotificationGroupChanged{
		GroupID: 4, ChatID: 1, TotalCount: 2,
		Added:   []feed.Notification{msgNote(6, 4, "w")},
		Removed: []feed.NotificationID{9, 5},
	})
	// Removing an id twice is harmless.
	a.ApplyGroupChanged(feed.NotificationGroupChanged{
		GroupID: 4, ChatID: 1, TotalCount: 2,
		Removed: []feed.NotificationID{9},
	})

	if got, want := ids(a.Groups().Load()[4]), []feed.NotificationID{6, 7}; !slices.Equal(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}
}

func TestUnknownGroupDeltaCreatesGroup(t *testing.T) {
	a := New(nil, nil, nil, nil, zap.NewNop())
	a.ApplyGroupChanged(feed.NotificationGroupChanged{GroupID: 8, ChatID: 2, Type: feed.GroupMentions})
	g, ok := a.Groups().Load()[8]
	if !ok {
		t.Fatal("group 8 not created")
	}
	if g.TotalCount != 0 || g.Type != feed.GroupMentions {
		t.Errorf("group = %#v", g)
	}
}

func TestSingleNotificationDelta(t *testing.T) {
	a := New(nil, nil, nil, nil, zap.NewNop())

	// Before the group exists the delta is a no-op.
	a.ApplyNotificationChanged(feed.NotificationChanged{GroupID: 1, Notification: msgNote(1, 10, "early")})
	if len(a.Groups().Load()) != 0 {
		t.Fatal("delta for unknown group created state")
	}

	a.ApplyGroupChanged(feed.NotificationGroupChanged{
		GroupID: 1, ChatID: 1, TotalCount: 1,
		Added: []feed.Notification{msgNote(1, 10, "old")},
	})
	a.ApplyNotificationChanged(feed.NotificationChanged{GroupID: 1, Notification: msgNote(1, 10, "new")})
	a.ApplyNotificationChanged(feed.NotificationChanged{GroupID: 1, Notification: msgNote(2, 11, "absent")})

	g := a.Groups().Load()[1]
	if len(g.Notifications) != 1 {
		t.Fatalf("notifications = %v, want one", ids(g))
	}
	n := g.Notifications[0].Type.(feed.NewMessageNotification)
	if feed.Summary(n.Message.Content) != "new" {
		t.Errorf("text = %q, want new", feed.Summary(n.Message.Content))
	}
}

func TestRenderSuppressesEmptyGroups(t *testing.T) {
	p := &recordingPresenter{}
	chats := chatTable{1: {ID: 1, Title: "Family", Type: feed.ChatTypeBasicGroup}}
	names := nameTable{7: "Ana"}
	a := New(nil, chats, names, p, zap.NewNop())

	a.ApplyGroupChanged(feed.NotificationGroupChanged{
		GroupID: 1, ChatID: 1, TotalCount: 2,
		Added: []feed.Notification{msgNote(1, 10, "hi"), msgNote(2, 11, "there")},
	})
	a.ApplyGroupChanged(feed.NotificationGroupChanged{GroupID: 2, ChatID: 3, TotalCount: 0})

	if len(p.calls) != 2 {
		t.Fatalf("presenter calls = %d, want 2", len(p.calls))
	}
	last := p.calls[1]
	if len(last) != 1 {
		t.Fatalf("rendered = %d groups, want 1", len(last))
	}
	r := last[0]
	if r.Title != "Family" || !r.IsGroupChat || r.TotalCount != 2 {
		t.Errorf("rendered = %+v", r)
	}
	if len(r.Lines) != 2 || r.Lines[0].Sender != "Ana" || r.Lines[1].Text != "there" {
		t.Errorf("lines = %+v", r.Lines)
	}
	if r.When != 20 {
		t.Errorf("when = %d, want 20", r.When)
	}

	// Emptied groups are kept for later deltas.
	if _, ok := a.Groups().Load()[2]; !ok {
		t.Error("group 2 should be retained")
	}
}

func TestRenderKeepsOnlyMessageLines(t *testing.T) {
	a := New(nil, nil, nameTable{7: "Ana"}, nil, zap.NewNop())
	a.ApplyGroupChanged(feed.NotificationGroupChanged{
		GroupID: 1, ChatID: 1, TotalCount: 1,
		Added: []feed.Notification{{ID: 1, Date: 10, Type: feed.NewCallNotification{CallID: 3}}},
	})
	r := a.Render()
	if len(r) != 1 {
		t.Fatalf("rendered = %d groups, want 1", len(r))
	}
	if len(r[0].Lines) != 0 || r[0].When != 0 {
		t.Errorf("call-only group = %+v, want no lines", r[0])
	}

	a.ApplyGroupChanged(feed.NotificationGroupChanged{
		GroupID: 1, ChatID: 1, TotalCount: 3,
		Added: []feed.Notification{
			msgNote(2, 10, "hello"),
			{ID: 3, Date: 40, Type: feed.NewSecretChatNotification{}},
		},
	})
	r = a.Render()
	if len(r[0].Lines) != 1 || r[0].Lines[0].Text != "hello" || r[0].Lines[0].Sender != "Ana" {
		t.Errorf("lines = %+v, want only the message", r[0].Lines)
	}
	if r[0].When != 20 {
		t.Errorf("when = %d, want 20", r[0].When)
	}
}

type viewClient struct {
	got []feed.Request
}

func (c *viewClient) Call(_ context.Context, req feed.Request) (feed.Response, error) {
	c.got = append(c.got, req)
	return feed.Ok{}, nil
}

func (c *viewClient) Subscribe(int) (<-chan feed.Update, func()) { return nil, func() {} }

func TestMarkReadViewsGroupMessages(t *testing.T) {
	c := &viewClient{}
	a := New(c, nil, nil, nil, zap.NewNop())
	a.ApplyGroupChanged(feed.NotificationGroupChanged{
		GroupID: 1, ChatID: 1, TotalCount: 2,
		Added: []feed.Notification{msgNote(1, 10, "a"), msgNote(2, 11, "b")},
	})

	if err := a.MarkRead(context.Background(), 1); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if len(c.got) != 1 {
		t.Fatalf("calls = %d, want 1", len(c.got))
	}
	vm := c.got[0].(feed.ViewMessages)
	if vm.ChatID != 1 || !vm.ForceRead || !slices.Equal(vm.MessageIDs, []feed.MessageID{10, 11}) {
		t.Errorf("request = %+v", vm)
	}

	if err := a.MarkRead(context.Background(), 99); feed.CodeOf(err) != feed.CodeNotFound {
		t.Errorf("MarkRead(unknown) err = %v, want not found", err)
	}
}

func TestBusPresenterPublishes(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("notify.", 1)
	defer unsub()

	NewBusPresenter(b, zap.NewNop()).Present([]Rendered{{GroupID: 1, Title: "x", TotalCount: 1}})

	select {
	case evt := <-ch:
		if evt.Kind != "notify.rendered" {
			t.Errorf("kind = %q", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no notify.rendered event")
	}
}

type subscribeClient struct {
	ch     chan feed.Update
	closed chan struct{}
}

func (c *subscribeClient) Call(context.Context, feed.Request) (feed.Response, error) {
	return feed.Ok{}, nil
}

func (c *subscribeClient) Subscribe(int) (<-chan feed.Update, func()) {
	return c.ch, func() { close(c.closed) }
}

func TestStopWaitsForLoop(t *testing.T) {
	c := &subscribeClient{ch: make(chan feed.Update), closed: make(chan struct{})}
	a := New(c, nil, nil, nil, zap.NewNop())
	a.Start(context.Background())

	c.ch <- feed.NotificationGroupChanged{GroupID: 1, ChatID: 1, TotalCount: 1}
	a.Stop()

	select {
	case <-c.closed:
	default:
		t.Fatal("subscription still open after Stop")
	}
	if _, ok := a.Groups().Load()[1]; !ok {
		t.Error("update sent before Stop was not applied")
	}
}
