// Package model holds the TUI's copy of daemon state. It refreshes from the
// daemon when Watch events say something changed.
package model

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/notify"
	"github.com/matheus3301/wgram/internal/tui/client"
)

// Target is a set of state parts to refresh.
type Target uint8

const (
	TargetStatus Target = 1 << iota
	TargetChats
	TargetHistory
	TargetNotifications

	TargetAll = TargetStatus | TargetChats | TargetHistory | TargetNotifications
)

// Has reports whether t includes every bit of o.
func (t Target) Has(o Target) bool { return t&o == o }

// Daemon is the subset of the client the view model calls.
type Daemon interface {
	GetStatus(ctx context.Context) (*api.Status, error)
	ListChats(ctx context.Context, req *api.ListChatsRequest) (*api.ChatList, error)
	OpenChat(ctx context.Context, req *api.OpenChatRequest) (*api.HistoryPage, error)
	GetHistory(ctx context.Context, req *api.HistoryRequest) (*api.HistoryPage, error)
	PullOlder(ctx context.Context, req *api.HistoryRequest) (*api.PullResponse, error)
	SendText(ctx context.Context, req *api.SendTextRequest) (*api.SendResponse, error)
	Retry(ctx context.Context, req *api.RetryRequest) (*api.SendResponse, error)
	DeleteMessages(ctx context.Context, req *api.DeleteRequest) error
	MarkRead(ctx context.Context, req *api.MarkReadRequest) error
	ListNotifications(ctx context.Context) (*api.NotificationList, error)
	MarkNotificationsRead(ctx context.Context, req *api.MarkNotificationsRequest) error
	Search(ctx context.Context, req *api.SearchRequest) (*api.SearchResponse, error)
	Authenticate(ctx context.Context, req *api.AuthRequest) (*api.AuthState, error)
}

// Events is an open Watch stream.
type Events interface {
	Recv() (*api.Event, error)
}

// WatchFunc opens a Watch stream.
type WatchFunc func(ctx context.Context, req *api.WatchRequest) (Events, error)

// WatchClient adapts the daemon client's Watch.
func WatchClient(c *client.Client) WatchFunc {
	return func(ctx context.Context, req *api.WatchRequest) (Events, error) {
		w, err := c.Watch(ctx, req)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// ViewModel caches what the daemon last reported.
type ViewModel struct {
	daemon Daemon
	watch  WatchFunc

	mu            sync.RWMutex
	status        *api.Status
	chats         []api.Chat
	moreChats     bool
	history       *api.HistoryPage
	notifications []notify.Rendered
}

// NewViewModel creates a view model backed by the daemon client.
func NewViewModel(d Daemon, watch WatchFunc) *ViewModel {
	return &ViewModel{daemon: d, watch: watch}
}

// TargetsFor maps a Watch event to the state it invalidates. History events
// for a chat other than open are ignored.
func TargetsFor(evt *api.Event, open feed.ChatID) Target {
	switch {
	case strings.HasPrefix(evt.Kind, "auth."):
		return TargetStatus | TargetChats
	case strings.HasPrefix(evt.Kind, "chats."):
		return TargetStatus | TargetChats
	case strings.HasPrefix(evt.Kind, "history."):
		var hc api.HistoryChanged
		if err := json.Unmarshal(evt.Payload, &hc); err == nil && hc.ChatID != open {
			return 0
		}
		return TargetHistory
	case strings.HasPrefix(evt.Kind, "notify."):
		return TargetStatus | TargetNotifications
	}
	return 0
}

// Refresh reloads the requested parts. It returns the first error.
func (vm *ViewModel) Refresh(ctx context.Context, t Target) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.Has(TargetStatus) {
		st, err := vm.daemon.GetStatus(ctx)
		keep(err)
		if err == nil {
			vm.mu.Lock()
			vm.status = st
			vm.mu.Unlock()
		}
	}
	if t.Has(TargetChats) {
		keep(vm.LoadChats(ctx, false))
	}
	if t.Has(TargetHistory) && vm.OpenChat() != 0 {
		page, err := vm.daemon.GetHistory(ctx, &api.HistoryRequest{ChatID: vm.OpenChat()})
		keep(err)
		if err == nil {
			vm.setHistory(page)
		}
	}
	if t.Has(TargetNotifications) {
		list, err := vm.daemon.ListNotifications(ctx)
		keep(err)
		if err == nil {
			vm.mu.Lock()
			vm.notifications = list.Groups
			vm.mu.Unlock()
		}
	}
	return firstErr
}

// Follow keeps the view model in step with the daemon until ctx ends. After
// each refresh it calls changed with what was reloaded. A broken stream is
// reopened after a pause and everything is reloaded.
func (vm *ViewModel) Follow(ctx context.Context, changed func(Target, error)) {
	for ctx.Err() == nil {
		w, err := vm.watch(ctx, &api.WatchRequest{})
		if err == nil {
			changed(TargetAll, vm.Refresh(ctx, TargetAll))
			err = vm.drain(ctx, w, changed)
		}
		if ctx.Err() != nil {
			return
		}
		changed(0, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (vm *ViewModel) drain(ctx context.Context, w Events, changed func(Target, error)) error {
	for {
		evt, err := w.Recv()
		if err != nil {
			return err
		}
		if t := TargetsFor(evt, vm.OpenChat()); t != 0 {
			changed(t, vm.Refresh(ctx, t))
		}
	}
}

// LoadChats fetches the chat list. With more it asks the daemon to announce
// further chats first.
func (vm *ViewModel) LoadChats(ctx context.Context, more bool) error {
	list, err := vm.daemon.ListChats(ctx, &api.ListChatsRequest{Load: more})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.chats = list.Chats
	vm.moreChats = list.More
	vm.mu.Unlock()
	return nil
}

// Open binds the daemon's history cache to chatID and marks it read.
func (vm *ViewModel) Open(ctx context.Context, chatID feed.ChatID) error {
	page, err := vm.daemon.OpenChat(ctx, &api.OpenChatRequest{ChatID: chatID})
	if err != nil {
		return err
	}
	vm.setHistory(page)
	return vm.daemon.MarkRead(ctx, &api.MarkReadRequest{})
}

// PullOlder asks for the page before the oldest loaded message. It reports
// false when nothing was requested.
func (vm *ViewModel) PullOlder(ctx context.Context) (bool, error) {
	resp, err := vm.daemon.PullOlder(ctx, &api.HistoryRequest{ChatID: vm.OpenChat()})
	if err != nil {
		return false, err
	}
	return resp.Requested, vm.Refresh(ctx, TargetHistory)
}

// Send posts text to the open chat. It returns once the daemon has accepted
// the message; confirmation arrives as a history event.
func (vm *ViewModel) Send(ctx context.Context, text string, replyTo feed.MessageID) error {
	_, err := vm.daemon.SendText(ctx, &api.SendTextRequest{ChatID: vm.OpenChat(), Text: text, ReplyTo: replyTo})
	return err
}

func (vm *ViewModel) Retry(ctx context.Context, id feed.MessageID) error {
	_, err := vm.daemon.Retry(ctx, &api.RetryRequest{MessageID: id})
	return err
}

func (vm *ViewModel) Delete(ctx context.Context, ids []feed.MessageID, revoke bool) error {
	return vm.daemon.DeleteMessages(ctx, &api.DeleteRequest{MessageIDs: ids, Revoke: revoke})
}

// MarkRead marks every loaded message of the open chat as viewed.
func (vm *ViewModel) MarkRead(ctx context.Context) error {
	if vm.OpenChat() == 0 {
		return nil
	}
	return vm.daemon.MarkRead(ctx, &api.MarkReadRequest{})
}

func (vm *ViewModel) MarkNotificationsRead(ctx context.Context, group feed.NotificationGroupID) error {
	return vm.daemon.MarkNotificationsRead(ctx, &api.MarkNotificationsRequest{GroupID: group})
}

func (vm *ViewModel) Search(ctx context.Context, query string) ([]api.SearchHit, error) {
	resp, err := vm.daemon.Search(ctx, &api.SearchRequest{Query: query, Limit: 50})
	if err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

// Authenticate submits one login step and records the resulting state.
func (vm *ViewModel) Authenticate(ctx context.Context, req *api.AuthRequest) (*api.AuthState, error) {
	st, err := vm.daemon.Authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	vm.mu.Lock()
	if vm.status != nil {
		s := *vm.status
		s.Auth = st.Snapshot
		vm.status = &s
	}
	vm.mu.Unlock()
	return st, nil
}

func (vm *ViewModel) setHistory(page *api.HistoryPage) {
	vm.mu.Lock()
	vm.history = page
	vm.mu.Unlock()
}

// Status returns the last status, or nil before the first refresh.
func (vm *ViewModel) Status() *api.Status {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Chats returns the chat list in display order.
func (vm *ViewModel) Chats() []api.Chat {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.chats
}

// MoreChats reports whether the daemon can announce further chats.
func (vm *ViewModel) MoreChats() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.moreChats
}

// Chat looks a chat up in the last list.
func (vm *ViewModel) Chat(id feed.ChatID) (api.Chat, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.chats {
		if c.ID == id {
			return c, true
		}
	}
	return api.Chat{}, false
}

// History returns the open chat's messages, newest first.
func (vm *ViewModel) History() *api.HistoryPage {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.history
}

// OpenChat returns the chat whose history is loaded, or 0.
func (vm *ViewModel) OpenChat() feed.ChatID {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.history == nil {
		return 0
	}
	return vm.history.ChatID
}

func (vm *ViewModel) Notifications() []notify.Rendered {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.notifications
}
