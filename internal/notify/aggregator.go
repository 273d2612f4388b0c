// Package notify folds notification group snapshots and deltas into stable,
// de-duplicated groups and renders one notification per non-empty group.
package notify

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/observe"
	"go.uber.org/zap"
)

// OptionGroupCountMax caps how many notifications the backend keeps per group.
const OptionGroupCountMax = "notification_group_count_max"

// ChatLookup resolves chat snapshots for titles.
type ChatLookup interface {
	Chat(id feed.ChatID) (feed.Chat, bool)
}

// NameLookup resolves sender names.
type NameLookup interface {
	DisplayName(id feed.UserID) string
}

// Line is one entry of a rendered notification.
type Line struct {
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text"`
	Date   int64  `json:"date"`
}

// Rendered is what gets shown for one group.
type Rendered struct {
	GroupID     feed.NotificationGroupID   `json:"group_id"`
	Type        feed.NotificationGroupType `json:"type"`
	ChatID      feed.ChatID                `json:"chat_id"`
	Title       string                     `json:"title"`
	IsGroupChat bool                       `json:"is_group_chat"`
	TotalCount  int32                      `json:"total_count"`
	Lines       []Line                     `json:"lines"`
	When        int64                      `json:"when"`
	Silent      bool                       `json:"silent"`
}

// Presenter shows rendered notifications. It receives the complete set after
// every change.
type Presenter interface {
	Present(rendered []Rendered)
}

// Aggregator owns the notification groups. Apply must be called from one
// goroutine at a time.
type Aggregator struct {
	client    feed.Client
	chats     ChatLookup
	names     NameLookup
	presenter Presenter
	logger    *zap.Logger

	mu       sync.Mutex
	groups   map[feed.NotificationGroupID]feed.NotificationGroup
	snapshot *observe.Value[map[feed.NotificationGroupID]feed.NotificationGroup]
	rendered *observe.Value[[]Rendered]

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an aggregator. chats, names and presenter may be nil.
func New(client feed.Client, chats ChatLookup, names NameLookup, presenter Presenter, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		client:    client,
		chats:     chats,
		names:     names,
		presenter: presenter,
		logger:    logger,
		groups:    make(map[feed.NotificationGroupID]feed.NotificationGroup),
		snapshot:  observe.NewValue(map[feed.NotificationGroupID]feed.NotificationGroup{}),
		rendered:  observe.NewValue([]Rendered{}),
	}
}

// Groups is every known group, including emptied ones.
func (a *Aggregator) Groups() *observe.Value[map[feed.NotificationGroupID]feed.NotificationGroup] {
	return a.snapshot
}

// Rendered is the last rendered set.
func (a *Aggregator) Rendered() *observe.Value[[]Rendered] { return a.rendered }

// Start applies notification updates until ctx ends or Stop is called.
func (a *Aggregator) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	ch, unsub := a.client.Subscribe(64)
	go func() {
		defer close(a.done)
		defer unsub()
		for {
			select {
			case u := <-ch:
				a.Apply(u)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the update loop and waits for it to exit.
func (a *Aggregator) Stop() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
}

// Apply dispatches notification updates and ignores the rest.
func (a *Aggregator) Apply(u feed.Update) {
	switch u := u.(type) {
	case feed.ActiveNotifications:
		a.ApplyActiveNotifications(u.Groups)
	case feed.NotificationGroupChanged:
		a.ApplyGroupChanged(u)
	case feed.NotificationChanged:
		a.ApplyNotificationChanged(u)
	}
}

// ApplyActiveNotifications replaces each named group wholesale.
func (a *Aggregator) ApplyActiveNotifications(groups []feed.NotificationGroup) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range groups {
		g.Notifications = normalize(g.Notifications, nil, nil)
		a.groups[g.ID] = g
	}
	a.commitLocked()
}

// ApplyGroupChanged merges a group delta. Unknown groups are created.
func (a *Aggregator) ApplyGroupChanged(d feed.NotificationGroupChanged) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.groups[d.GroupID]
	if !ok {
		g = feed.NotificationGroup{ID: d.GroupID}
	}
	g.Type = d.Type
	g.ChatID = d.ChatID
	g.TotalCount = d.TotalCount
	g.Notifications = normalize(g.Notifications, d.Added, d.Removed)
	a.groups[d.GroupID] = g
	a.commitLocked()
}

// ApplyNotificationChanged replaces one notification in place. It does
// nothing when the group or the notification is unknown.
func (a *Aggregator) ApplyNotificationChanged(u feed.NotificationChanged) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.groups[u.GroupID]
	if !ok {
		a.logger.Debug("notification for unknown group", zap.Int32("group_id", int32(u.GroupID)))
		return
	}
	i := slices.IndexFunc(g.Notifications, func(n feed.Notification) bool {
		return n.ID == u.Notification.ID
	})
	if i < 0 {
		return
	}
	g.Notifications = slices.Clone(g.Notifications)
	g.Notifications[i] = u.Notification
	a.groups[u.GroupID] = g
	a.commitLocked()
}

// MarkRead marks every message of the group as read.
func (a *Aggregator) MarkRead(ctx context.Context, groupID feed.NotificationGroupID) error {
	a.mu.Lock()
	g, ok := a.groups[groupID]
	a.mu.Unlock()
	if !ok {
		return feed.Errorf(feed.CodeNotFound, "notification group %d not found", groupID)
	}
	var ids []feed.MessageID
	for _, n := range g.Notifications {
		switch t := n.Type.(type) {
		case feed.NewMessageNotification:
			ids = append(ids, t.Message.ID)
		case feed.NewPushMessageNotification:
			ids = append(ids, t.MessageID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := a.client.Call(ctx, feed.ViewMessages{ChatID: g.ChatID, MessageIDs: ids, ForceRead: true})
	if err != nil {
		return fmt.Errorf("mark group %d read: %w", groupID, err)
	}
	return nil
}

// Configure sets how many notifications the backend keeps per group.
func (a *Aggregator) Configure(ctx context.Context, maxPerGroup int64) error {
	if _, err := a.client.Call(ctx, feed.SetOption{Name: OptionGroupCountMax, Value: maxPerGroup}); err != nil {
		return fmt.Errorf("set %s: %w", OptionGroupCountMax, err)
	}
	return nil
}

// Render builds the presentation of every group with a positive total count.
// Only message notifications become lines.
func (a *Aggregator) Render() []Rendered {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.renderLocked()
}

func (a *Aggregator) commitLocked() {
	a.snapshot.Set(maps.Clone(a.groups))
	out := a.renderLocked()
	a.rendered.Set(out)
	if a.presenter != nil {
		a.presenter.Present(out)
	}
}

func (a *Aggregator) renderLocked() []Rendered {
	ids := slices.Sorted(maps.Keys(a.groups))
	out := make([]Rendered, 0, len(ids))
	for _, id := range ids {
		g := a.groups[id]
		if g.TotalCount <= 0 {
			continue
		}
		r := Rendered{
			GroupID:    g.ID,
			Type:       g.Type,
			ChatID:     g.ChatID,
			Title:      "Chat " + strconv.FormatInt(int64(g.ChatID), 10),
			TotalCount: g.TotalCount,
		}
		if a.chats != nil {
			if c, ok := a.chats.Chat(g.ChatID); ok {
				r.Title = c.Title
				r.IsGroupChat = c.Type.IsGroup()
			}
		}
		silent := true
		for _, n := range g.Notifications {
			l, ok := a.line(n)
			if !ok {
				continue
			}
			r.Lines = append(r.Lines, l)
			r.When = max(r.When, n.Date)
			silent = silent && n.IsSilent
		}
		r.Silent = len(r.Lines) > 0 && silent
		out = append(out, r)
	}
	return out
}

// line renders a message notification. Calls and secret chats have no line.
func (a *Aggregator) line(n feed.Notification) (Line, bool) {
	l := Line{Date: n.Date}
	switch t := n.Type.(type) {
	case feed.NewMessageNotification:
		l.Sender = a.senderName(t.Message.Sender)
		l.Text = feed.Summary(t.Message.Content)
	case feed.NewPushMessageNotification:
		l.Sender = a.senderName(t.Sender)
		l.Text = t.Text
	default:
		return Line{}, false
	}
	return l, true
}

func (a *Aggregator) senderName(s feed.MessageSender) string {
	switch {
	case s.UserID != 0 && a.names != nil:
		return a.names.DisplayName(s.UserID)
	case s.ChatID != 0 && a.chats != nil:
		if c, ok := a.chats.Chat(s.ChatID); ok {
			return c.Title
		}
	}
	return ""
}

// normalize returns (existing ∪ added) − removed, unique by id with later
// copies winning, sorted by id.
func normalize(existing, added []feed.Notification, removed []feed.NotificationID) []feed.Notification {
	byID := make(map[feed.NotificationID]feed.Notification, len(existing)+len(added))
	for _, n := range existing {
		byID[n.ID] = n
	}
	for _, n := range added {
		byID[n.ID] = n
	}
	for _, id := range removed {
		delete(byID, id)
	}
	out := slices.Collect(maps.Values(byID))
	slices.SortFunc(out, func(a, b feed.Notification) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
