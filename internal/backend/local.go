// Package backend implements the update feed over the local SQLite store. It
// answers feed requests, turns transport events into feed updates and drains
// the outbox through a Transport.
package backend

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/store"
)

// OptionGroupCountMax caps the notifications carried per group.
const OptionGroupCountMax = "notification_group_count_max"

const (
	defaultGroupCountMax = 3
	maxHistoryLimit      = 100
)

// Local is a feed.Client backed by the app database.
//
// Every state change is written and published while holding mu, so updates
// reach subscribers in the order the store saw them. Subscribers must not
// call back into Local from their receive loop.
type Local struct {
	db        *store.DB
	hub       *feed.Hub
	transport Transport
	pairer    Pairer
	logger    *zap.Logger

	mu     sync.Mutex
	opened map[feed.ChatID]int
	auth   feed.AuthorizationState

	wake   chan struct{}
	sender *Sender
}

// New creates a local backend. transport defaults to Loopback; a nil pairer
// selects the loopback login flow.
func New(db *store.DB, transport Transport, pairer Pairer, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	if transport == nil {
		transport = Loopback{}
	}
	l := &Local{
		db:        db,
		hub:       feed.NewHub(),
		transport: transport,
		pairer:    pairer,
		logger:    logger,
		opened:    make(map[feed.ChatID]int),
		wake:      make(chan struct{}, 1),
	}
	l.sender = newSender(l, logger)
	return l
}

// Start announces the initial authorization state and active notifications,
// then starts the outbox sender. Projections should subscribe before Start.
func (l *Local) Start(ctx context.Context) error {
	if err := l.db.ResetAnnounced(); err != nil {
		return err
	}
	l.mu.Lock()
	l.auth = l.initialAuthState()
	l.hub.Publish(feed.AuthorizationStateChanged{State: l.auth})
	groups, err := l.activeGroupsLocked()
	if err != nil {
		l.logger.Warn("failed to load active notifications", zap.Error(err))
	} else {
		l.hub.Publish(feed.ActiveNotifications{Groups: groups})
	}
	l.mu.Unlock()

	l.sender.Start(ctx)
	return nil
}

// Stop stops the outbox sender and releases subscribers.
func (l *Local) Stop() {
	l.sender.Stop()
	l.hub.Close()
}

// Subscribe implements feed.Client.
func (l *Local) Subscribe(bufSize int) (<-chan feed.Update, func()) {
	return l.hub.Subscribe(bufSize)
}

// Call implements feed.Client.
func (l *Local) Call(ctx context.Context, req feed.Request) (feed.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, feed.Errorf(feed.CodeUnavailable, "%v", err)
	}
	switch r := req.(type) {
	case feed.LoadChats:
		return l.loadChats(r)
	case feed.GetChatHistory:
		return l.getChatHistory(r)
	case feed.SendMessage:
		return l.sendMessage(r)
	case feed.DeleteMessages:
		return l.deleteMessages(ctx, r)
	case feed.GetMessage:
		return l.getMessage(r)
	case feed.ViewMessages:
		return l.viewMessages(r)
	case feed.OpenChat:
		return l.openChat(r.ChatID, 1)
	case feed.CloseChat:
		return l.openChat(r.ChatID, -1)
	case feed.SetOption:
		return l.setOption(r)
	case feed.SearchMessages:
		return l.searchMessages(r)
	case feed.GetAuthorizationState:
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.auth, nil
	case feed.SetPhoneNumber:
		return l.setPhoneNumber(r.PhoneNumber)
	case feed.CheckCode:
		return l.checkCode(r.Code)
	case feed.CheckPassword:
		return nil, feed.Errorf(feed.CodeInvalidArgument, "two-step password is not enabled")
	case feed.RequestQrCodeAuthentication:
		return l.requestQrCode(ctx)
	case feed.LogOut:
		return l.logOut(ctx)
	default:
		return nil, feed.Errorf(feed.CodeInvalidArgument, "unsupported request %T", req)
	}
}

func (l *Local) internal(op string, err error) error {
	l.logger.Error(op+" failed", zap.Error(err))
	return feed.Errorf(feed.CodeInternal, "%s: %v", op, err)
}

// chatLocked loads a chat or fails with NotFound.
func (l *Local) chatLocked(id feed.ChatID) (*store.Chat, error) {
	c, err := l.db.GetChat(int64(id))
	if err != nil {
		return nil, l.internal("get chat", err)
	}
	if c == nil {
		return nil, feed.Errorf(feed.CodeNotFound, "chat %d not found", id)
	}
	return c, nil
}

// announceLocked publishes NewChat for a chat the feed has not seen yet and
// reports whether it did.
func (l *Local) announceLocked(c *store.Chat) (bool, error) {
	if c.Announced {
		return false, nil
	}
	last, err := l.db.GetMessage(c.LastMessageID)
	if err != nil {
		return false, err
	}
	if err := l.db.MarkAnnounced([]int64{c.ID}); err != nil {
		return false, err
	}
	c.Announced = true
	l.hub.Publish(feed.NewChat{Chat: toFeedChat(*c, last)})
	return true, nil
}

// publishLastMessageLocked reloads the chat and publishes its last message and
// positions.
func (l *Local) publishLastMessageLocked(chatID int64) error {
	c, err := l.db.GetChat(chatID)
	if err != nil || c == nil {
		return err
	}
	if announced, err := l.announceLocked(c); announced || err != nil {
		return err
	}
	u := feed.ChatLastMessageChanged{ChatID: feed.ChatID(c.ID), Positions: positionsOf(*c)}
	last, err := l.db.GetMessage(c.LastMessageID)
	if err != nil {
		return err
	}
	if last != nil {
		m := toFeedMessage(*last)
		u.LastMessage = &m
	}
	l.hub.Publish(u)
	return nil
}

func (l *Local) isOpen(id feed.ChatID) bool {
	return l.opened[id] > 0
}

func (l *Local) kick() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
