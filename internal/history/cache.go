// Package history caches the message history of the open conversation:
// backward pagination, live inserts and deletes, and reconciliation of
// optimistic sends with their server identities.
package history

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/observe"
	"go.uber.org/zap"
)

const DefaultPageSize int32 = 50

var (
	ErrNotBound  = errors.New("history: no chat bound")
	ErrRebound   = errors.New("history: cache rebound to another chat")
	ErrDiscarded = errors.New("history: pending message discarded")
)

// Key identifies a display slot. A slot keeps its key while the message in it
// moves from a local placeholder to a pending id to a confirmed id.
type Key uint64

// View is an immutable snapshot of the cached history.
type View struct {
	ChatID feed.ChatID
	// IDs are newest first; pending sends sit at the head.
	IDs []feed.MessageID
	// Keys run parallel to IDs.
	Keys         []Key
	Messages     map[feed.MessageID]feed.Message
	OldestLoaded feed.MessageID
	Exhausted    bool
	// Loading is set while a page requested by PullOlder is outstanding.
	Loading       bool
	BackfillError string
}

// slot is one display position. token is set while the slot holds a message
// sent from this cache and not yet confirmed; once confirmed it is cleared and
// id is the server id.
type slot struct {
	key   Key
	id    feed.MessageID
	token string
}

// SendOptions tune a Send.
type SendOptions struct {
	ReplyToMessageID feed.MessageID
	Options          feed.SendOptions
}

// Cache holds the history of one chat at a time.
type Cache struct {
	client   feed.Client
	logger   *zap.Logger
	pageSize int32
	view     *observe.Value[View]

	mu            sync.Mutex
	gen           uint64
	chatID        feed.ChatID
	slots         []slot
	msgs          map[feed.MessageID]feed.Message
	oldestLoaded  feed.MessageID
	lastRequested feed.MessageID
	loading       bool
	exhausted     bool
	backfillErr   string
	nextKey       Key
	nextLocalID   feed.MessageID
	futures       map[string]*feed.Future[feed.Message]
	awaiting      int
	early         map[feed.MessageID][]feed.Update

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an unbound cache. pageSize <= 0 uses DefaultPageSize.
func New(client feed.Client, logger *zap.Logger, pageSize int32) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	c := &Cache{
		client:   client,
		logger:   logger,
		pageSize: pageSize,
		view:     observe.NewValue(View{Messages: map[feed.MessageID]feed.Message{}}),
	}
	c.reset(0)
	return c
}

// View returns the published history.
func (c *Cache) View() *observe.Value[View] { return c.view }

// ChatID returns the bound chat, or 0.
func (c *Cache) ChatID() feed.ChatID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// Start applies updates for the bound chat until ctx ends or Stop is called.
func (c *Cache) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	ch, unsub := c.client.Subscribe(256)

	go func() {
		defer close(c.done)
		defer unsub()
		for {
			select {
			case u := <-ch:
				c.Apply(u)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the update loop.
func (c *Cache) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}

// Initialize binds the cache to chatID, discarding everything cached for the
// previous chat. Responses still in flight for the previous binding are
// dropped when they arrive; unsettled sends are rejected with ErrRebound.
func (c *Cache) Initialize(chatID feed.ChatID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.futures {
		f.Reject(ErrRebound)
	}
	c.reset(chatID)
	c.publishLocked()
	c.logger.Debug("history bound", zap.Int64("chat_id", int64(chatID)))
}

func (c *Cache) reset(chatID feed.ChatID) {
	c.gen++
	c.chatID = chatID
	c.slots = nil
	c.msgs = make(map[feed.MessageID]feed.Message)
	c.oldestLoaded = 0
	c.lastRequested = -1
	c.loading = false
	c.exhausted = false
	c.backfillErr = ""
	c.nextLocalID = -1
	c.futures = make(map[string]*feed.Future[feed.Message])
	c.awaiting = 0
	c.early = make(map[feed.MessageID][]feed.Update)
}

// PullOlder requests the page below the oldest loaded message. Repeated calls
// while a request for the same boundary is in flight, or after the history is
// exhausted, do nothing. It reports whether a request was issued.
func (c *Cache) PullOlder(ctx context.Context) bool {
	c.mu.Lock()
	if c.chatID == 0 || c.lastRequested == c.oldestLoaded {
		c.mu.Unlock()
		return false
	}
	prev := c.lastRequested
	c.lastRequested = c.oldestLoaded
	c.loading = true
	req := feed.GetChatHistory{ChatID: c.chatID, FromMessageID: c.oldestLoaded, Limit: c.pageSize}
	gen := c.gen
	c.publishLocked()
	c.mu.Unlock()

	go c.backfill(context.WithoutCancel(ctx), gen, prev, req)
	return true
}

func (c *Cache) backfill(ctx context.Context, gen uint64, prev feed.MessageID, req feed.GetChatHistory) {
	page, err := feed.CallAs[feed.Messages](ctx, c.client, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.logger.Debug("discarding history page for previous chat", zap.Int64("chat_id", int64(req.ChatID)))
		return
	}
	c.loading = false
	if err != nil {
		c.lastRequested = prev
		c.backfillErr = err.Error()
		c.logger.Warn("history backfill failed",
			zap.Int64("chat_id", int64(req.ChatID)),
			zap.Int64("from", int64(req.FromMessageID)),
			zap.Error(err),
		)
		c.publishLocked()
		return
	}
	c.backfillErr = ""

	for _, m := range page.Messages {
		if _, ok := c.msgs[m.ID]; ok {
			continue
		}
		c.msgs[m.ID] = m
		c.slots = append(c.slots, slot{key: c.newKey(), id: m.ID})
	}
	if len(page.Messages) == 0 {
		c.exhausted = true
	} else if oldest := page.Messages[len(page.Messages)-1].ID; oldest != c.oldestLoaded {
		c.oldestLoaded = oldest
	}
	c.publishLocked()
}

// Send shows content at the head of the history at once and sends it. The
// future resolves with the confirmed message, or fails while the message stays
// visible with a failed state.
func (c *Cache) Send(ctx context.Context, content feed.Content, opts SendOptions) *feed.Future[feed.Message] {
	f := feed.NewFuture[feed.Message]()

	c.mu.Lock()
	if c.chatID == 0 {
		c.mu.Unlock()
		f.Reject(ErrNotBound)
		return f
	}
	token := uuid.NewString()
	localID := c.nextLocalID
	c.nextLocalID--
	c.msgs[localID] = feed.Message{
		ID:               localID,
		ChatID:           c.chatID,
		Content:          content,
		Date:             time.Now().Unix(),
		IsOutgoing:       true,
		SendingState:     feed.SendingPending,
		ReplyToMessageID: opts.ReplyToMessageID,
	}
	c.slots = slices.Insert(c.slots, 0, slot{key: c.newKey(), id: localID, token: token})
	c.futures[token] = f
	c.awaiting++
	gen := c.gen
	req := feed.SendMessage{
		ChatID:           c.chatID,
		ReplyToMessageID: opts.ReplyToMessageID,
		Options:          opts.Options,
		Content:          content,
	}
	c.publishLocked()
	c.mu.Unlock()

	go c.send(context.WithoutCancel(ctx), gen, token, localID, req)
	return f
}

func (c *Cache) send(ctx context.Context, gen uint64, token string, localID feed.MessageID, req feed.SendMessage) {
	resp, err := feed.CallAs[feed.MessageResult](ctx, c.client, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.awaiting--
	defer func() {
		if c.awaiting == 0 {
			c.flushEarlyLocked()
		}
		c.publishLocked()
	}()

	i := c.slotByToken(token)
	if err != nil {
		c.logger.Warn("send failed", zap.Int64("chat_id", int64(req.ChatID)), zap.Error(err))
		if i >= 0 {
			m := c.msgs[localID]
			m.SendingState = feed.SendingFailed
			m.SendError = &feed.SendError{Code: feed.CodeOf(err), Message: err.Error()}
			c.msgs[localID] = m
			c.slots[i].token = ""
		}
		c.settle(token, feed.Message{}, fmt.Errorf("send message: %w", err))
		return
	}
	if i < 0 {
		// The placeholder was removed locally while the call was in flight.
		return
	}

	msg := resp.Message
	delete(c.msgs, localID)
	if j := c.slotByID(msg.ID); j >= 0 {
		// A NewMessage for the pending id got here first; that slot takes over.
		c.slots = slices.Delete(c.slots, i, i+1)
		if j > i {
			j--
		}
		c.slots[j].token = token
	} else {
		c.slots[i].id = msg.ID
		c.msgs[msg.ID] = msg
	}

	if !msg.IsPending() && msg.SendingState != feed.SendingFailed {
		c.confirmLocked(msg.ID, msg)
		return
	}
	early := c.early[msg.ID]
	delete(c.early, msg.ID)
	for _, u := range early {
		c.applyLocked(u)
	}
}

// Retry removes a failed message and sends its content again.
func (c *Cache) Retry(ctx context.Context, id feed.MessageID) (*feed.Future[feed.Message], error) {
	c.mu.Lock()
	m, ok := c.msgs[id]
	if !ok || m.SendingState != feed.SendingFailed {
		c.mu.Unlock()
		return nil, feed.Errorf(feed.CodeInvalidArgument, "message %d is not a failed send", id)
	}
	chatID := c.chatID
	c.removeLocked(id)
	c.publishLocked()
	c.mu.Unlock()

	if id > 0 {
		if _, err := c.client.Call(ctx, feed.DeleteMessages{ChatID: chatID, MessageIDs: []feed.MessageID{id}}); err != nil {
			c.logger.Warn("failed to drop failed message before retry", zap.Int64("message_id", int64(id)), zap.Error(err))
		}
	}
	return c.Send(ctx, m.Content, SendOptions{ReplyToMessageID: m.ReplyToMessageID}), nil
}

// Delete asks the backend to delete ids. The cache changes once the deletion
// comes back as an update; ids of local placeholders are dropped at once.
func (c *Cache) Delete(ctx context.Context, ids []feed.MessageID, revoke bool) error {
	c.mu.Lock()
	chatID := c.chatID
	if chatID == 0 {
		c.mu.Unlock()
		return ErrNotBound
	}
	var remote []feed.MessageID
	removed := false
	for _, id := range ids {
		if id < 0 {
			removed = c.removeLocked(id) || removed
			continue
		}
		remote = append(remote, id)
	}
	if removed {
		c.publishLocked()
	}
	c.mu.Unlock()

	if len(remote) == 0 {
		return nil
	}
	if _, err := c.client.Call(ctx, feed.DeleteMessages{ChatID: chatID, MessageIDs: remote, Revoke: revoke}); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// MarkViewed reports ids as seen by the user.
func (c *Cache) MarkViewed(ctx context.Context, ids []feed.MessageID) error {
	chatID := c.ChatID()
	if chatID == 0 {
		return ErrNotBound
	}
	var seen []feed.MessageID
	for _, id := range ids {
		if id > 0 {
			seen = append(seen, id)
		}
	}
	if len(seen) == 0 {
		return nil
	}
	if _, err := c.client.Call(ctx, feed.ViewMessages{ChatID: chatID, MessageIDs: seen}); err != nil {
		return fmt.Errorf("view messages: %w", err)
	}
	return nil
}

// Open tells the backend the chat is on screen.
func (c *Cache) Open(ctx context.Context) error {
	chatID := c.ChatID()
	if chatID == 0 {
		return ErrNotBound
	}
	if _, err := c.client.Call(ctx, feed.OpenChat{ChatID: chatID}); err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	return nil
}

// Close tells the backend the chat left the screen.
func (c *Cache) Close(ctx context.Context) error {
	chatID := c.ChatID()
	if chatID == 0 {
		return ErrNotBound
	}
	if _, err := c.client.Call(ctx, feed.CloseChat{ChatID: chatID}); err != nil {
		return fmt.Errorf("close chat: %w", err)
	}
	return nil
}

// Apply folds one update into the cache. Updates for other chats are ignored.
func (c *Cache) Apply(u feed.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chatID == 0 {
		return
	}
	if c.applyLocked(u) {
		c.publishLocked()
	}
}

func (c *Cache) applyLocked(u feed.Update) bool {
	switch u := u.(type) {
	case feed.NewMessage:
		if u.Message.ChatID != c.chatID {
			return false
		}
		m := u.Message
		if c.slotByID(m.ID) >= 0 {
			c.msgs[m.ID] = m
			return true
		}
		if m.IsPending() && m.IsOutgoing && c.awaiting > 0 {
			// Possibly one of our sends; its placeholder learns the id
			// from the SendMessage response.
			c.deferLocked(m.ID, u)
			return false
		}
		c.insertHeadLocked(m)
		return true

	case feed.MessagesDeleted:
		if u.ChatID != c.chatID || !u.IsPermanent {
			return false
		}
		removed := false
		for _, id := range u.MessageIDs {
			removed = c.removeLocked(id) || removed
		}
		return removed

	case feed.MessageContentChanged:
		if u.ChatID != c.chatID {
			return false
		}
		m, ok := c.msgs[u.MessageID]
		if !ok {
			return false
		}
		m.Content = u.NewContent
		c.msgs[u.MessageID] = m
		return true

	case feed.MessageEdited:
		if u.ChatID != c.chatID {
			return false
		}
		m, ok := c.msgs[u.MessageID]
		if !ok {
			return false
		}
		m.EditDate = u.EditDate
		c.msgs[u.MessageID] = m
		return true

	case feed.MessageSendSucceeded:
		if u.Message.ChatID != c.chatID {
			return false
		}
		if c.slotByID(u.OldMessageID) < 0 {
			c.deferLocked(u.OldMessageID, u)
			return false
		}
		c.confirmLocked(u.OldMessageID, u.Message)
		return true

	case feed.MessageSendFailed:
		if u.Message.ChatID != c.chatID {
			return false
		}
		i := c.slotByID(u.OldMessageID)
		if i < 0 {
			c.deferLocked(u.OldMessageID, u)
			return false
		}
		m := u.Message
		m.SendingState = feed.SendingFailed
		sendErr := u.Error
		m.SendError = &sendErr
		c.replaceLocked(i, u.OldMessageID, m)
		token := c.slots[i].token
		c.slots[i].token = ""
		c.settle(token, feed.Message{}, &feed.Error{Code: sendErr.Code, Message: sendErr.Message})
		return true
	}
	return false
}

// deferLocked keeps a send outcome for an id this cache has not learnt yet,
// which happens when the outcome overtakes the SendMessage response.
func (c *Cache) deferLocked(id feed.MessageID, u feed.Update) {
	if c.awaiting > 0 {
		c.early[id] = append(c.early[id], u)
		return
	}
	c.logger.Debug("send outcome for unknown message", zap.Int64("message_id", int64(id)))
}

// flushEarlyLocked runs once no send is awaiting its response. Deferred
// messages were not ours after all and are inserted; deferred outcomes refer
// to nothing cached and are dropped.
func (c *Cache) flushEarlyLocked() {
	var msgs []feed.Message
	for _, updates := range c.early {
		for _, u := range updates {
			if nm, ok := u.(feed.NewMessage); ok {
				msgs = append(msgs, nm.Message)
			}
		}
	}
	clear(c.early)
	slices.SortFunc(msgs, func(a, b feed.Message) int { return cmp.Compare(a.ID, b.ID) })
	for _, m := range msgs {
		if c.slotByID(m.ID) < 0 {
			c.insertHeadLocked(m)
		}
	}
}

func (c *Cache) insertHeadLocked(m feed.Message) {
	c.msgs[m.ID] = m
	c.slots = slices.Insert(c.slots, 0, slot{key: c.newKey(), id: m.ID})
}

// confirmLocked swaps the message in oldID's slot for msg and resolves the
// slot's send, if any.
func (c *Cache) confirmLocked(oldID feed.MessageID, msg feed.Message) {
	i := c.slotByID(oldID)
	if i < 0 {
		return
	}
	i = c.replaceLocked(i, oldID, msg)
	token := c.slots[i].token
	c.slots[i].token = ""
	c.settle(token, msg, nil)
}

// replaceLocked puts msg in slot i, dropping any other slot already holding
// msg.ID. It returns the slot's possibly shifted index.
func (c *Cache) replaceLocked(i int, oldID feed.MessageID, msg feed.Message) int {
	if msg.ID != oldID {
		if j := c.slotByID(msg.ID); j >= 0 {
			c.slots = slices.Delete(c.slots, j, j+1)
			if j < i {
				i--
			}
		}
		delete(c.msgs, oldID)
	}
	c.slots[i].id = msg.ID
	c.msgs[msg.ID] = msg
	return i
}

func (c *Cache) removeLocked(id feed.MessageID) bool {
	i := c.slotByID(id)
	if i < 0 {
		return false
	}
	token := c.slots[i].token
	c.slots = slices.Delete(c.slots, i, i+1)
	delete(c.msgs, id)
	c.settle(token, feed.Message{}, ErrDiscarded)
	return true
}

// settle resolves or rejects the send tracked by token.
func (c *Cache) settle(token string, msg feed.Message, err error) {
	if token == "" {
		return
	}
	f, ok := c.futures[token]
	if !ok {
		return
	}
	delete(c.futures, token)
	if err != nil {
		f.Reject(err)
		return
	}
	f.Resolve(msg)
}

func (c *Cache) slotByID(id feed.MessageID) int {
	return slices.IndexFunc(c.slots, func(s slot) bool { return s.id == id })
}

func (c *Cache) slotByToken(token string) int {
	return slices.IndexFunc(c.slots, func(s slot) bool { return s.token == token })
}

func (c *Cache) newKey() Key {
	c.nextKey++
	return c.nextKey
}

func (c *Cache) publishLocked() {
	ids := make([]feed.MessageID, len(c.slots))
	keys := make([]Key, len(c.slots))
	for i, s := range c.slots {
		ids[i] = s.id
		keys[i] = s.key
	}
	c.view.Set(View{
		ChatID:        c.chatID,
		IDs:           ids,
		Keys:          keys,
		Messages:      maps.Clone(c.msgs),
		OldestLoaded:  c.oldestLoaded,
		Exhausted:     c.exhausted,
		Loading:       c.loading,
		BackfillError: c.backfillErr,
	})
}
