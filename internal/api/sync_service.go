package api

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wgram/internal/bus"
	"github.com/matheus3301/wgram/internal/chats"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/history"
	"go.uber.org/zap"
)

// watchPrefixes are the bus namespaces a Watch stream carries by default.
var watchPrefixes = []string{"auth.", "chats.", "history.", "notify."}

// Watch streams projection change events until the client goes away.
func (s *Service) Watch(req *WatchRequest, stream WatchStream) error {
	prefixes := req.Prefixes
	if len(prefixes) == 0 {
		prefixes = watchPrefixes
	}
	ch, unsub := s.bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if !slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(evt.Kind, p) }) {
				continue
			}
			if err := stream.Send(s.envelope(evt)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *Service) envelope(evt bus.Event) *Event {
	e := &Event{
		ID:               uuid.NewString(),
		Session:          s.sessionName,
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	if evt.Payload != nil {
		b, err := json.Marshal(evt.Payload)
		if err != nil {
			s.logger.Warn("failed to encode event payload", zap.String("kind", evt.Kind), zap.Error(err))
		} else {
			e.Payload = b
		}
	}
	return e
}

// ChatsChanged is the payload of chats.changed events.
type ChatsChanged struct {
	Count int `json:"count"`
}

// HistoryChanged is the payload of history.changed events.
type HistoryChanged struct {
	ChatID    feed.ChatID `json:"chat_id"`
	Count     int         `json:"count"`
	Exhausted bool        `json:"exhausted"`
}

// Relay turns projection snapshot changes into bus events for Watch streams.
type Relay struct {
	chats   *chats.Projection
	history *history.Cache
	bus     *bus.Bus
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRelay(p *chats.Projection, h *history.Cache, b *bus.Bus) *Relay {
	return &Relay{chats: p, history: h, bus: b}
}

// Start publishes a change event after every snapshot change.
func (r *Relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	chatsCh, stopChats := r.chats.Chats().Changes()
	historyCh, stopHistory := r.history.View().Changes()

	go func() {
		defer close(r.done)
		defer stopChats()
		defer stopHistory()
		for {
			select {
			case <-chatsCh:
				r.publish(bus.KindChatsChanged, ChatsChanged{Count: len(r.chats.IDs().Load())})
			case <-historyCh:
				v := r.history.View().Load()
				r.publish(bus.KindHistoryChanged, HistoryChanged{ChatID: v.ChatID, Count: len(v.IDs), Exhausted: v.Exhausted})
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *Relay) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

func (r *Relay) publish(kind string, payload any) {
	r.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
