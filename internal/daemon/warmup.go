package daemon

import (
	"context"

	"github.com/matheus3301/wgram/internal/auth"
	"github.com/matheus3301/wgram/internal/bus"
	"github.com/matheus3301/wgram/internal/chats"
	"github.com/matheus3301/wgram/internal/wa"
	"go.uber.org/zap"
)

// Warmup fills the chat list once the session is authorized and refreshes
// contacts each time the transport connects.
type Warmup struct {
	chats   *chats.Projection
	machine *auth.Machine
	adapter *wa.Adapter
	bus     *bus.Bus
	limit   int32
	logger  *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewWarmup(p Params, proj *chats.Projection, authn *auth.Authenticator, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *Warmup {
	return &Warmup{
		chats:   proj,
		machine: authn.Machine(),
		adapter: adapter,
		bus:     b,
		limit:   p.config().Chats.LoadLimit,
		logger:  logger.Named("warmup"),
	}
}

// Start subscribes to auth and transport events.
func (w *Warmup) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	ch, unsub := w.bus.Subscribe("", 64)

	go func() {
		defer close(w.done)
		defer unsub()
		if w.machine.Current().State == auth.Authorized {
			w.loadChats(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-ch:
				w.handle(ctx, evt)
			}
		}
	}()
}

func (w *Warmup) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

func (w *Warmup) handle(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindAuthStateChanged:
		if sc, ok := evt.Payload.(auth.StateChange); ok && sc.To == auth.Authorized {
			w.loadChats(ctx)
		}
	case bus.KindWAConnected:
		if w.adapter != nil {
			n := w.adapter.SyncContacts(ctx)
			w.logger.Info("contacts synced", zap.Int("count", n))
		}
	}
}

// loadChats announces chats page by page until the backend runs out.
func (w *Warmup) loadChats(ctx context.Context) {
	limit := w.limit
	if limit <= 0 {
		limit = 100
	}
	pages := 0
	for {
		more, err := w.chats.Load(ctx, limit)
		if err != nil {
			w.logger.Warn("failed to load chats", zap.Error(err))
			return
		}
		if !more {
			break
		}
		pages++
	}
	w.logger.Info("chat list loaded", zap.Int("pages", pages), zap.Int("chats", len(w.chats.IDs().Load())))
}
