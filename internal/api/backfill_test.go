package api

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/history"
	"go.uber.org/zap"
)

// slowHistory answers GetChatHistory only once release is closed.
type slowHistory struct {
	hub     *feed.Hub
	release chan struct{}
}

func (c *slowHistory) Call(_ context.Context, req feed.Request) (feed.Response, error) {
	if _, ok := req.(feed.GetChatHistory); !ok {
		return feed.Ok{}, nil
	}
	<-c.release
	return feed.Messages{Messages: []feed.Message{
		{ID: 2, ChatID: 1, Content: feed.Text{Text: "b"}},
		{ID: 1, ChatID: 1, Content: feed.Text{Text: "a"}},
	}}, nil
}

func (c *slowHistory) Subscribe(buf int) (<-chan feed.Update, func()) { return c.hub.Subscribe(buf) }

func TestAwaitBackfillWaitsForSlowPage(t *testing.T) {
	fc := &slowHistory{hub: feed.NewHub(), release: make(chan struct{})}
	h := history.New(fc, zap.NewNop(), 10)
	h.Initialize(1)
	if !h.PullOlder(context.Background()) {
		t.Fatal("PullOlder should issue a request")
	}

	done := make(chan struct{})
	go func() {
		awaitBackfill(context.Background(), h)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("returned before the page arrived")
	case <-time.After(10 * quietWindow):
	}

	close(fc.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("did not return after the page arrived")
	}
	if got := len(h.View().Load().IDs); got != 2 {
		t.Errorf("ids = %d, want 2", got)
	}
}

func TestAwaitBackfillStopsOnRebind(t *testing.T) {
	fc := &slowHistory{hub: feed.NewHub(), release: make(chan struct{})}
	defer close(fc.release)
	h := history.New(fc, zap.NewNop(), 10)
	h.Initialize(1)
	h.PullOlder(context.Background())

	done := make(chan struct{})
	go func() {
		awaitBackfill(context.Background(), h)
		close(done)
	}()
	h.Initialize(2)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("did not return after the cache was rebound")
	}
}
