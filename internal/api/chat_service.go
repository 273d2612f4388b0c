package api

import (
	"context"
	"strings"
	"time"

	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/history"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

const (
	defaultChatLimit   = 50
	defaultSearchLimit = 20
	// settleTimeout bounds how long a call waits for a projection to apply
	// the updates its request caused.
	settleTimeout = 500 * time.Millisecond
	quietWindow   = 20 * time.Millisecond
	// backfillTimeout bounds how long OpenChat and PullOlder wait for a page.
	backfillTimeout = 10 * time.Second
)

func (s *Service) ListChats(ctx context.Context, req *ListChatsRequest) (*ChatList, error) {
	if s.c.Chats == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "chat list not initialized")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultChatLimit
	}

	more := true
	if req.Load || len(s.c.Chats.IDs().Load()) == 0 {
		changed, stop := s.c.Chats.IDs().Changes()
		var err error
		more, err = s.c.Chats.Load(ctx, limit)
		if err != nil {
			stop()
			return nil, toStatus("load chats", err)
		}
		if more {
			awaitChange(ctx, changed)
		}
		stop()
	}

	ordered := s.c.Chats.Ordered()
	out := &ChatList{Chats: make([]Chat, 0, len(ordered)), More: more}
	for _, c := range ordered {
		out.Chats = append(out.Chats, wireChat(c))
	}
	return out, nil
}

func (s *Service) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "query is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	found, err := feed.CallAs[feed.FoundMessages](ctx, s.c.Client, feed.SearchMessages{
		ChatID: req.ChatID,
		Query:  req.Query,
		Limit:  limit,
	})
	if err != nil {
		return nil, toStatus("search", err)
	}
	out := &SearchResponse{Total: found.TotalCount, Hits: make([]SearchHit, 0, len(found.Messages))}
	for _, m := range found.Messages {
		out.Hits = append(out.Hits, SearchHit{Message: s.wireMessage(m, 0), Snippet: found.Snippets[m.ID]})
	}
	return out, nil
}

func wireChat(c feed.Chat) Chat {
	out := Chat{Chat: c}
	if c.LastMessage != nil && c.LastMessage.Content != nil {
		out.LastText = feed.Summary(c.LastMessage.Content)
	}
	return out
}

// awaitChange waits until a projection has applied a burst of changes: the
// first signal starts a quiet window that every later signal extends. It gives
// up after settleTimeout.
func awaitChange(ctx context.Context, changed <-chan struct{}) {
	deadline := time.NewTimer(settleTimeout)
	defer deadline.Stop()
	var quiet <-chan time.Time
	for {
		select {
		case <-changed:
			quiet = time.After(quietWindow)
		case <-quiet:
			return
		case <-deadline.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

// awaitBackfill waits until the page requested by h.PullOlder has been merged
// or has failed, or the cache was bound to another chat.
func awaitBackfill(ctx context.Context, h *history.Cache) {
	changed, stop := h.View().Changes()
	defer stop()
	deadline := time.NewTimer(backfillTimeout)
	defer deadline.Stop()
	for h.View().Load().Loading {
		select {
		case <-changed:
		case <-deadline.C:
			return
		case <-ctx.Done():
			return
		}
	}
}
