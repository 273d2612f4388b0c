package api

import (
	"context"
	"strings"

	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/history"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// OpenChat binds the history cache to a chat, tells the backend it is on
// screen and loads the first page.
func (s *Service) OpenChat(ctx context.Context, req *OpenChatRequest) (*HistoryPage, error) {
	if s.c.History == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "history not initialized")
	}
	if req.ChatID <= 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "chat_id is required")
	}
	if err := s.open(ctx, req.ChatID); err != nil {
		return nil, err
	}
	return s.historyPage(), nil
}

func (s *Service) open(ctx context.Context, chatID feed.ChatID) error {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	h := s.c.History
	prev := h.ChatID()
	if prev == chatID {
		return nil
	}
	if prev != 0 {
		if err := h.Close(ctx); err != nil {
			s.logger.Warn("failed to close chat", zap.Int64("chat_id", int64(prev)), zap.Error(err))
		}
	}
	h.Initialize(chatID)
	if err := h.Open(ctx); err != nil {
		h.Initialize(0)
		return toStatus("open chat", err)
	}

	if h.PullOlder(ctx) {
		awaitBackfill(ctx, h)
	}
	s.logger.Info("chat opened", zap.Int64("chat_id", int64(chatID)))
	return nil
}

func (s *Service) GetHistory(_ context.Context, req *HistoryRequest) (*HistoryPage, error) {
	if err := s.requireOpen(req.ChatID); err != nil {
		return nil, err
	}
	return s.historyPage(), nil
}

func (s *Service) PullOlder(ctx context.Context, req *HistoryRequest) (*PullResponse, error) {
	if err := s.requireOpen(req.ChatID); err != nil {
		return nil, err
	}
	requested := s.c.History.PullOlder(ctx)
	if requested {
		awaitBackfill(ctx, s.c.History)
	}
	return &PullResponse{Requested: requested}, nil
}

// SendText sends to the open chat, opening req.ChatID first when it differs.
func (s *Service) SendText(ctx context.Context, req *SendTextRequest) (*SendResponse, error) {
	if s.c.History == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "history not initialized")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "text is required")
	}
	if req.ChatID != 0 {
		if err := s.open(ctx, req.ChatID); err != nil {
			return nil, err
		}
	}
	f := s.c.History.Send(ctx, feed.Text{Text: req.Text}, history.SendOptions{
		ReplyToMessageID: req.ReplyTo,
		Options:          feed.SendOptions{DisableNotification: req.Silent},
	})
	return s.settleSend(ctx, f, req.Wait)
}

func (s *Service) Retry(ctx context.Context, req *RetryRequest) (*SendResponse, error) {
	if err := s.requireOpen(0); err != nil {
		return nil, err
	}
	f, err := s.c.History.Retry(ctx, req.MessageID)
	if err != nil {
		return nil, toStatus("retry", err)
	}
	return s.settleSend(ctx, f, req.Wait)
}

func (s *Service) settleSend(ctx context.Context, f *feed.Future[feed.Message], wait bool) (*SendResponse, error) {
	if !wait {
		select {
		case <-f.Done():
			// Rejected before reaching the backend, e.g. nothing is open.
		default:
			return &SendResponse{Accepted: true}, nil
		}
	}
	m, err := f.Wait(ctx)
	if err != nil {
		return nil, toStatus("send", err)
	}
	wm := s.wireMessage(m, 0)
	return &SendResponse{Accepted: true, Message: &wm}, nil
}

func (s *Service) DeleteMessages(ctx context.Context, req *DeleteRequest) (*Empty, error) {
	if err := s.requireOpen(0); err != nil {
		return nil, err
	}
	if len(req.MessageIDs) == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "message_ids is required")
	}
	if err := s.c.History.Delete(ctx, req.MessageIDs, req.Revoke); err != nil {
		return nil, toStatus("delete", err)
	}
	return &Empty{}, nil
}

func (s *Service) MarkRead(ctx context.Context, req *MarkReadRequest) (*Empty, error) {
	if err := s.requireOpen(0); err != nil {
		return nil, err
	}
	ids := req.MessageIDs
	if len(ids) == 0 {
		ids = s.c.History.View().Load().IDs
	}
	if err := s.c.History.MarkViewed(ctx, ids); err != nil {
		return nil, toStatus("mark read", err)
	}
	return &Empty{}, nil
}

func (s *Service) ListNotifications(_ context.Context, _ *Empty) (*NotificationList, error) {
	if s.c.Notify == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "notifications not initialized")
	}
	return &NotificationList{Groups: s.c.Notify.Rendered().Load()}, nil
}

func (s *Service) MarkNotificationsRead(ctx context.Context, req *MarkNotificationsRequest) (*Empty, error) {
	if s.c.Notify == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "notifications not initialized")
	}
	if err := s.c.Notify.MarkRead(ctx, req.GroupID); err != nil {
		return nil, toStatus("mark notifications read", err)
	}
	return &Empty{}, nil
}

// requireOpen fails unless a chat is open and, when chatID is set, it is
// that chat.
func (s *Service) requireOpen(chatID feed.ChatID) error {
	if s.c.History == nil {
		return grpcstatus.Error(codes.Unavailable, "history not initialized")
	}
	bound := s.c.History.ChatID()
	if bound == 0 {
		return grpcstatus.Error(codes.FailedPrecondition, "no chat is open")
	}
	if chatID != 0 && chatID != bound {
		return grpcstatus.Errorf(codes.FailedPrecondition, "chat %d is not open (open chat is %d)", chatID, bound)
	}
	return nil
}

func (s *Service) historyPage() *HistoryPage {
	v := s.c.History.View().Load()
	page := &HistoryPage{
		ChatID:        v.ChatID,
		Messages:      make([]Message, 0, len(v.IDs)),
		Exhausted:     v.Exhausted,
		BackfillError: v.BackfillError,
	}
	for i, id := range v.IDs {
		m, ok := v.Messages[id]
		if !ok {
			continue
		}
		page.Messages = append(page.Messages, s.wireMessage(m, v.Keys[i]))
	}
	return page
}

func (s *Service) wireMessage(m feed.Message, key history.Key) Message {
	out := Message{Message: m, Key: uint64(key)}
	if m.Content != nil {
		out.ContentType = m.Content.ContentType()
		out.Text = feed.Summary(m.Content)
		if b, err := feed.MarshalContent(m.Content); err == nil {
			out.Content = b
		}
	}
	if s.c.Users != nil && m.Sender.UserID != 0 {
		out.SenderName = s.c.Users.DisplayName(m.Sender.UserID)
	}
	return out
}
