package backend

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/store"
)

const outboxPollInterval = 500 * time.Millisecond

// Sender drains the outbox through the transport and reconciles each pending
// message with its outcome.
type Sender struct {
	local  *Local
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func newSender(l *Local, logger *zap.Logger) *Sender {
	return &Sender{local: l, logger: logger}
}

// Start begins draining the outbox. Entries interrupted by a restart are
// retried.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for an in-flight send to finish.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(outboxPollInterval)
	defer ticker.Stop()

	s.processPending(ctx)
	for {
		select {
		case <-ticker.C:
		case <-s.local.wake:
		case <-ctx.Done():
			return
		}
		s.processPending(ctx)
	}
}

func (s *Sender) processPending(ctx context.Context) {
	db := s.local.db
	pending, err := db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		serverMsgID, err := s.send(ctx, entry)
		if err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			if merr := db.MarkOutboxFailed(entry.ClientMsgID, err.Error()); merr != nil {
				s.logger.Error("failed to mark failed", zap.Error(merr))
			}
			s.local.failSend(entry, err)
			continue
		}

		if err := db.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}
		s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", serverMsgID))
		s.local.confirmSend(entry, serverMsgID)
	}
}

var errMessageGone = errors.New("message was deleted before sending")

func (s *Sender) send(ctx context.Context, entry store.OutboxEntry) (string, error) {
	db := s.local.db
	chat, err := db.GetChat(entry.ChatID)
	if err != nil {
		return "", err
	}
	m, err := db.GetMessage(entry.MessageID)
	if err != nil {
		return "", err
	}
	if chat == nil || m == nil {
		return "", errMessageGone
	}
	content, err := feed.UnmarshalContent([]byte(entry.Content))
	if err != nil {
		return "", err
	}
	text, ok := content.(feed.Text)
	if !ok {
		return "", feed.Errorf(feed.CodeInvalidArgument, "content %s cannot be sent", content.ContentType())
	}
	var replyTo string
	if m.ReplyToID != 0 {
		if q, err := db.GetMessage(m.ReplyToID); err == nil && q != nil {
			replyTo = q.RemoteID
		}
	}
	return s.local.transport.SendText(ctx, chat.JID, text.Text, replyTo)
}

// confirmSend swaps the pending row for the confirmed one and announces it.
func (l *Local) confirmSend(entry store.OutboxEntry, serverMsgID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	confirmed, err := l.db.ConfirmMessage(entry.MessageID, serverMsgID, time.Now().UnixMilli())
	if err != nil {
		l.logger.Error("failed to confirm message", zap.Error(err), zap.Int64("message_id", entry.MessageID))
		return
	}
	if confirmed == nil {
		// Deleted while in flight.
		return
	}
	if _, err := l.db.TouchChat(confirmed.ChatID, confirmed.ID, confirmed.Timestamp); err != nil {
		l.logger.Warn("failed to touch chat", zap.Error(err))
	}
	l.hub.Publish(feed.MessageSendSucceeded{
		OldMessageID: feed.MessageID(entry.MessageID),
		Message:      toFeedMessage(*confirmed),
	})
	if err := l.publishLastMessageLocked(confirmed.ChatID); err != nil {
		l.logger.Warn("failed to publish last message", zap.Error(err))
	}
}

// failSend keeps the message with a Failed state and announces the error.
func (l *Local) failSend(entry store.OutboxEntry, cause error) {
	code := feed.CodeOf(cause)
	if errors.Is(cause, context.DeadlineExceeded) {
		code = feed.CodeUnavailable
	}
	sendErr := feed.SendError{Code: code, Message: cause.Error()}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.db.MarkMessageFailed(entry.MessageID, sendErr.Code, sendErr.Message); err != nil {
		l.logger.Error("failed to mark message failed", zap.Error(err))
		return
	}
	m, err := l.db.GetMessage(entry.MessageID)
	if err != nil || m == nil {
		return
	}
	l.hub.Publish(feed.MessageSendFailed{
		OldMessageID: feed.MessageID(entry.MessageID),
		Message:      toFeedMessage(*m),
		Error:        sendErr,
	})
}
