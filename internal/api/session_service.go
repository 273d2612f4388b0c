// Package api serves the daemon's projections over gRPC.
package api

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/wgram/internal/auth"
	"github.com/matheus3301/wgram/internal/bus"
	"github.com/matheus3301/wgram/internal/chats"
	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/history"
	"github.com/matheus3301/wgram/internal/notify"
	"github.com/matheus3301/wgram/internal/users"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Components are the projections the service reads from.
type Components struct {
	Client  feed.Client
	Chats   *chats.Projection
	History *history.Cache
	Notify  *notify.Aggregator
	Auth    *auth.Authenticator
	Users   *users.Directory
	// PhoneNumber reports the linked account, if any.
	PhoneNumber func() string
}

// Service implements ProjectionServer.
type Service struct {
	sessionName string
	backend     string
	startedAt   time.Time
	c           Components
	bus         *bus.Bus
	logger      *zap.Logger

	// openMu serialises rebinding the history cache.
	openMu sync.Mutex
}

// NewService creates the projection service.
func NewService(sessionName, backend string, c Components, b *bus.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessionName: sessionName,
		backend:     backend,
		startedAt:   time.Now(),
		c:           c,
		bus:         b,
		logger:      logger,
	}
}

func (s *Service) GetStatus(_ context.Context, _ *StatusRequest) (*Status, error) {
	resp := &Status{
		Session:  s.sessionName,
		Backend:  s.backend,
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if s.c.Auth != nil {
		resp.Auth = s.c.Auth.Machine().Current()
	}
	if s.c.PhoneNumber != nil {
		resp.PhoneNumber = s.c.PhoneNumber()
	}
	if s.c.Chats != nil {
		resp.ChatCount = int32(len(s.c.Chats.IDs().Load()))
	}
	if s.c.History != nil {
		resp.OpenChatID = s.c.History.ChatID()
	}
	if s.c.Notify != nil {
		for _, r := range s.c.Notify.Rendered().Load() {
			resp.Notifications += r.TotalCount
		}
	}
	if s.bus != nil {
		resp.DroppedEvents = s.bus.Dropped()
	}
	return resp, nil
}

func (s *Service) Authenticate(ctx context.Context, req *AuthRequest) (*AuthState, error) {
	if s.c.Auth == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "authenticator not initialized")
	}
	var err error
	switch {
	case req.LogOut:
		err = s.c.Auth.LogOut(ctx)
	case req.QR:
		err = s.c.Auth.RequestQrCode(ctx)
	case req.PhoneNumber != "":
		err = s.c.Auth.SetPhoneNumber(ctx, req.PhoneNumber)
	case req.Code != "":
		err = s.c.Auth.CheckCode(ctx, req.Code)
	case req.Password != "":
		err = s.c.Auth.CheckPassword(ctx, req.Password)
	}
	if err != nil {
		return nil, toStatus("authenticate", err)
	}
	// Answer with the state after this step even if the update is still
	// queued for the authenticator.
	if s.c.Client != nil {
		if st, err := feed.CallAs[feed.AuthorizationState](ctx, s.c.Client, feed.GetAuthorizationState{}); err == nil {
			s.c.Auth.Apply(feed.AuthorizationStateChanged{State: st})
		}
	}
	return &AuthState{Snapshot: s.c.Auth.Machine().Current()}, nil
}
