// Package auth follows the backend's login flow and issues the requests that
// advance it.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/wgram/internal/feed"
	"go.uber.org/zap"
)

// Authenticator mirrors the backend authorization state into a Machine.
type Authenticator struct {
	client  feed.Client
	machine *Machine
	logger  *zap.Logger

	// mu serializes compare-and-transition on machine.
	mu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

func NewAuthenticator(client feed.Client, m *Machine, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{client: client, machine: m, logger: logger}
}

func (a *Authenticator) Machine() *Machine { return a.machine }

// Start follows authorization updates and fetches the current state once.
func (a *Authenticator) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	ch, unsub := a.client.Subscribe(16)

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

	st, err := feed.CallAs[feed.AuthorizationState](ctx, a.client, feed.GetAuthorizationState{})
	if err != nil {
		a.logger.Warn("failed to fetch authorization state", zap.Error(err))
		return
	}
	a.Apply(feed.AuthorizationStateChanged{State: st})
}

func (a *Authenticator) Stop() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
}

// Apply handles AuthorizationStateChanged and ignores every other update. It
// is safe to call from several goroutines; a state already current is skipped.
func (a *Authenticator) Apply(u feed.Update) {
	sc, ok := u.(feed.AuthorizationStateChanged)
	if !ok {
		return
	}
	to, ok := stateOf(sc.State.Kind)
	if !ok {
		a.logger.Warn("unknown authorization state", zap.String("kind", string(sc.State.Kind)))
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.machine.Current()
	if cur.State == to && cur.Link == sc.State.Link {
		return
	}
	if err := a.machine.Transition(to, sc.State.Link); err != nil {
		a.logger.Warn("ignoring authorization update", zap.Error(err))
	}
}

// SetPhoneNumber starts phone login. A rejected number moves to InvalidNumber.
func (a *Authenticator) SetPhoneNumber(ctx context.Context, phone string) error {
	return a.submit(ctx, feed.SetPhoneNumber{PhoneNumber: phone}, InvalidNumber)
}

// CheckCode submits the login code. A rejected code moves to InvalidCode.
func (a *Authenticator) CheckCode(ctx context.Context, code string) error {
	return a.submit(ctx, feed.CheckCode{Code: code}, InvalidCode)
}

// CheckPassword submits the two-step password.
func (a *Authenticator) CheckPassword(ctx context.Context, password string) error {
	return a.submit(ctx, feed.CheckPassword{Password: password}, InvalidPassword)
}

// RequestQrCode asks for a link to confirm on another device.
func (a *Authenticator) RequestQrCode(ctx context.Context) error {
	if _, err := a.client.Call(ctx, feed.RequestQrCodeAuthentication{}); err != nil {
		return fmt.Errorf("request qr code: %w", err)
	}
	return nil
}

func (a *Authenticator) LogOut(ctx context.Context) error {
	if _, err := a.client.Call(ctx, feed.LogOut{}); err != nil {
		return fmt.Errorf("log out: %w", err)
	}
	return nil
}

func (a *Authenticator) submit(ctx context.Context, req feed.Request, onReject State) error {
	_, err := a.client.Call(ctx, req)
	if err == nil {
		return nil
	}
	if feed.CodeOf(err) == feed.CodeInvalidArgument || feed.CodeOf(err) == feed.CodeUnauthorized {
		a.mu.Lock()
		defer a.mu.Unlock()
		if terr := a.machine.Transition(onReject, ""); terr != nil {
			a.logger.Debug("cannot record rejected input", zap.Error(terr))
		}
	}
	return fmt.Errorf("%T: %w", req, err)
}

func stateOf(k feed.AuthorizationStateKind) (State, bool) {
	switch k {
	case feed.AuthWaitPhoneNumber:
		return WaitPhoneNumber, true
	case feed.AuthWaitOtherDeviceConfirmation:
		return WaitOtherDeviceConfirmation, true
	case feed.AuthWaitCode:
		return WaitCode, true
	case feed.AuthWaitPassword:
		return WaitPassword, true
	case feed.AuthReady:
		return Authorized, true
	case feed.AuthLoggingOut:
		return LoggingOut, true
	case feed.AuthClosed:
		return Unauthorized, true
	default:
		return "", false
	}
}
