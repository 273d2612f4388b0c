package backend

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/matheus3301/wgram/internal/feed"
)

const loopbackAuthKey = "loopback_auth"

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{5}$`)
)

func (l *Local) initialAuthState() feed.AuthorizationState {
	if l.pairer != nil {
		if l.pairer.IsLoggedIn() {
			return feed.AuthorizationState{Kind: feed.AuthReady}
		}
		return feed.AuthorizationState{Kind: feed.AuthWaitOtherDeviceConfirmation}
	}
	v, err := l.db.GetSyncState(loopbackAuthKey)
	if err == nil && v == string(feed.AuthWaitPhoneNumber) {
		return feed.AuthorizationState{Kind: feed.AuthWaitPhoneNumber}
	}
	return feed.AuthorizationState{Kind: feed.AuthReady}
}

// setAuthLocked publishes a new authorization state. Repeats are dropped.
func (l *Local) setAuthLocked(st feed.AuthorizationState) {
	if l.auth == st {
		return
	}
	l.auth = st
	l.hub.Publish(feed.AuthorizationStateChanged{State: st})
	if l.pairer == nil {
		switch st.Kind {
		case feed.AuthReady, feed.AuthWaitPhoneNumber:
			if err := l.db.SetSyncState(loopbackAuthKey, string(st.Kind)); err != nil {
				l.logger.Warn("failed to persist auth state", zap.Error(err))
			}
		}
	}
}

// SetAuthorization records an authorization state reported by the transport.
func (l *Local) SetAuthorization(st feed.AuthorizationState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setAuthLocked(st)
}

func (l *Local) setPhoneNumber(phone string) (feed.Response, error) {
	if l.pairer != nil {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "phone login is not supported, use QR pairing")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.auth.Kind != feed.AuthWaitPhoneNumber {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "unexpected phone number in state %s", l.auth.Kind)
	}
	if !phonePattern.MatchString(phone) {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "PHONE_NUMBER_INVALID")
	}
	l.setAuthLocked(feed.AuthorizationState{Kind: feed.AuthWaitCode})
	return feed.Ok{}, nil
}

// checkCode accepts any five digit code in loopback mode.
func (l *Local) checkCode(code string) (feed.Response, error) {
	if l.pairer != nil {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "code login is not supported, use QR pairing")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.auth.Kind != feed.AuthWaitCode {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "unexpected code in state %s", l.auth.Kind)
	}
	if !codePattern.MatchString(code) {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "PHONE_CODE_INVALID")
	}
	l.setAuthLocked(feed.AuthorizationState{Kind: feed.AuthReady})
	return feed.Ok{}, nil
}

func (l *Local) requestQrCode(ctx context.Context) (feed.Response, error) {
	if l.pairer == nil {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "QR pairing needs the whatsapp backend")
	}
	if l.pairer.IsLoggedIn() {
		return nil, feed.Errorf(feed.CodeInvalidArgument, "already logged in")
	}
	if err := l.pairer.StartPairing(ctx); err != nil {
		return nil, feed.Errorf(feed.CodeUnavailable, "start pairing: %v", err)
	}
	return feed.Ok{}, nil
}

func (l *Local) logOut(ctx context.Context) (feed.Response, error) {
	l.SetAuthorization(feed.AuthorizationState{Kind: feed.AuthLoggingOut})
	if l.pairer != nil {
		if err := l.pairer.Logout(ctx); err != nil {
			l.logger.Warn("logout failed", zap.Error(err))
		}
		l.SetAuthorization(feed.AuthorizationState{Kind: feed.AuthWaitOtherDeviceConfirmation})
		return feed.Ok{}, nil
	}
	l.SetAuthorization(feed.AuthorizationState{Kind: feed.AuthWaitPhoneNumber})
	return feed.Ok{}, nil
}
