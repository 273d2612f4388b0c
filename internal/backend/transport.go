package backend

import (
	"context"

	"github.com/google/uuid"
)

// Transport delivers outgoing messages to the remote network.
type Transport interface {
	SendText(ctx context.Context, chatJID, text, replyTo string) (remoteID string, err error)
	Revoke(ctx context.Context, chatJID, remoteID string) error
}

// Pairer links the backend to a remote account. A nil Pairer selects the
// loopback login flow.
type Pairer interface {
	IsLoggedIn() bool
	StartPairing(ctx context.Context) error
	Logout(ctx context.Context) error
}

// Loopback is a Transport that acknowledges every message locally. It backs
// the "loopback" backend used for development and tests.
type Loopback struct{}

func (Loopback) SendText(context.Context, string, string, string) (string, error) {
	return "LB-" + uuid.NewString(), nil
}

func (Loopback) Revoke(context.Context, string, string) error { return nil }
