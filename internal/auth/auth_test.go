package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wgram/internal/bus"
	"github.com/matheus3301/wgram/internal/feed"
	"go.uber.org/zap"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if got := m.Current().State; got != Unauthorized {
		t.Errorf("initial state = %s, want UNAUTHORIZED", got)
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		path []State
		ok   bool
	}{
		{[]State{WaitPhoneNumber, WaitCode, Authorized}, true},
		{[]State{WaitPhoneNumber, WaitCode, InvalidCode, WaitCode, WaitPassword, Authorized}, true},
		{[]State{WaitOtherDeviceConfirmation, WaitOtherDeviceConfirmation, Authorized, LoggingOut, Unauthorized}, true},
		{[]State{WaitCode}, false},
		{[]State{Authorized, InvalidPassword}, false},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		var err error
		for _, s := range tt.path {
			if err = m.Transition(s, ""); err != nil {
				break
			}
		}
		if (err == nil) != tt.ok {
			t.Errorf("path %v: err = %v, want ok=%v", tt.path, err, tt.ok)
		}
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("auth.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(WaitOtherDeviceConfirmation, "wgram://link/1"); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		sc, ok := evt.Payload.(StateChange)
		if !ok {
			t.Fatalf("payload type = %T, want StateChange", evt.Payload)
		}
		if sc.From != Unauthorized || sc.To != WaitOtherDeviceConfirmation || sc.Link != "wgram://link/1" {
			t.Errorf("change = %+v", sc)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for auth.state_changed")
	}
}

type authClient struct {
	hub   *feed.Hub
	state feed.AuthorizationState
	err   error
}

func (c *authClient) Call(_ context.Context, req feed.Request) (feed.Response, error) {
	if _, ok := req.(feed.GetAuthorizationState); ok {
		return c.state, nil
	}
	if c.err != nil {
		return nil, c.err
	}
	return feed.Ok{}, nil
}

func (c *authClient) Subscribe(buf int) (<-chan feed.Update, func()) { return c.hub.Subscribe(buf) }

func TestAuthenticatorFollowsUpdates(t *testing.T) {
	c := &authClient{hub: feed.NewHub(), state: feed.AuthorizationState{Kind: feed.AuthWaitPhoneNumber}}
	a := NewAuthenticator(c, NewMachine(nil), zap.NewNop())
	a.Start(context.Background())
	defer a.Stop()

	if got := a.Machine().Current().State; got != WaitPhoneNumber {
		t.Fatalf("state after start = %s, want WAIT_PHONE_NUMBER", got)
	}

	c.hub.Publish(feed.AuthorizationStateChanged{State: feed.AuthorizationState{Kind: feed.AuthWaitCode}})
	c.hub.Publish(feed.AuthorizationStateChanged{State: feed.AuthorizationState{Kind: feed.AuthReady}})

	deadline := time.Now().Add(time.Second)
	for a.Machine().Current().State != Authorized {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want AUTHORIZED", a.Machine().Current().State)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRejectedCodeMovesToInvalidCode(t *testing.T) {
	c := &authClient{hub: feed.NewHub(), err: feed.Errorf(feed.CodeInvalidArgument, "PHONE_CODE_INVALID")}
	m := NewMachine(nil)
	a := NewAuthenticator(c, m, zap.NewNop())
	a.Apply(feed.AuthorizationStateChanged{State: feed.AuthorizationState{Kind: feed.AuthWaitPhoneNumber}})
	a.Apply(feed.AuthorizationStateChanged{State: feed.AuthorizationState{Kind: feed.AuthWaitCode}})

	if err := a.CheckCode(context.Background(), "00000"); err == nil {
		t.Fatal("CheckCode should fail")
	}
	if got := m.Current().State; got != InvalidCode {
		t.Errorf("state = %s, want INVALID_CODE", got)
	}
}

func TestUnavailableBackendKeepsState(t *testing.T) {
	c := &authClient{hub: feed.NewHub(), err: feed.ErrUnavailable}
	m := NewMachine(nil)
	a := NewAuthenticator(c, m, zap.NewNop())
	a.Apply(feed.AuthorizationStateChanged{State: feed.AuthorizationState{Kind: feed.AuthWaitPhoneNumber}})

	if err := a.SetPhoneNumber(context.Background(), "+1"); err == nil {
		t.Fatal("SetPhoneNumber should fail")
	}
	if got := m.Current().State; got != WaitPhoneNumber {
		t.Errorf("state = %s, want WAIT_PHONE_NUMBER", got)
	}
}

func TestConcurrentApplyTransitionsOnce(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("auth.", 64)
	defer unsub()
	a := NewAuthenticator(&authClient{hub: feed.NewHub()}, NewMachine(b), zap.NewNop())

	u := feed.AuthorizationStateChanged{State: feed.AuthorizationState{
		Kind: feed.AuthWaitOtherDeviceConfirmation, Link: "wgram://link/1",
	}}
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Apply(u)
		}()
	}
	wg.Wait()

	if n := len(ch); n != 1 {
		t.Errorf("state_changed events = %d, want 1", n)
	}
	if got := a.Machine().Current(); got.State != WaitOtherDeviceConfirmation || got.Link != "wgram://link/1" {
		t.Errorf("state = %+v", got)
	}
}
