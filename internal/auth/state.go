package auth

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wgram/internal/bus"
)

// State is a step of the login flow.
type State string

const (
	Unauthorized                State = "UNAUTHORIZED"
	WaitPhoneNumber             State = "WAIT_PHONE_NUMBER"
	WaitOtherDeviceConfirmation State = "WAIT_OTHER_DEVICE_CONFIRMATION"
	WaitCode                    State = "WAIT_CODE"
	WaitPassword                State = "WAIT_PASSWORD"
	InvalidNumber               State = "INVALID_NUMBER"
	InvalidCode                 State = "INVALID_CODE"
	InvalidPassword             State = "INVALID_PASSWORD"
	Authorized                  State = "AUTHORIZED"
	LoggingOut                  State = "LOGGING_OUT"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Unauthorized:                {WaitPhoneNumber, WaitOtherDeviceConfirmation, Authorized},
	WaitPhoneNumber:             {WaitOtherDeviceConfirmation, WaitCode, InvalidNumber, Authorized, Unauthorized},
	WaitOtherDeviceConfirmation: {WaitOtherDeviceConfirmation, WaitPhoneNumber, WaitPassword, Authorized, Unauthorized},
	WaitCode:                    {WaitPassword, InvalidCode, Authorized, WaitPhoneNumber, Unauthorized},
	WaitPassword:                {InvalidPassword, Authorized, WaitPhoneNumber, Unauthorized},
	InvalidNumber:               {InvalidNumber, WaitPhoneNumber, WaitCode, WaitOtherDeviceConfirmation, Unauthorized},
	InvalidCode:                 {InvalidCode, WaitCode, WaitPassword, Authorized, WaitPhoneNumber, Unauthorized},
	InvalidPassword:             {InvalidPassword, WaitPassword, Authorized, Unauthorized},
	Authorized:                  {LoggingOut, Unauthorized, WaitPhoneNumber, WaitOtherDeviceConfirmation},
	LoggingOut:                  {Unauthorized, WaitPhoneNumber, WaitOtherDeviceConfirmation},
}

// Snapshot is the current state plus the device-confirmation link, if any.
type Snapshot struct {
	State State  `json:"state"`
	Link  string `json:"link,omitempty"`
}

// Machine tracks and enforces login state transitions.
type Machine struct {
	mu      sync.RWMutex
	current Snapshot
	bus     *bus.Bus
}

// NewMachine creates a machine in the Unauthorized state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Snapshot{State: Unauthorized},
		bus:     b,
	}
}

func (m *Machine) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition moves to a new state. Returns error if the transition is invalid.
func (m *Machine) Transition(to State, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current.State], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current.State, to)
	}
	from := m.current.State
	m.current = Snapshot{State: to, Link: link}
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindAuthStateChanged,
			Timestamp: time.Now(),
			Payload: StateChange{
				From: from,
				To:   to,
				Link: link,
			},
		})
	}
	return nil
}

// StateChange is the payload for auth.state_changed events.
type StateChange struct {
	From State
	To   State
	Link string
}
