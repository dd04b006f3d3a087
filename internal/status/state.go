package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/clinicsync/internal/bus"
)

// State represents the daemon's session/connectivity state.
type State string

const (
	Booting    State = "BOOTING"
	SignedOut  State = "SIGNED_OUT"
	Connecting State = "CONNECTING"
	Online     State = "ONLINE"
	Offline    State = "OFFLINE"
)

var validTransitions = map[State][]State{
	Booting:    {SignedOut, Connecting},
	SignedOut:  {Connecting},
	Connecting: {Online, Offline, SignedOut},
	Online:     {Offline, SignedOut},
	Offline:    {Online, SignedOut},
}

// Machine tracks and enforces state transitions. Connectivity is not probed
// directly: the gateway reports every call's outcome through MarkReachable.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsOffline reports whether the last remote call found the authority unreachable.
func (m *Machine) IsOffline() bool {
	return m.Current() == Offline
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to)
}

// MarkReachable records the connectivity observed by a remote call. It is a
// no-op while booting or signed out. Going from OFFLINE to ONLINE publishes
// net.reconnected so the outbox can drain.
func (m *Machine) MarkReachable(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	switch from {
	case Connecting, Online, Offline:
	default:
		return
	}
	to := Offline
	if ok {
		to = Online
	}
	if from == to {
		return
	}
	if err := m.transitionLocked(to); err != nil {
		return
	}
	if to == Online {
		m.bus.Publish(bus.NewEvent(bus.KindNetOnline, nil))
		if from == Offline {
			m.bus.Publish(bus.NewEvent(bus.KindNetReconnected, nil))
		}
	} else {
		m.bus.Publish(bus.NewEvent(bus.KindNetOffline, nil))
	}
}

func (m *Machine) transitionLocked(to State) error {
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Publish(bus.NewEvent(bus.KindStatusChanged, StatusChange{From: from, To: to}))
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
