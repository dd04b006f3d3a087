package status

import (
	"testing"
	"time"

	"github.com/matheus3301/clinicsync/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, SignedOut},
		{Booting, Connecting},
		{SignedOut, Connecting},
		{Connecting, Online},
		{Connecting, Offline},
		{Online, Offline},
		{Offline, Online},
		{Online, SignedOut},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Online); err == nil {
		t.Error("Transition(BOOTING -> ONLINE) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state = %s, want BOOTING (unchanged)", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(SignedOut); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
		}
		if change.From != Booting || change.To != SignedOut {
			t.Errorf("change = %+v, want BOOTING->SIGNED_OUT", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status event")
	}
}

func TestMarkReachableIgnoredWhenSignedOut(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, SignedOut)
	m.MarkReachable(true)
	if m.Current() != SignedOut {
		t.Errorf("state = %s, want SIGNED_OUT", m.Current())
	}
}

// TestReconnectPublished verifies that only an OFFLINE -> ONLINE move
// announces net.reconnected, which is what triggers an outbox drain.
func TestReconnectPublished(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	walkTo(t, m, Connecting)

	ch, unsub := b.Subscribe("net.", 10)
	defer unsub()

	m.MarkReachable(true) // CONNECTING -> ONLINE: no reconnect
	m.MarkReachable(true) // unchanged
	m.MarkReachable(false)
	m.MarkReachable(true)

	var kinds []string
	deadline := time.After(time.Second)
	for len(kinds) < 4 {
		select {
		case evt := <-ch:
			kinds = append(kinds, evt.Kind)
		case <-deadline:
			t.Fatalf("got events %v, want 4", kinds)
		}
	}
	want := []string{bus.KindNetOnline, bus.KindNetOffline, bus.KindNetOnline, bus.KindNetReconnected}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
	if m.Current() != Online {
		t.Errorf("state = %s, want ONLINE", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:    {},
		SignedOut:  {SignedOut},
		Connecting: {Connecting},
		Online:     {Connecting, Online},
		Offline:    {Connecting, Offline},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
