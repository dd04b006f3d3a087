package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("outbox.", 10)
	defer unsub()

	b.Publish(NewEvent(KindOutboxEnqueued, "r1"))

	select {
	case evt := <-ch:
		if evt.Kind != KindOutboxEnqueued {
			t.Errorf("got kind %q, want %s", evt.Kind, KindOutboxEnqueued)
		}
		if evt.Payload != "r1" {
			t.Errorf("payload = %v, want r1", evt.Payload)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("net.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindStateChanged})
	b.Publish(Event{Kind: KindNetReconnected})

	select {
	case evt := <-ch:
		if evt.Kind != KindNetReconnected {
			t.Errorf("got kind %q, want %s", evt.Kind, KindNetReconnected)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	unsub()

	b.Publish(Event{Kind: KindSyncChats})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindSyncGeneral})
	b.Publish(Event{Kind: KindSyncChats})

	evt := <-ch
	if evt.Kind != KindSyncGeneral {
		t.Errorf("got %q, want %s", evt.Kind, KindSyncGeneral)
	}
}

func TestNilBus(t *testing.T) {
	var b *Bus
	b.Publish(Event{Kind: KindStateChanged})
	ch, unsub := b.Subscribe("state.", 1)
	defer unsub()
	select {
	case evt := <-ch:
		t.Errorf("nil bus delivered %v", evt)
	default:
	}
}
