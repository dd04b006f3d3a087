package bus

import "time"

// Event kinds published by the sync core. Subscribers filter by prefix
// ("net.", "outbox.", "sync.", ...).
const (
	KindStateChanged        = "state.changed"
	KindNetOnline           = "net.online"
	KindNetOffline          = "net.offline"
	KindNetReconnected      = "net.reconnected"
	KindOutboxEnqueued      = "outbox.enqueued"
	KindOutboxSent          = "outbox.sent"
	KindOutboxDropped       = "outbox.dropped"
	KindSyncGeneral         = "sync.general"
	KindSyncChats           = "sync.chats"
	KindSyncSkipped         = "sync.skipped"
	KindNotificationCreated = "notification.created"
	KindStatusChanged       = "session.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
