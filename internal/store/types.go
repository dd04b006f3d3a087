package store

import "time"

// QueuedRequest is an outbound mutation awaiting delivery to the remote
// authority. Seq orders requests FIFO; ID is unique.
type QueuedRequest struct {
	Seq        int64
	ID         string
	Method     string
	URL        string
	Body       []byte
	EnqueuedAt time.Time
}

// Credential keys.
const (
	KeyToken  = "token"
	KeyUserID = "user_id"
)
