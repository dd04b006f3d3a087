package gateway

import "fmt"

// Kind classifies the result of a call to the remote authority.
type Kind int

const (
	// Confirmed means the authority accepted the request.
	Confirmed Kind = iota
	// Duplicate means the authority already had the record.
	Duplicate
	// Rejected means the authority refused the request; retrying won't help.
	Rejected
	// Unreachable means no answer was obtained; the request may be retried.
	Unreachable
)

func (k Kind) String() string {
	switch k {
	case Confirmed:
		return "confirmed"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	case Unreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the classified result of a remote call.
type Outcome struct {
	Kind    Kind
	Status  int
	Payload []byte
	Reason  string
}

// Delivered reports whether the authority now holds the mutation.
func (o Outcome) Delivered() bool {
	return o.Kind == Confirmed || o.Kind == Duplicate
}

func (o Outcome) String() string {
	if o.Reason != "" {
		return fmt.Sprintf("%s (%d): %s", o.Kind, o.Status, o.Reason)
	}
	return fmt.Sprintf("%s (%d)", o.Kind, o.Status)
}

// Classify maps an HTTP response status to an outcome kind. A 404 answering
// a DELETE means the record is already gone.
func Classify(method string, status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return Confirmed
	case status == 409:
		return Duplicate
	case status == 404 && method == "DELETE":
		return Confirmed
	case status == 408 || status == 429:
		return Unreachable
	case status >= 400 && status < 500:
		return Rejected
	default:
		return Unreachable
	}
}
