package model

// Effect is an outbound mutation produced by the reducer. ID is unique and
// becomes the queued request's id; Body is JSON.
type Effect struct {
	ID     string
	Method string
	Path   string
	Body   []byte
}
