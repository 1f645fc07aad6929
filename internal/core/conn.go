package core

import "context"

// Conn is one client's transport channel as seen by the core layer.
// The core never owns a Conn; it only keys state by it.
type Conn interface {
	// ID is a stable identifier used for logging.
	ID() string
	// Send writes one serialized record. It must be safe for concurrent use
	// and must report failures instead of panicking.
	Send(ctx context.Context, payload []byte) error
	// IsOpen reports whether the channel can still accept sends.
	IsOpen() bool
}
