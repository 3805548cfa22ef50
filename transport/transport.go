// Package transport abstracts the byte-oriented USB serial link the log
// forwarder writes to. One implementation exists per hardware family; the
// in-memory Pipe stands in for hardware in tests and host-side harnesses.
package transport

// State describes the host-visible connection state of the link.
type State uint8

const (
	// Disconnected means no host is attached or the port is closed.
	Disconnected State = iota
	// Connected means the host has opened the port and writes may proceed.
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Transport is the capability set the forwarder needs from a USB CDC-ACM
// bulk-IN endpoint: send one packet, and observe connection state changes.
type Transport interface {
	// MaxPacketSize returns the negotiated per-packet byte limit. Constant
	// for the lifetime of the transport.
	MaxPacketSize() int

	// State returns the current connection state without blocking.
	State() State

	// Changed returns the state-change wake channel. A token is delivered
	// after any state transition; tokens are coalesced, so after receiving
	// one the caller must re-read State. The producer side is a non-blocking
	// send, safe from interrupt-context USB event handlers.
	Changed() <-chan struct{}

	// Write sends one packet of at most MaxPacketSize bytes. A zero-length
	// packet is valid and terminates a bulk transfer. Write blocks until the
	// packet is accepted or the connection drops; it returns ErrDisconnected
	// or ErrStalled when the host went away, and ErrPacketTooLarge when the
	// precondition is violated.
	Write(packet []byte) error
}

// WaitConnected suspends until t reports Connected, returning immediately if
// it already does. It returns ErrClosed if stop is signalled first.
func WaitConnected(t Transport, stop <-chan struct{}) error {
	for t.State() != Connected {
		select {
		case <-t.Changed():
		case <-stop:
			return ErrClosed
		}
	}
	return nil
}
