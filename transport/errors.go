package transport

import "errors"

var (
	// ErrDisconnected reports that the host detached. Bytes handed to the
	// transport before the error are considered lost.
	ErrDisconnected = errors.New("transport: disconnected")

	// ErrStalled reports a lower-level USB stall or endpoint error. The
	// forwarder treats it exactly like ErrDisconnected.
	ErrStalled = errors.New("transport: endpoint stalled")

	// ErrPacketTooLarge reports a Write of more than MaxPacketSize bytes.
	ErrPacketTooLarge = errors.New("transport: packet exceeds max packet size")

	// ErrClosed reports that a wait was abandoned because the caller is
	// shutting down.
	ErrClosed = errors.New("transport: closed")
)
