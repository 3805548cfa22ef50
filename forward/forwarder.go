package forward

import (
	"errors"

	"usblog/logbuf"
	"usblog/transport"
)

// scratchSize bounds how many buffered bytes one forwarding iteration drains.
const scratchSize = 512

// FaultHandler receives device-level transport errors that are neither a
// disconnect nor a stall. It must not log through the forwarded channel.
type FaultHandler func(error)

// Forwarder is the long-lived task that relays ring contents to the
// transport. It suspends when the ring is empty or the host is not
// connected, and resumes on the corresponding wake signal; it never busy
// waits and never blocks log producers.
type Forwarder struct {
	ring *logbuf.Ring
	tr   transport.Transport

	fault              FaultHandler
	connect            func()
	disconnect         func()
	discardOnReconnect bool

	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a Forwarder draining ring into tr. Call Start to launch it.
func New(ring *logbuf.Ring, tr transport.Transport) *Forwarder {
	return &Forwarder{
		ring:     ring,
		tr:       tr,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// SetFaultHandler registers the out-of-band channel for permanent transport
// failures. Must be called before Start.
func (f *Forwarder) SetFaultHandler(h FaultHandler) {
	f.fault = h
}

// SetConnectHandler registers a function invoked on the forwarder goroutine
// each time the transport reports Connected, after any configured discard.
// Integrations use it to restart their encoder so the first frame after a
// reattach is well formed. Must be called before Start.
func (f *Forwarder) SetConnectHandler(h func()) {
	f.connect = h
}

// SetDisconnectHandler registers a function invoked on the forwarder
// goroutine each time it observes the connection drop, before it suspends
// to wait for the host to reattach. Must be called before Start.
func (f *Forwarder) SetDisconnectHandler(h func()) {
	f.disconnect = h
}

// SetDiscardOnReconnect controls whether buffered bytes accumulated across a
// disconnect are dropped when the host reattaches. Dropping avoids replaying
// a stale, possibly mid-frame backlog to a freshly attached host. Must be
// called before Start.
func (f *Forwarder) SetDiscardOnReconnect(discard bool) {
	f.discardOnReconnect = discard
}

// Start launches the forwarding task.
func (f *Forwarder) Start() {
	go f.run()
}

// Close stops the forwarding task and waits for it to finish. The task may
// be suspended at any wait point; Close unblocks it.
func (f *Forwarder) Close() {
	close(f.stopChan)
	<-f.doneChan
}

func (f *Forwarder) run() {
	defer close(f.doneChan)

	scratch := make([]byte, scratchSize)
	wasConnected := false

	for {
		if transport.WaitConnected(f.tr, f.stopChan) != nil {
			return
		}
		if wasConnected && f.discardOnReconnect {
			f.ring.Reset()
		}
		wasConnected = true
		if f.connect != nil {
			f.connect()
		}

		if !f.drain(scratch) {
			return
		}
		if f.disconnect != nil {
			f.disconnect()
		}
	}
}

// drain relays ring bytes to the transport until the connection drops.
// It returns false when the forwarder is shutting down.
func (f *Forwarder) drain(scratch []byte) bool {
	for {
		// Wait for data, watching for state changes so a disconnect while
		// idle sends us back to the connection wait.
		for f.ring.Available() == 0 {
			select {
			case <-f.ring.Ready():
			case <-f.tr.Changed():
				if f.tr.State() != transport.Connected {
					return true
				}
			case <-f.stopChan:
				return false
			}
		}

		n := f.ring.Read(scratch)
		for _, packet := range Packetize(scratch[:n], f.tr.MaxPacketSize()) {
			if err := f.tr.Write(packet); err != nil {
				return f.writeFailed(err)
			}
		}
	}
}

// writeFailed classifies a write error. Disconnects and stalls are expected:
// the in-flight bytes are lost and the task suspends until the connection
// state changes again. Anything else is a device-level fault, reported
// out-of-band and then handled the same way so the task stays alive.
func (f *Forwarder) writeFailed(err error) bool {
	if !errors.Is(err, transport.ErrDisconnected) && !errors.Is(err, transport.ErrStalled) {
		if f.fault != nil {
			f.fault(err)
		}
	}

	// A stall can be reported while the state still reads Connected. Wait
	// for the next state transition rather than retrying immediately.
	if f.tr.State() == transport.Connected {
		select {
		case <-f.tr.Changed():
		case <-f.stopChan:
			return false
		}
	}
	return true
}
