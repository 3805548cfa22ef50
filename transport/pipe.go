package transport

import (
	"sync"
	"sync/atomic"
)

// Pipe is an in-memory Transport. The device side writes packets; the host
// side inspects what arrived and drives the connection state, standing in
// for the DTR toggles a real CDC-ACM host produces.
type Pipe struct {
	state   uint32 // State stored atomically; written by the host side only
	changed chan struct{}

	mu       sync.Mutex
	packets  [][]byte
	writeErr error

	maxPacket int
}

// NewPipe creates a disconnected Pipe with the given max packet size.
func NewPipe(maxPacket int) *Pipe {
	return &Pipe{
		changed:   make(chan struct{}, 1),
		maxPacket: maxPacket,
	}
}

// MaxPacketSize implements Transport.
func (p *Pipe) MaxPacketSize() int {
	return p.maxPacket
}

// State implements Transport.
func (p *Pipe) State() State {
	return State(atomic.LoadUint32(&p.state))
}

// Changed implements Transport.
func (p *Pipe) Changed() <-chan struct{} {
	return p.changed
}

// Write implements Transport. Packets written while Connected are recorded;
// writing while Disconnected fails with ErrDisconnected.
func (p *Pipe) Write(packet []byte) error {
	if len(packet) > p.maxPacket {
		return ErrPacketTooLarge
	}
	if p.State() != Connected {
		return ErrDisconnected
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	cp := make([]byte, len(packet))
	copy(cp, packet)
	p.packets = append(p.packets, cp)
	return nil
}

// SetState moves the connection state, signalling the change to any waiter.
// This is the host side of the pipe: tests call it where a real transport
// would react to a USB control event.
func (p *Pipe) SetState(s State) {
	if State(atomic.SwapUint32(&p.state, uint32(s))) == s {
		return
	}
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

// FailWrites makes subsequent writes return err until called with nil.
// Used to inject stall and device-level faults.
func (p *Pipe) FailWrites(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// Packets returns the packets received so far, in write order.
func (p *Pipe) Packets() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.packets))
	copy(out, p.packets)
	return out
}

// Bytes returns the concatenation of all received packets.
func (p *Pipe) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []byte
	for _, pkt := range p.packets {
		out = append(out, pkt...)
	}
	return out
}

// Drain discards the packets received so far.
func (p *Pipe) Drain() {
	p.mu.Lock()
	p.packets = nil
	p.mu.Unlock()
}
