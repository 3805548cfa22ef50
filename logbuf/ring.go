// Package logbuf provides the shared byte ring that buffers encoded log
// frames between firmware call sites and the USB forwarder.
package logbuf

import "sync"

// OverflowPolicy selects what happens when an appended frame does not fit.
type OverflowPolicy uint8

const (
	// DropNewest rejects the incoming frame and keeps buffered data intact.
	DropNewest OverflowPolicy = iota
	// EvictOldest discards the oldest buffered bytes to make room. Eviction
	// is byte-oriented, so a partially transmitted frame may be cut; the
	// host-side decoder is expected to resynchronize on its own framing.
	EvictOldest
)

// Ring is a bounded byte queue shared between many log producers and a
// single consumer (the forwarder). Producers append whole frames under a
// short critical section; the consumer drains bytes and waits on Ready.
type Ring struct {
	mu     sync.Mutex
	buf    []byte
	read   int
	write  int
	count  int
	policy OverflowPolicy
	ready  chan struct{}
}

// NewRing creates a Ring with the given byte capacity and overflow policy.
func NewRing(capacity int, policy OverflowPolicy) *Ring {
	return &Ring{
		buf:    make([]byte, capacity),
		policy: policy,
		ready:  make(chan struct{}, 1),
	}
}

// Append stores one encoded frame. The frame is stored completely or not at
// all. It returns false if the frame was rejected: always for frames larger
// than the ring capacity, and under DropNewest when the free space is
// insufficient. Under EvictOldest the oldest buffered bytes are discarded
// until the frame fits. Safe for concurrent use from any goroutine; never
// blocks on the consumer.
func (r *Ring) Append(frame []byte) bool {
	if len(frame) == 0 {
		return true
	}
	if len(frame) > len(r.buf) {
		return false
	}

	r.mu.Lock()
	free := len(r.buf) - r.count
	if len(frame) > free {
		if r.policy == DropNewest {
			r.mu.Unlock()
			return false
		}
		r.discard(len(frame) - free)
	}
	for _, b := range frame {
		r.buf[r.write] = b
		r.write = (r.write + 1) % len(r.buf)
	}
	r.count += len(frame)
	r.mu.Unlock()

	r.signal()
	return true
}

// Available returns the number of buffered bytes ready to read.
func (r *Ring) Available() int {
	r.mu.Lock()
	n := r.count
	r.mu.Unlock()
	return n
}

// Free returns the number of bytes that can be appended without overflow.
func (r *Ring) Free() int {
	r.mu.Lock()
	n := len(r.buf) - r.count
	r.mu.Unlock()
	return n
}

// Read drains up to len(p) buffered bytes into p, oldest first, and returns
// the number of bytes moved. It never blocks; it returns 0 when the ring is
// empty. Only one goroutine may consume from the ring.
func (r *Ring) Read(p []byte) int {
	r.mu.Lock()
	n := 0
	for n < len(p) && r.count > 0 {
		p[n] = r.buf[r.read]
		r.read = (r.read + 1) % len(r.buf)
		r.count--
		n++
	}
	r.mu.Unlock()
	return n
}

// Ready returns the consumer wake channel. A token is delivered after an
// append made new data available; tokens are coalesced, so after receiving
// one the consumer must drain with Read until Available reports 0.
func (r *Ring) Ready() <-chan struct{} {
	return r.ready
}

// Reset discards all buffered bytes.
func (r *Ring) Reset() {
	r.mu.Lock()
	r.read = 0
	r.write = 0
	r.count = 0
	r.mu.Unlock()
}

// Capacity returns the total byte capacity of the ring.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// discard removes the n oldest bytes. Caller holds r.mu.
func (r *Ring) discard(n int) {
	if n > r.count {
		n = r.count
	}
	r.read = (r.read + n) % len(r.buf)
	r.count -= n
}

// signal posts a coalescing wake token for the consumer.
func (r *Ring) signal() {
	select {
	case r.ready <- struct{}{}:
	default:
	}
}
