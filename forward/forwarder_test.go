package forward

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"usblog/logbuf"
	"usblog/transport"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func newForwarder(t *testing.T, capacity int, maxPacket int) (*Forwarder, *logbuf.Ring, *transport.Pipe) {
	t.Helper()
	ring := logbuf.NewRing(capacity, logbuf.DropNewest)
	pipe := transport.NewPipe(maxPacket)
	fwd := New(ring, pipe)
	t.Cleanup(fwd.Close)
	return fwd, ring, pipe
}

func TestForwarderPassthrough(t *testing.T) {
	fwd, ring, pipe := newForwarder(t, 1024, 64)
	pipe.SetState(transport.Connected)
	fwd.Start()

	frames := [][]byte{
		[]byte("first frame"),
		[]byte("second"),
		bytes.Repeat([]byte{0xAB}, 100),
	}
	var want []byte
	for _, frame := range frames {
		if !ring.Append(frame) {
			t.Fatalf("Append of %d bytes failed", len(frame))
		}
		want = append(want, frame...)
	}

	waitFor(t, "all bytes forwarded", func() bool {
		return bytes.Equal(pipe.Bytes(), want)
	})
}

func TestForwarderPacketScenario(t *testing.T) {
	// Three frames of 10, 64 and 54 bytes, drained one at a time, produce
	// the packet sequence [10], [64, 0], [54]: the 64-byte frame is an
	// exact multiple and needs the zero-length terminator.
	fwd, ring, pipe := newForwarder(t, 1024, 64)
	pipe.SetState(transport.Connected)
	fwd.Start()

	var want []byte
	appendAndWait := func(size int, fill byte, packets int) {
		t.Helper()
		frame := bytes.Repeat([]byte{fill}, size)
		want = append(want, frame...)
		if !ring.Append(frame) {
			t.Fatalf("Append of %d bytes failed", size)
		}
		waitFor(t, "frame forwarded", func() bool {
			return len(pipe.Packets()) >= packets
		})
	}

	appendAndWait(10, 0x11, 1)
	appendAndWait(64, 0x22, 3)
	appendAndWait(54, 0x33, 4)

	pkts := pipe.Packets()
	if len(pkts) != 4 {
		t.Fatalf("Expected 4 packets, got %d", len(pkts))
	}
	sizes := []int{len(pkts[0]), len(pkts[1]), len(pkts[2]), len(pkts[3])}
	wantSizes := []int{10, 64, 0, 54}
	for i, s := range wantSizes {
		if sizes[i] != s {
			t.Errorf("Packet %d: expected %d bytes, got %d", i, s, sizes[i])
		}
	}
	if !bytes.Equal(pipe.Bytes(), want) {
		t.Error("Forwarded bytes do not match appended frames")
	}
}

func TestForwarderDisconnectedNoWrites(t *testing.T) {
	fwd, ring, pipe := newForwarder(t, 256, 64)
	fwd.Start()

	for i := 0; i < 4; i++ {
		if !ring.Append([]byte{byte(i), byte(i)}) {
			t.Fatalf("Append %d should succeed within ring capacity", i)
		}
	}

	time.Sleep(20 * time.Millisecond)
	if got := len(pipe.Packets()); got != 0 {
		t.Fatalf("No packets may be written while disconnected, got %d", got)
	}
	if ring.Available() != 8 {
		t.Errorf("Buffered bytes should remain, got %d", ring.Available())
	}
}

func TestForwarderResumesAfterReconnect(t *testing.T) {
	fwd, ring, pipe := newForwarder(t, 256, 64)
	disconnects := make(chan struct{}, 1)
	fwd.SetDisconnectHandler(func() {
		disconnects <- struct{}{}
	})
	pipe.SetState(transport.Connected)
	fwd.Start()

	ring.Append([]byte("before"))
	waitFor(t, "first frame forwarded", func() bool {
		return bytes.Equal(pipe.Bytes(), []byte("before"))
	})

	pipe.SetState(transport.Disconnected)
	<-disconnects
	ring.Append([]byte("while down"))
	pipe.Drain()

	// No external re-initialization: reconnecting alone must resume the
	// forwarder, which picks up from the current buffer head.
	pipe.SetState(transport.Connected)
	waitFor(t, "buffered frame forwarded after reconnect", func() bool {
		return bytes.Equal(pipe.Bytes(), []byte("while down"))
	})
}

func TestForwarderDiscardOnReconnect(t *testing.T) {
	fwd, ring, pipe := newForwarder(t, 256, 64)
	fwd.SetDiscardOnReconnect(true)
	connects := make(chan struct{}, 2)
	fwd.SetConnectHandler(func() {
		connects <- struct{}{}
	})
	disconnects := make(chan struct{}, 1)
	fwd.SetDisconnectHandler(func() {
		disconnects <- struct{}{}
	})
	pipe.SetState(transport.Connected)
	fwd.Start()
	<-connects

	ring.Append([]byte("live"))
	waitFor(t, "live frame forwarded", func() bool {
		return bytes.Equal(pipe.Bytes(), []byte("live"))
	})

	pipe.SetState(transport.Disconnected)
	ring.Append([]byte("stale backlog"))
	<-disconnects
	pipe.Drain()
	pipe.SetState(transport.Connected)

	// The connect handler runs after the discard, so appending here cannot
	// race with the reset.
	<-connects
	ring.Append([]byte("fresh"))
	waitFor(t, "fresh frame forwarded", func() bool {
		return bytes.Contains(pipe.Bytes(), []byte("fresh"))
	})
	if bytes.Contains(pipe.Bytes(), []byte("stale")) {
		t.Error("Stale backlog should have been discarded on reconnect")
	}
}

func TestForwarderStallRecovery(t *testing.T) {
	fwd, ring, pipe := newForwarder(t, 256, 64)
	pipe.SetState(transport.Connected)
	fwd.Start()

	pipe.FailWrites(transport.ErrStalled)
	ring.Append([]byte("lost to the stall"))

	// The forwarder must suspend, not spin, until the state changes.
	time.Sleep(10 * time.Millisecond)
	if len(pipe.Packets()) != 0 {
		t.Fatal("No packets should arrive while stalled")
	}

	pipe.SetState(transport.Disconnected)
	pipe.FailWrites(nil)
	pipe.SetState(transport.Connected)

	ring.Append([]byte("after recovery"))
	waitFor(t, "frame forwarded after stall", func() bool {
		return bytes.Contains(pipe.Bytes(), []byte("after recovery"))
	})
}

func TestForwarderFaultHandler(t *testing.T) {
	fwd, ring, pipe := newForwarder(t, 256, 64)

	faults := make(chan error, 1)
	fwd.SetFaultHandler(func(err error) {
		select {
		case faults <- err:
		default:
		}
	})
	pipe.SetState(transport.Connected)
	fwd.Start()

	deviceErr := errors.New("endpoint fault")
	pipe.FailWrites(deviceErr)
	ring.Append([]byte("doomed"))

	select {
	case err := <-faults:
		if !errors.Is(err, deviceErr) {
			t.Fatalf("Fault handler got %v, want %v", err, deviceErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fault handler was not invoked")
	}

	// Disconnect and stall errors are routine, never faults.
	pipe.FailWrites(transport.ErrDisconnected)
	pipe.SetState(transport.Disconnected)
	pipe.SetState(transport.Connected)
	ring.Append([]byte("routine"))
	time.Sleep(20 * time.Millisecond)
	select {
	case err := <-faults:
		t.Fatalf("Disconnect reported as fault: %v", err)
	default:
	}
}

func TestForwarderCloseWhileSuspended(t *testing.T) {
	// Close while waiting for a connection.
	ring := logbuf.NewRing(64, logbuf.DropNewest)
	pipe := transport.NewPipe(64)
	fwd := New(ring, pipe)
	fwd.Start()
	closed := make(chan struct{})
	go func() {
		fwd.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock the connection wait")
	}

	// Close while waiting for data.
	ring2 := logbuf.NewRing(64, logbuf.DropNewest)
	pipe2 := transport.NewPipe(64)
	pipe2.SetState(transport.Connected)
	fwd2 := New(ring2, pipe2)
	fwd2.Start()
	closed2 := make(chan struct{})
	go func() {
		fwd2.Close()
		close(closed2)
	}()
	select {
	case <-closed2:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock the data wait")
	}
}
