//go:build rp2040 || rp2350

package transport

import (
	"machine"
	"sync/atomic"
	"time"
)

// cdcMaxPacketSize is the bulk endpoint size negotiated for full-speed
// CDC-ACM by the TinyGo USB stack.
const cdcMaxPacketSize = 64

// dtrPollInterval is how often the watcher samples the control-line state.
const dtrPollInterval = 10 * time.Millisecond

// USBCDC adapts machine.Serial (USB CDC on RP2040/RP2350) to Transport.
// Connection state follows the DTR control line, which the host toggles
// when it opens or closes the port.
type USBCDC struct {
	state   uint32 // State stored atomically
	changed chan struct{}
}

// NewUSBCDC configures USB CDC and returns the transport for it. TinyGo
// sets up the CDC-ACM descriptors in its runtime.
func NewUSBCDC() (*USBCDC, error) {
	if err := machine.Serial.Configure(machine.UARTConfig{}); err != nil {
		return nil, err
	}

	t := &USBCDC{
		changed: make(chan struct{}, 1),
	}
	go t.watch()
	return t, nil
}

func (t *USBCDC) MaxPacketSize() int {
	return cdcMaxPacketSize
}

func (t *USBCDC) State() State {
	return State(atomic.LoadUint32(&t.state))
}

func (t *USBCDC) Changed() <-chan struct{} {
	return t.changed
}

func (t *USBCDC) Write(packet []byte) error {
	if len(packet) > cdcMaxPacketSize {
		return ErrPacketTooLarge
	}
	if t.State() != Connected {
		return ErrDisconnected
	}
	if len(packet) == 0 {
		// The TinyGo CDC layer terminates its own transfers, so there is
		// no zero-length packet to forward here.
		return nil
	}
	if _, err := machine.Serial.Write(packet); err != nil {
		return ErrStalled
	}
	return nil
}

// watch tracks the DTR line and publishes state transitions. It stands in
// for the USB control-event interrupt on platforms where TinyGo does not
// expose one directly.
func (t *USBCDC) watch() {
	for {
		s := Disconnected
		if machine.Serial.DTR() {
			s = Connected
		}
		if State(atomic.SwapUint32(&t.state, uint32(s))) != s {
			select {
			case t.changed <- struct{}{}:
			default:
			}
		}
		time.Sleep(dtrPollInterval)
	}
}
