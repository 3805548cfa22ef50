//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"usblog/forward"
	"usblog/logbuf"
	"usblog/transport"
)

const ringCapacity = 1024

var (
	ring      *logbuf.Ring
	forwarder *forward.Forwarder

	// Fault counter, readable with a debugger. Faults are never logged
	// through the channel that just failed.
	transportFaults uint32
)

func main() {
	usb, err := transport.NewUSBCDC()
	if err != nil {
		return
	}

	ring = logbuf.NewRing(ringCapacity, logbuf.DropNewest)

	forwarder = forward.New(ring, usb)
	forwarder.SetDiscardOnReconnect(true)
	forwarder.SetFaultHandler(func(err error) {
		transportFaults++
	})
	forwarder.Start()

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// Demo producer: one frame per second. A real firmware appends encoded
	// frames from its own log call sites instead.
	ticks := 0
	for {
		led.Set(ticks%2 == 0)
		ring.Append(tickFrame(ticks))
		ticks++
		time.Sleep(time.Second)
	}
}

// tickFrame encodes a counter as a line of text. Stands in for a real log
// encoder; the forwarder treats the bytes as opaque either way.
func tickFrame(n int) []byte {
	frame := []byte("tick ")
	if n == 0 {
		return append(frame, '0', '\n')
	}
	var digits [10]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	frame = append(frame, digits[i:]...)
	return append(frame, '\n')
}
