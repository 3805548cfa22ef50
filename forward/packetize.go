// Package forward moves buffered log bytes onto a USB serial transport. It
// contains the packetizer, which slices byte runs into bulk-endpoint sized
// packets, and the forwarder task that drains the log ring.
package forward

// Packetize splits data into packets of at most maxPacket bytes, in order.
// If data is a non-empty exact multiple of maxPacket, a trailing zero-length
// packet is appended: USB bulk transfers are terminated by a short packet,
// and without the zero-length packet the host would block waiting for more
// data after an exact-multiple write. The returned packets alias data.
func Packetize(data []byte, maxPacket int) [][]byte {
	if len(data) == 0 {
		return nil
	}

	packets := make([][]byte, 0, len(data)/maxPacket+1)
	for len(data) >= maxPacket {
		packets = append(packets, data[:maxPacket])
		data = data[maxPacket:]
	}
	// Remainder, or the terminating zero-length packet.
	packets = append(packets, data)
	return packets
}
