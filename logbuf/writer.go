package logbuf

// Writer adapts a Ring to io.Writer so an encoder that emits to a stream can
// feed the ring directly. Each Write call is treated as one frame.
type Writer struct {
	ring *Ring
}

// NewWriter returns a Writer that appends to ring.
func NewWriter(ring *Ring) *Writer {
	return &Writer{ring: ring}
}

// Write appends p as a single frame. It always reports len(p) bytes written
// and a nil error: logging is best-effort, and a frame rejected on overflow
// is silently dropped rather than surfaced to the encoder.
func (w *Writer) Write(p []byte) (int, error) {
	w.ring.Append(p)
	return len(p), nil
}
