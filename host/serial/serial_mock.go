package serial

import (
	"bytes"
	"io"
)

// MockPort is an in-memory Port for tests. Reads drain the preloaded data
// and then report io.EOF.
type MockPort struct {
	buf    *bytes.Reader
	closed bool
}

// NewMockPort creates a MockPort that replays data.
func NewMockPort(data []byte) *MockPort {
	return &MockPort{buf: bytes.NewReader(data)}
}

func (p *MockPort) Read(b []byte) (int, error) {
	if p.closed {
		return 0, io.EOF
	}
	return p.buf.Read(b)
}

func (p *MockPort) Close() error {
	p.closed = true
	return nil
}

func (p *MockPort) Flush() error {
	return nil
}
