package serialio

import (
	"io"
	"sync"
)

// MockStream implements the worker's ByteStream contract without hardware.
// Bytes queued with Feed are returned one at a time by ReadByte, which blocks
// until data is available or the stream is closed. Used by tests and by the
// dev-mode synthetic sensor.
type MockStream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	enabled bool
	closed  bool

	// EnabledBaud records the baud rate passed to Enable.
	EnabledBaud int
}

// NewMockStream returns an empty, not yet enabled mock stream.
func NewMockStream() *MockStream {
	m := &MockStream{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Enable marks the stream enabled and records the baud rate.
func (m *MockStream) Enable(baud int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
	m.EnabledBaud = baud
	return nil
}

// Enabled reports whether Enable has been called.
func (m *MockStream) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Feed appends bytes for ReadByte to consume and wakes any blocked reader.
func (m *MockStream) Feed(data []byte) {
	m.mu.Lock()
	m.buf = append(m.buf, data...)
	m.mu.Unlock()
	m.cond.Broadcast()
}

// ReadByte returns the next queued byte, blocking while the buffer is empty.
// It returns io.EOF once the stream is closed and drained, and ErrNotEnabled
// if Enable has not been called.
func (m *MockStream) ReadByte() (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return 0, ErrNotEnabled
	}
	for len(m.buf) == 0 {
		if m.closed {
			return 0, io.EOF
		}
		m.cond.Wait()
	}
	b := m.buf[0]
	m.buf = m.buf[1:]
	return b, nil
}

// Close unblocks readers; ReadByte drains remaining bytes then reports EOF.
func (m *MockStream) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
	return nil
}
