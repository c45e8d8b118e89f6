// Package serialio provides the serial-port byte stream consumed by the pose
// deck worker. The port is opened lazily by Enable so that the handshake
// coordinator controls when the receiver starts listening.
package serialio

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/pose.report/internal/monitoring"
)

// ErrNotEnabled is returned by ReadByte before Enable has opened the port.
var ErrNotEnabled = fmt.Errorf("serial stream not enabled")

// Porter is the minimal interface needed from an open serial port. The
// abstraction enables unit testing without real serial hardware.
type Porter interface {
	io.ReadWriteCloser
}

// Opener opens a serial port at a path with the given mode. Production code
// uses go.bug.st/serial; tests substitute their own.
type Opener func(path string, mode *serial.Mode) (Porter, error)

func defaultOpener(path string, mode *serial.Mode) (Porter, error) {
	return serial.Open(path, mode)
}

// Stream is a blocking one-byte-at-a-time reader over a serial port. It
// implements the handshake coordinator's ByteStream contract: Enable opens
// the receiver, ReadByte blocks until a byte arrives.
type Stream struct {
	path   string
	opts   PortOptions
	opener Opener

	mu   sync.Mutex
	port Porter
	buf  [1]byte
}

// NewStream prepares a stream for the port at path. The port is not touched
// until Enable is called.
func NewStream(path string, opts PortOptions) *Stream {
	return &Stream{path: path, opts: opts, opener: defaultOpener}
}

// Enable opens the serial port at the given baud rate with the stream's
// framing options (8-N-1 by default). It may be called at most once.
func (s *Stream) Enable(baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return fmt.Errorf("serial stream already enabled")
	}

	opts := s.opts
	opts.BaudRate = baud
	mode, err := opts.SerialMode()
	if err != nil {
		return err
	}

	port, err := s.opener(s.path, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	s.port = port
	monitoring.Logf("serial stream enabled on %s at %d baud", s.path, baud)
	return nil
}

// ReadByte blocks until one byte is available. Zero-length reads (some
// drivers return them on timeout) are retried rather than surfaced.
func (s *Stream) ReadByte() (byte, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, ErrNotEnabled
	}

	for {
		n, err := port.Read(s.buf[:])
		if n == 1 {
			return s.buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Close closes the underlying port if it was enabled.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
