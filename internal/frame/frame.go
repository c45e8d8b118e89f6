// Package frame implements the pose deck wire protocol: fixed 18-byte frames
// found by sync-marker scanning in an unstructured serial byte stream.
//
// Frame layout on the wire:
//
//	[0xA5][x:f32le][y:f32le][z:f32le][stdDev:f32le][crc8]
//
// The trailing checksum is a Dallas/Maxim CRC-8 computed over the 16 payload
// bytes (everything between the sync byte and the checksum).
package frame

import (
	"encoding/binary"
	"math"

	"github.com/banshee-data/pose.report/internal/crc8"
)

// Pose deck protocol constants. These define the fixed frame format sent by
// the radar MCU at 1 MBd 8-N-1.
const (
	Sync        = 0xA5               // frame synchronization marker
	FloatSize   = 4                  // each payload field is a 32-bit IEEE-754 float
	PayloadLen  = 4 * FloatSize      // x, y, z, stdDev
	Len         = 1 + PayloadLen + 1 // sync + payload + checksum, 18 bytes
	ChecksumPos = Len - 1            // checksum is the final byte

	Baud = 1000000 // symbols/second on the deck UART
)

// Frame is one complete, checksum-valid protocol unit.
type Frame [Len]byte

// Payload returns the checksum-covered region of the frame.
func (f *Frame) Payload() []byte { return f[1:ChecksumPos] }

// Fields decodes the four little-endian floats from the payload. Decode
// cannot fail for a frame that passed checksum validation: every 4-byte
// pattern is a representable float32.
func (f *Frame) Fields() (x, y, z, stdDev float32) {
	x = math.Float32frombits(binary.LittleEndian.Uint32(f[1:5]))
	y = math.Float32frombits(binary.LittleEndian.Uint32(f[5:9]))
	z = math.Float32frombits(binary.LittleEndian.Uint32(f[9:13]))
	stdDev = math.Float32frombits(binary.LittleEndian.Uint32(f[13:17]))
	return
}

// Seal computes and stores the checksum over the payload. Used by tests and
// the dev-mode synthetic sensor to produce valid frames.
func (f *Frame) Seal() {
	f[0] = Sync
	f[ChecksumPos] = crc8.Checksum(f.Payload())
}

// Encode builds a sealed frame from field values.
func Encode(x, y, z, stdDev float32) Frame {
	var f Frame
	f[0] = Sync
	binary.LittleEndian.PutUint32(f[1:5], math.Float32bits(x))
	binary.LittleEndian.PutUint32(f[5:9], math.Float32bits(y))
	binary.LittleEndian.PutUint32(f[9:13], math.Float32bits(z))
	binary.LittleEndian.PutUint32(f[13:17], math.Float32bits(stdDev))
	f.Seal()
	return f
}

// Framer is a byte-at-a-time state machine that locates sync markers and
// accumulates complete frames. It is owned by a single reader goroutine and
// is not safe for concurrent use.
//
// The framer has two states: seeking (empty buffer, waiting for a sync byte)
// and accumulating (1..17 bytes buffered). Every candidate frame, valid or
// not, returns the framer to seeking. A sync byte appearing inside an
// in-progress payload is treated as payload, not as a new marker; a corrupted
// stream can therefore stay misaligned until the next fortuitous sync. This
// matches the deck firmware's recovery timing and is deliberate.
type Framer struct {
	buf [Len]byte
	n   int

	// Counters for diagnostics; read via Stats.
	frames    uint64 // checksum-valid frames emitted
	badChecks uint64 // full-length candidates dropped on checksum
	skipped   uint64 // bytes discarded while seeking sync
}

// NewFramer returns a framer in the seeking state.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed advances the state machine by exactly one byte. It returns a frame and
// true when the byte completes a checksum-valid frame; in every other case
// (mid-frame byte, non-sync byte while seeking, checksum failure) it returns
// false. Corrupt candidates are dropped silently: the absence of an emitted
// frame is the only symptom.
func (fr *Framer) Feed(b byte) (Frame, bool) {
	if fr.n == 0 {
		if b != Sync {
			fr.skipped++
			return Frame{}, false
		}
		fr.buf[0] = b
		fr.n = 1
		return Frame{}, false
	}

	fr.buf[fr.n] = b
	fr.n++
	if fr.n < Len {
		return Frame{}, false
	}

	// Full candidate collected; reset to seeking regardless of outcome.
	fr.n = 0

	var f Frame
	copy(f[:], fr.buf[:])
	if crc8.Checksum(f.Payload()) != f[ChecksumPos] {
		fr.badChecks++
		return Frame{}, false
	}
	fr.frames++
	return f, true
}

// Stats reports cumulative framer counters.
type Stats struct {
	Frames       uint64 `json:"frames"`
	BadChecksums uint64 `json:"bad_checksums"`
	SkippedBytes uint64 `json:"skipped_bytes"`
}

// Stats returns a snapshot of the framer's counters.
func (fr *Framer) Stats() Stats {
	return Stats{
		Frames:       fr.frames,
		BadChecksums: fr.badChecks,
		SkippedBytes: fr.skipped,
	}
}

// Pending reports how many bytes of an in-progress frame are buffered. Zero
// means the framer is seeking a sync marker.
func (fr *Framer) Pending() int { return fr.n }
