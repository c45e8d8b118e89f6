package frame

import (
	"testing"

	"github.com/banshee-data/pose.report/internal/crc8"
)

// knownFrame is the reference byte sequence for x=1.0, y=2.0, z=3.0, stdDev=0.0
// with its checksum still unset.
func knownFrame(t *testing.T) Frame {
	t.Helper()
	f := Frame{
		Sync,
		0x00, 0x00, 0x80, 0x3F, // x = 1.0
		0x00, 0x00, 0x00, 0x40, // y = 2.0
		0x00, 0x00, 0x40, 0x40, // z = 3.0
		0x00, 0x00, 0x00, 0x00, // stdDev = 0.0
		0x00,
	}
	f[ChecksumPos] = crc8.Checksum(f.Payload())
	return f
}

func feedAll(fr *Framer, data []byte) []Frame {
	var out []Frame
	for _, b := range data {
		if f, ok := fr.Feed(b); ok {
			out = append(out, f)
		}
	}
	return out
}

func TestFeedAcceptsValidFrame(t *testing.T) {
	fr := NewFramer()
	f := knownFrame(t)

	got := feedAll(fr, f[:])
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}
	x, y, z, stdDev := got[0].Fields()
	if x != 1.0 || y != 2.0 || z != 3.0 || stdDev != 0.0 {
		t.Errorf("decoded (%v, %v, %v, %v), want (1, 2, 3, 0)", x, y, z, stdDev)
	}
	if fr.Pending() != 0 {
		t.Errorf("framer left %d bytes pending after a complete frame", fr.Pending())
	}
}

func TestFeedRejectsBadChecksum(t *testing.T) {
	fr := NewFramer()
	f := knownFrame(t)

	// Every wrong trailing byte must yield zero frames.
	for delta := 1; delta < 256; delta++ {
		corrupted := f
		corrupted[ChecksumPos] = f[ChecksumPos] + byte(delta)
		if got := feedAll(fr, corrupted[:]); len(got) != 0 {
			t.Fatalf("trailing byte 0x%02X accepted, want rejection", corrupted[ChecksumPos])
		}
	}

	stats := fr.Stats()
	if stats.BadChecksums != 255 {
		t.Errorf("BadChecksums = %d, want 255", stats.BadChecksums)
	}
	if stats.Frames != 0 {
		t.Errorf("Frames = %d, want 0", stats.Frames)
	}
}

func TestResyncAfterGarbage(t *testing.T) {
	fr := NewFramer()
	f := Encode(-4.25, 0.5, 12.0, 0.03)

	garbage := []byte{0x00, 0xFF, 0x13, 0x37, 0xA4, 0xA6, 0x55}
	stream := append(append([]byte{}, garbage...), f[:]...)

	got := feedAll(fr, stream)
	if len(got) != 1 {
		t.Fatalf("got %d frames after leading garbage, want 1", len(got))
	}
	if got[0] != f {
		t.Errorf("frame mismatch after resync: % X", got[0])
	}
	if s := fr.Stats(); s.SkippedBytes != uint64(len(garbage)) {
		t.Errorf("SkippedBytes = %d, want %d", s.SkippedBytes, len(garbage))
	}
}

// TestEveryByteOneTransition checks framer liveness: any finite stream is
// consumed byte by byte without the framer wedging.
func TestEveryByteOneTransition(t *testing.T) {
	fr := NewFramer()
	// 4 KiB of pseudo-random bytes; many contain the sync value.
	stream := make([]byte, 4096)
	seed := uint32(0x1234)
	for i := range stream {
		seed = seed*1664525 + 1013904223
		stream[i] = byte(seed >> 24)
	}
	feedAll(fr, stream)
	if fr.Pending() < 0 || fr.Pending() >= Len {
		t.Errorf("Pending() = %d out of range [0,%d)", fr.Pending(), Len)
	}
}

// TestSyncInsidePayloadNotAMarker pins the deliberate framing behavior: a
// sync byte inside an in-progress payload is consumed as payload, so a stray
// sync immediately before a valid frame swallows that frame.
func TestSyncInsidePayloadNotAMarker(t *testing.T) {
	// Pick field values whose misaligned candidate fails its checksum; the
	// stray-sync candidate covers f[0..15] checked against f[16], and for
	// some values that could collide by chance.
	var f Frame
	found := false
	for _, stdDev := range []float32{0, 1, 0.5, 0.25} {
		f = Encode(1.0, 2.0, 3.0, stdDev)
		cand := append([]byte{Sync}, f[:ChecksumPos]...)
		if crc8.Checksum(cand[1:ChecksumPos]) != cand[ChecksumPos] {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("could not construct a misaligned candidate with a failing checksum")
	}

	fr := NewFramer()
	stream := append([]byte{Sync}, f[:]...)
	got := feedAll(fr, stream)
	if len(got) != 0 {
		t.Fatalf("got %d frames, want 0: embedded sync treated as a marker", len(got))
	}
	// The misaligned candidate consumed 18 bytes; the final byte (the valid
	// frame's checksum) is then interpreted in the seeking state.
	wantPending := 0
	if f[ChecksumPos] == Sync {
		wantPending = 1
	}
	if fr.Pending() != wantPending {
		t.Errorf("Pending() = %d, want %d", fr.Pending(), wantPending)
	}
}

func TestBackToBackFrames(t *testing.T) {
	fr := NewFramer()
	a := Encode(1, 1, 1, 0.1)
	b := Encode(2, 2, 2, 0.2)

	stream := append(append([]byte{}, a[:]...), b[:]...)
	got := feedAll(fr, stream)
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if got[0] != a || got[1] != b {
		t.Errorf("frames decoded out of order or corrupted")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	f := Encode(-1.5, 2.25, -3.75, 0.125)
	if f[0] != Sync {
		t.Fatalf("Encode did not set sync byte")
	}
	if crc8.Checksum(f.Payload()) != f[ChecksumPos] {
		t.Fatalf("Encode produced an invalid checksum")
	}
	x, y, z, s := f.Fields()
	if x != -1.5 || y != 2.25 || z != -3.75 || s != 0.125 {
		t.Errorf("round trip mismatch: (%v, %v, %v, %v)", x, y, z, s)
	}
}
