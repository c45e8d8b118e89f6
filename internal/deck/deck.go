// Package deck implements the pose radar deck driver: the registration
// descriptor the host discovers, and the worker that runs the handshake once
// and then pumps serial bytes through the framing pipeline forever.
package deck

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/pose.report/internal/frame"
	"github.com/banshee-data/pose.report/internal/handshake"
	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
)

// Driver identity, matching the deck's EEPROM descriptor.
const (
	VendorID  = 0xB0
	ProductID = 0x0D
	Name      = "poseDeck"

	// RequiredEstimator names the estimator type the deck's measurements
	// assume on the host.
	RequiredEstimator = "kalman"
)

// Driver is the registration descriptor exposed to the host at discovery
// time. Init spawns the worker.
type Driver struct {
	VID               uint8
	PID               uint8
	Name              string
	RequiredEstimator string
	Init              func(ctx context.Context) error
}

// NewDriver builds the descriptor for a configured worker.
func NewDriver(w *Worker) *Driver {
	return &Driver{
		VID:               VendorID,
		PID:               ProductID,
		Name:              Name,
		RequiredEstimator: RequiredEstimator,
		Init: func(ctx context.Context) error {
			return w.Run(ctx)
		},
	}
}

// Worker owns the single-goroutine pipeline: handshake, then a byte loop
// driving framer, checksum validation and publishing. The framer and its
// assembly buffer are touched by no other goroutine; the snapshot inside the
// publisher is the only state shared outward.
type Worker struct {
	coordinator *handshake.Coordinator
	stream      handshake.ByteStream
	framer      *frame.Framer
	publisher   *pose.Publisher
}

// NewWorker assembles a worker. The stream must be the same one the
// coordinator enables.
func NewWorker(c *handshake.Coordinator, stream handshake.ByteStream, pub *pose.Publisher) *Worker {
	return &Worker{
		coordinator: c,
		stream:      stream,
		framer:      frame.NewFramer(),
		publisher:   pub,
	}
}

// Stats exposes the framer counters for observability.
func (w *Worker) Stats() frame.Stats {
	return w.framer.Stats()
}

// Run executes the startup handshake once, then loops reading one byte at a
// time until the context is cancelled or the stream ends. Cancellation is
// observed at byte boundaries: a read already blocked stays blocked until the
// next byte or the stream closes. The byte read is the sole suspension
// point; there is no timeout on missing bytes. A stalled sensor stalls the
// loop with no symptom besides absent fixes.
//
// Per-frame errors do not exist: noise and checksum failures are absorbed by
// the framer, and the pipeline resets to seeking after every frame attempt.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.coordinator.Run(ctx); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b, err := w.stream.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				monitoring.Logf("pose stream ended: %v frames, %v bad checksums",
					w.framer.Stats().Frames, w.framer.Stats().BadChecksums)
				return nil
			}
			return fmt.Errorf("read byte: %w", err)
		}

		if f, ok := w.framer.Feed(b); ok {
			w.publisher.Publish(f)
		}
	}
}
