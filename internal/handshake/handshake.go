// Package handshake sequences the two-wire startup contract between the host
// and the pose radar MCU: a digital ready line gates when the sensor may
// start transmitting, and the byte stream must be listening before the gate
// opens.
package handshake

import (
	"context"
	"fmt"

	"github.com/banshee-data/pose.report/internal/monitoring"
)

// Barrier blocks until the host's core services (radio/link layer) are
// initialized. The pose pipeline is inert until the barrier fires.
type Barrier interface {
	WaitStart(ctx context.Context) error
}

// BarrierFunc adapts a function to the Barrier interface.
type BarrierFunc func(ctx context.Context) error

func (f BarrierFunc) WaitStart(ctx context.Context) error { return f(ctx) }

// ReadyLine is the digital output observed by the sensor MCU. Hold keeps the
// sensor silent; Release permits it to transmit. Electrical polarity is an
// integration detail of the implementation.
type ReadyLine interface {
	ConfigureOutput() error
	Hold() error
	Release() error
}

// ByteStream is the serial input carrying the pose protocol. Enable opens
// the receiver at the given baud rate (8-N-1, no flow control); ReadByte
// blocks until one byte is available.
type ByteStream interface {
	Enable(baud int) error
	ReadByte() (byte, error)
}

// Coordinator performs the startup sequence exactly once. The order is the
// contract: the sensor must never transmit before the receiver is listening,
// and the receiver must not enable before the host barrier has been crossed.
type Coordinator struct {
	barrier Barrier
	line    ReadyLine
	stream  ByteStream
	baud    int
}

// NewCoordinator builds a coordinator over the host barrier, the ready line
// and the byte stream to be gated at the given baud rate.
func NewCoordinator(barrier Barrier, line ReadyLine, stream ByteStream, baud int) *Coordinator {
	return &Coordinator{barrier: barrier, line: line, stream: stream, baud: baud}
}

// Run executes the handshake:
//
//  1. block on the host readiness barrier
//  2. configure the ready line as output, driven to hold
//  3. enable the byte stream receiver
//  4. drive the ready line to release
//
// Each step completes before the next begins. Enabling the receiver before
// holding the line risks misaligned first frames; releasing before the
// receiver is enabled loses startup data entirely. Run never repeats; its
// only failure path beyond hardware errors is blocking until the barrier
// fires or the context is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.barrier.WaitStart(ctx); err != nil {
		return fmt.Errorf("host readiness barrier: %w", err)
	}

	if err := c.line.ConfigureOutput(); err != nil {
		return fmt.Errorf("configure ready line: %w", err)
	}
	if err := c.line.Hold(); err != nil {
		return fmt.Errorf("hold ready line: %w", err)
	}

	if err := c.stream.Enable(c.baud); err != nil {
		return fmt.Errorf("enable byte stream at %d baud: %w", c.baud, err)
	}

	if err := c.line.Release(); err != nil {
		return fmt.Errorf("release ready line: %w", err)
	}

	monitoring.Logf("handshake complete: stream enabled at %d baud, sensor released", c.baud)
	return nil
}
