package handshake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trace records every observable handshake step in order.
type trace struct {
	steps []string
}

type tracedLine struct {
	t       *trace
	failOn  string
	failErr error
}

func (l *tracedLine) step(name string) error {
	l.t.steps = append(l.t.steps, name)
	if l.failOn == name {
		return l.failErr
	}
	return nil
}

func (l *tracedLine) ConfigureOutput() error { return l.step("configure") }
func (l *tracedLine) Hold() error            { return l.step("hold") }
func (l *tracedLine) Release() error         { return l.step("release") }

type tracedStream struct {
	t    *trace
	baud int
}

func (s *tracedStream) Enable(baud int) error {
	s.baud = baud
	s.t.steps = append(s.t.steps, "enable")
	return nil
}

func (s *tracedStream) ReadByte() (byte, error) { return 0, errors.New("not enabled") }

func TestRunExecutesStepsInOrder(t *testing.T) {
	tr := &trace{}
	line := &tracedLine{t: tr}
	stream := &tracedStream{t: tr}
	barrier := BarrierFunc(func(ctx context.Context) error {
		tr.steps = append(tr.steps, "barrier")
		return nil
	})

	c := NewCoordinator(barrier, line, stream, 1000000)
	require.NoError(t, c.Run(context.Background()))

	// The order is the contract: reordering any pair is a bug.
	assert.Equal(t, []string{"barrier", "configure", "hold", "enable", "release"}, tr.steps)
	assert.Equal(t, 1000000, stream.baud)
}

func TestRunStopsAtBarrierCancellation(t *testing.T) {
	tr := &trace{}
	line := &tracedLine{t: tr}
	stream := &tracedStream{t: tr}
	barrier := BarrierFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCoordinator(barrier, line, stream, 1000000)
	err := c.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	// Nothing after the barrier may run.
	assert.Empty(t, tr.steps)
}

func TestRunStopsOnLineFailure(t *testing.T) {
	lineErr := errors.New("gpio write failed")
	tr := &trace{}
	line := &tracedLine{t: tr, failOn: "hold", failErr: lineErr}
	stream := &tracedStream{t: tr}
	barrier := BarrierFunc(func(ctx context.Context) error { return nil })

	c := NewCoordinator(barrier, line, stream, 1000000)
	err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lineErr)
	// The stream must not be enabled if the line could not be held.
	assert.Equal(t, []string{"configure", "hold"}, tr.steps)
}
