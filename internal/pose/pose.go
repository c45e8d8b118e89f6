// Package pose carries validated position fixes from the wire protocol to the
// state estimator and maintains the last-known snapshot for observability.
package pose

import (
	"sync"
	"time"

	"github.com/banshee-data/pose.report/internal/frame"
)

// SourceLocationService tags every fix produced by the pose deck. The
// estimator uses the source tag to select its measurement model.
const SourceLocationService = "location_service"

// Fix is one decoded position measurement destined for the state estimator.
// It is handed over by value; the publisher retains no ownership after
// submission.
type Fix struct {
	X      float32   `json:"x"`
	Y      float32   `json:"y"`
	Z      float32   `json:"z"`
	StdDev float32   `json:"std_dev"`
	Source string    `json:"source"`
	Time   time.Time `json:"time"`
}

// Estimator is the ingestion interface of the downstream state estimator.
// Implementations are assumed always-accepting and non-blocking.
type Estimator interface {
	SubmitPositionFix(Fix)
}

// EstimatorFunc adapts a function to the Estimator interface.
type EstimatorFunc func(Fix)

func (f EstimatorFunc) SubmitPositionFix(fix Fix) { f(fix) }

// SnapshotState is the externally observable last-known position.
type SnapshotState struct {
	X     float32   `json:"x"`
	Y     float32   `json:"y"`
	Z     float32   `json:"z"`
	Valid bool      `json:"valid"`
	Time  time.Time `json:"time,omitempty"`
}

// Snapshot is a mutex-guarded cell holding the most recently validated
// position. The writer is the deck worker; readers are diagnostic exporters
// polling at their own cadence. Reads are best-effort by design: consumers
// must not treat the snapshot as a correctness-critical input.
type Snapshot struct {
	mu    sync.Mutex
	state SnapshotState
}

// NewSnapshot returns an invalid (never written) snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Set overwrites the snapshot with the given position and marks it valid.
func (s *Snapshot) Set(x, y, z float32, at time.Time) {
	s.mu.Lock()
	s.state = SnapshotState{X: x, Y: y, Z: z, Valid: true, Time: at}
	s.mu.Unlock()
}

// Get returns a copy of the current snapshot state.
func (s *Snapshot) Get() SnapshotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recorder receives every published fix for persistence or streaming. Unlike
// the estimator it is optional, and failures in a recorder must not affect
// the pipeline.
type Recorder interface {
	RecordFix(Fix)
}

// Publisher decodes validated frames and fans them out: estimator first, then
// snapshot, then any recorders.
type Publisher struct {
	estimator Estimator
	snapshot  *Snapshot
	recorders []Recorder
	now       func() time.Time
}

// NewPublisher wires a publisher to an estimator and snapshot. Additional
// recorders may observe every fix.
func NewPublisher(e Estimator, s *Snapshot, recorders ...Recorder) *Publisher {
	return &Publisher{
		estimator: e,
		snapshot:  s,
		recorders: recorders,
		now:       time.Now,
	}
}

// Publish decodes a checksum-valid frame and submits the resulting fix.
// Decode cannot fail at this layer; there is no error path.
func (p *Publisher) Publish(f frame.Frame) Fix {
	x, y, z, stdDev := f.Fields()
	fix := Fix{
		X:      x,
		Y:      y,
		Z:      z,
		StdDev: stdDev,
		Source: SourceLocationService,
		Time:   p.now(),
	}

	p.estimator.SubmitPositionFix(fix)
	p.snapshot.Set(x, y, z, fix.Time)
	for _, r := range p.recorders {
		r.RecordFix(fix)
	}
	return fix
}
