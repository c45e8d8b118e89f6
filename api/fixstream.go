package api

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/banshee-data/pose.report/internal/pose"
)

// FixStream fans published fixes out to any number of subscribers. It
// implements pose.Recorder so the publisher drives it like any other
// recorder. Slow subscribers are skipped, never waited for: the deck worker
// must not block on observers.
type FixStream struct {
	mu          sync.Mutex
	subscribers map[string]chan pose.Fix
}

// NewFixStream returns a stream with no subscribers.
func NewFixStream() *FixStream {
	return &FixStream{subscribers: make(map[string]chan pose.Fix)}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new buffered channel for receiving fixes. The
// returned ID identifies the channel for Unsubscribe.
func (s *FixStream) Subscribe() (string, chan pose.Fix) {
	id := randomID()
	ch := make(chan pose.Fix, 16)
	s.mu.Lock()
	s.subscribers[id] = ch
	s.mu.Unlock()
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (s *FixStream) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// RecordFix implements pose.Recorder by broadcasting to all subscribers.
func (s *FixStream) RecordFix(f pose.Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- f:
		default:
			// subscriber is full; drop rather than block the pipeline
		}
	}
}
