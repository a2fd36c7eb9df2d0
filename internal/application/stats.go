package application

import (
	"sync/atomic"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
)

// Stats holds cumulative outcome counters for the process lifetime.
// Like the digest and mute state, it is not persisted.
type Stats struct {
	received atomic.Int64
	sent     atomic.Int64
	dropped  atomic.Int64
	ignored  atomic.Int64
	muted    atomic.Int64
}

// NewStats creates zeroed counters.
func NewStats() *Stats {
	return &Stats{}
}

// RecordReceived counts one inbound event before outcome classification.
func (s *Stats) RecordReceived() {
	s.received.Add(1)
}

// RecordOutcome counts one classified outcome.
func (s *Stats) RecordOutcome(outcome model.Outcome) {
	switch outcome {
	case model.OutcomeSent:
		s.sent.Add(1)
	case model.OutcomeDropped:
		s.dropped.Add(1)
	case model.OutcomeIgnored:
		s.ignored.Add(1)
	case model.OutcomeMuted:
		s.muted.Add(1)
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Received int64
	Sent     int64
	Dropped  int64
	Ignored  int64
	Muted    int64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Received: s.received.Load(),
		Sent:     s.sent.Load(),
		Dropped:  s.dropped.Load(),
		Ignored:  s.ignored.Load(),
		Muted:    s.muted.Load(),
	}
}
