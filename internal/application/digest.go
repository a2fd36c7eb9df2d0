package application

import (
	"sync"
	"time"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
)

// digestCapacity is the fixed size of the live event feed.
const digestCapacity = 50

// DigestBuffer is a fixed-capacity FIFO ring of processed-event records.
// When full, pushing evicts the oldest entry. It is entirely in-memory:
// the digest is a live feed, not an audit log, and is lost on restart.
type DigestBuffer struct {
	mu      sync.Mutex
	entries []model.DigestEntry
	now     func() time.Time
}

// NewDigestBuffer creates an empty buffer.
func NewDigestBuffer() *DigestBuffer {
	return &DigestBuffer{
		entries: make([]model.DigestEntry, 0, digestCapacity),
		now:     time.Now,
	}
}

// Push summarizes the payload and appends a record of the event and its
// outcome, evicting the oldest entry once capacity is exceeded.
func (b *DigestBuffer) Push(eventType string, payload []byte, outcome model.Outcome) {
	text, link := Summarize(eventType, payload)
	env := parseEnvelope(payload)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, model.DigestEntry{
		EventType: eventType,
		Summary:   text,
		Link:      link,
		Actor:     env.Sender.Login,
		Repo:      env.Repository.FullName,
		Outcome:   outcome,
		CreatedAt: b.now(),
	})

	if len(b.entries) > digestCapacity {
		b.entries = b.entries[len(b.entries)-digestCapacity:]
	}
}

// Recent returns the last min(limit, Size()) entries in chronological
// order, oldest of the slice first.
func (b *DigestBuffer) Recent(limit int) []model.DigestEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit < 0 {
		limit = 0
	}
	if limit > len(b.entries) {
		limit = len(b.entries)
	}

	out := make([]model.DigestEntry, limit)
	copy(out, b.entries[len(b.entries)-limit:])
	return out
}

// Size returns the current occupancy.
func (b *DigestBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
