package application

import (
	"sync"
	"time"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
)

// MuteRegistry is a time-bounded suppression table keyed by event type.
// One active mute per type; a new mute replaces the old one. Expired
// entries are evicted lazily on read; there is no background sweep.
type MuteRegistry struct {
	mu      sync.Mutex
	entries map[string]model.MuteEntry
	now     func() time.Time
}

// NewMuteRegistry creates an empty registry.
func NewMuteRegistry() *MuteRegistry {
	return &MuteRegistry{
		entries: make(map[string]model.MuteEntry),
		now:     time.Now,
	}
}

// Mute installs or replaces the mute for eventType, expiring after d.
func (r *MuteRegistry) Mute(eventType string, d time.Duration, actor, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[eventType] = model.MuteEntry{
		EventType: eventType,
		ExpiresAt: r.now().Add(d),
		Actor:     actor,
		Reason:    reason,
	}
}

// Unmute removes the mute for eventType, reporting whether one was present.
// An expired but not yet evicted entry counts as absent.
func (r *MuteRegistry) Unmute(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[eventType]
	if !ok {
		return false
	}

	delete(r.entries, eventType)
	return r.now().Before(entry.ExpiresAt)
}

// IsMuted reports whether eventType is currently muted. Expired entries
// are evicted as a side effect.
func (r *MuteRegistry) IsMuted(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[eventType]
	if !ok {
		return false
	}

	if !r.now().Before(entry.ExpiresAt) {
		delete(r.entries, eventType)
		return false
	}

	return true
}

// ListActive returns all unexpired mutes, sweeping expired entries as a
// side effect. Order is unspecified.
func (r *MuteRegistry) ListActive() []model.MuteEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	active := make([]model.MuteEntry, 0, len(r.entries))
	for eventType, entry := range r.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(r.entries, eventType)
			continue
		}
		active = append(active, entry)
	}

	return active
}
