package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestMuteRegistry returns a registry with a controllable clock.
func newTestMuteRegistry(start time.Time) (*MuteRegistry, *time.Time) {
	now := start
	r := NewMuteRegistry()
	r.now = func() time.Time { return now }
	return r, &now
}

func TestMuteRegistry_MuteAndIsMuted(t *testing.T) {
	r, _ := newTestMuteRegistry(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	r.Mute("push", 15*time.Minute, "alice", "deploy window")

	assert.True(t, r.IsMuted("push"))
	assert.False(t, r.IsMuted("issues"))
}

func TestMuteRegistry_ExpiryIsLazy(t *testing.T) {
	r, now := newTestMuteRegistry(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	r.Mute("push", 15*time.Minute, "", "")

	*now = now.Add(14 * time.Minute)
	assert.True(t, r.IsMuted("push"))

	// At exactly the expiry instant the mute is no longer active.
	*now = now.Add(1 * time.Minute)
	assert.False(t, r.IsMuted("push"))

	// The expired entry was evicted, so unmute reports nothing to remove.
	assert.False(t, r.Unmute("push"))
}

func TestMuteRegistry_ReplaceExtendsExpiry(t *testing.T) {
	r, now := newTestMuteRegistry(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	r.Mute("push", 10*time.Minute, "", "")
	*now = now.Add(5 * time.Minute)
	r.Mute("push", 10*time.Minute, "", "")

	*now = now.Add(9 * time.Minute)
	assert.True(t, r.IsMuted("push"), "replacement mute should restart the window")
}

func TestMuteRegistry_Unmute(t *testing.T) {
	r, _ := newTestMuteRegistry(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	r.Mute("release", time.Hour, "", "")

	assert.True(t, r.Unmute("release"))
	assert.False(t, r.IsMuted("release"))
	assert.False(t, r.Unmute("release"), "second unmute should report absence")
}

func TestMuteRegistry_UnmuteExpiredCountsAsAbsent(t *testing.T) {
	r, now := newTestMuteRegistry(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	r.Mute("release", time.Minute, "", "")
	*now = now.Add(2 * time.Minute)

	assert.False(t, r.Unmute("release"))
}

func TestMuteRegistry_ListActive(t *testing.T) {
	r, now := newTestMuteRegistry(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	r.Mute("push", time.Minute, "alice", "noisy deploy")
	r.Mute("issues", time.Hour, "bob", "")

	*now = now.Add(30 * time.Minute)

	active := r.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, "issues", active[0].EventType)
	assert.Equal(t, "bob", active[0].Actor)

	// The expired push mute was swept.
	assert.False(t, r.IsMuted("push"))
}

func TestMuteRegistry_ListActive_Empty(t *testing.T) {
	r, _ := newTestMuteRegistry(time.Now())

	active := r.ListActive()
	assert.NotNil(t, active)
	assert.Empty(t, active)
}
