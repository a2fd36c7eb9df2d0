package model

import "time"

// MuteEntry suppresses delivery of one event type until ExpiresAt.
// An entry whose expiry has passed is logically absent.
type MuteEntry struct {
	EventType string
	ExpiresAt time.Time
	Actor     string
	Reason    string
}
