package model

import "time"

// Outcome records what happened to one accepted inbound event.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeDropped Outcome = "dropped"
	OutcomeIgnored Outcome = "ignored"
	OutcomeMuted   Outcome = "muted"
)

// DigestEntry is one line of the live event feed. Immutable once created.
type DigestEntry struct {
	EventType string
	Summary   string
	Link      string
	Actor     string
	Repo      string
	Outcome   Outcome
	CreatedAt time.Time
}
