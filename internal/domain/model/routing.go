package model

import "time"

// DeliveryMode selects how events for a repository reach hookrelay.
type DeliveryMode string

const (
	// DeliveryModeWebhook means GitHub pushes events to our webhook endpoint.
	DeliveryModeWebhook DeliveryMode = "webhook"
	// DeliveryModePolling means the poll service synthesizes events by
	// diffing commit checkpoints against the GitHub API.
	DeliveryModePolling DeliveryMode = "polling"
)

// RoutingEntry maps one monitored repository to its delivery channel,
// webhook secret, and delivery mode. Owner and Name are immutable and form
// the unique key Owner/Name; everything else is mutable via the store.
type RoutingEntry struct {
	ID       int64
	Owner    string
	Name     string
	FullName string

	// Channel is the delivery target identifier. Empty means events are
	// accepted but recorded as dropped.
	Channel string

	// Secret is the webhook HMAC secret. Empty means unsigned deliveries
	// are accepted.
	Secret string

	Active bool
	Mode   DeliveryMode

	// Credential names the stored credential used for polling. Empty falls
	// back to the default credential.
	Credential string

	// LastCommitSHA is the poll checkpoint. Empty until the first
	// successful poll.
	LastCommitSHA string
	LastPolledAt  time.Time

	// LastError holds the most recent poll failure message. Cleared on the
	// next successful poll.
	LastError string

	CreatedAt time.Time
}
