package model

// Artifact is the channel-ready representation of one event, produced by
// the formatting collaborator. The router treats it as opaque.
type Artifact struct {
	Text      string `json:"text"`
	Link      string `json:"link,omitempty"`
	EventType string `json:"event_type"`
	Repo      string `json:"repo,omitempty"`
}
