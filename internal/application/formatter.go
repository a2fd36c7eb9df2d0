package application

import (
	"github.com/ericfisherdev/hookrelay/internal/domain/model"
	"github.com/ericfisherdev/hookrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Formatter = (*DefaultFormatter)(nil)

// quietActions are event actions that never produce a notification: they
// arrive in bulk during normal work (every push to a PR branch emits a
// synchronize, every label tweak an edited) and would drown the channel.
var quietActions = map[string]bool{
	"synchronize":         true,
	"edited":              true,
	"labeled":             true,
	"unlabeled":           true,
	"assigned":            true,
	"unassigned":          true,
	"milestoned":          true,
	"demilestoned":        true,
	"locked":              true,
	"unlocked":            true,
	"pinned":              true,
	"unpinned":            true,
	"auto_merge_enabled":  true,
	"auto_merge_disabled": true,
}

// DefaultFormatter builds delivery artifacts from event payloads using the
// summarizer. It declines (nil, nil) for quiet actions and never returns an
// error: malformed payloads degrade to a bare event-type artifact.
type DefaultFormatter struct{}

// NewDefaultFormatter creates a formatter.
func NewDefaultFormatter() *DefaultFormatter {
	return &DefaultFormatter{}
}

// Format implements driven.Formatter.
func (f *DefaultFormatter) Format(eventType string, payload []byte) (*model.Artifact, error) {
	env := parseEnvelope(payload)
	if quietActions[env.Action] {
		return nil, nil
	}

	text, link := Summarize(eventType, payload)
	return &model.Artifact{
		Text:      text,
		Link:      link,
		EventType: eventType,
		Repo:      env.Repository.FullName,
	}, nil
}
