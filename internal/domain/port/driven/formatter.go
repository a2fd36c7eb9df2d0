package driven

import "github.com/ericfisherdev/hookrelay/internal/domain/model"

// Formatter defines the driven port for building a delivery artifact from
// a raw event payload. Returning nil, nil declines to format -- some event
// actions are intentionally non-notifying. Implementations must degrade to
// a minimal artifact rather than fail on malformed payloads.
type Formatter interface {
	Format(eventType string, payload []byte) (*model.Artifact, error)
}
