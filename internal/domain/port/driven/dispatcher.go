package driven

import (
	"context"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
)

// Dispatcher defines the driven port for delivering an artifact to a chat
// channel. A returned error is a transient delivery failure; the router
// records it as a dropped outcome and never retries.
type Dispatcher interface {
	Dispatch(ctx context.Context, channel string, artifact model.Artifact) error
}
