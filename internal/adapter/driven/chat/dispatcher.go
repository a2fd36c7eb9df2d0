// Package chat implements the Dispatcher port by posting artifacts to a
// channel's incoming-webhook URL.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
	"github.com/ericfisherdev/hookrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Dispatcher = (*Dispatcher)(nil)

// defaultTimeout bounds one delivery attempt. A hung chat endpoint must not
// stall the poll loop for the rest of a tick.
const defaultTimeout = 10 * time.Second

// Dispatcher delivers artifacts by POSTing them as JSON to the channel
// identifier, which is treated as an incoming-webhook URL (the convention
// used by Slack, Discord, Mattermost, and friends).
type Dispatcher struct {
	client *http.Client
}

// NewDispatcher creates a Dispatcher with a bounded-timeout HTTP client.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// Dispatch posts the artifact to the channel webhook URL. Any non-2xx
// response is a delivery failure.
func (d *Dispatcher) Dispatch(ctx context.Context, channel string, artifact model.Artifact) error {
	body, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch to channel: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dispatch to channel: unexpected status %d", resp.StatusCode)
	}

	return nil
}
