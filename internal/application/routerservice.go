// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
	"github.com/ericfisherdev/hookrelay/internal/domain/port/driven"
)

// LegacyRoute is the single-target fallback used when no per-repository
// routing entry resolves: one global secret and a static event-type to
// channel map with a default channel.
type LegacyRoute struct {
	Secret         string
	DefaultChannel string
	ChannelByEvent map[string]string
}

// Configured reports whether the fallback can route anything at all.
func (l LegacyRoute) Configured() bool {
	return l.DefaultChannel != "" || len(l.ChannelByEvent) > 0
}

// ChannelFor returns the channel for the event type, falling back to the
// default channel.
func (l LegacyRoute) ChannelFor(eventType string) string {
	if ch, ok := l.ChannelByEvent[eventType]; ok {
		return ch
	}
	return l.DefaultChannel
}

// EventRef identifies the routing target named by the webhook request path.
// Zero values mean the path carried no explicit target.
type EventRef struct {
	ID       int64
	FullName string
}

// RouterService is the ingress pipeline for inbound events: it resolves the
// routing entry, verifies the signature, applies the active flag and mute
// rules, formats a delivery artifact, dispatches it, and records the
// outcome in the digest and counters. Every event ends in exactly one of
// the outcomes sent, dropped, ignored, or muted; no failure escapes the
// pipeline.
type RouterService struct {
	routing    driven.RoutingStore
	formatter  driven.Formatter
	dispatcher driven.Dispatcher
	mutes      *MuteRegistry
	digest     *DigestBuffer
	stats      *Stats
	legacy     LegacyRoute
}

// NewRouterService creates a RouterService with all required dependencies.
func NewRouterService(
	routing driven.RoutingStore,
	formatter driven.Formatter,
	dispatcher driven.Dispatcher,
	mutes *MuteRegistry,
	digest *DigestBuffer,
	stats *Stats,
	legacy LegacyRoute,
) *RouterService {
	return &RouterService{
		routing:    routing,
		formatter:  formatter,
		dispatcher: dispatcher,
		mutes:      mutes,
		digest:     digest,
		stats:      stats,
		legacy:     legacy,
	}
}

// ProcessWebhook runs the full ingress pipeline for one webhook delivery.
// The HTTP response has already been sent by the time this runs; the
// returned outcome exists for bookkeeping and tests, not the remote caller.
func (s *RouterService) ProcessWebhook(ctx context.Context, ref EventRef, eventType, signature string, payload []byte) model.Outcome {
	s.stats.RecordReceived()

	entry, err := s.resolve(ctx, ref, payload)
	if err != nil {
		slog.Error("routing entry lookup failed", "event_type", eventType, "error", err)
		return s.finish(eventType, payload, model.OutcomeIgnored)
	}

	var secret, channel string
	switch {
	case entry != nil:
		secret = entry.Secret
		channel = entry.Channel
	case s.legacy.Configured():
		secret = s.legacy.Secret
		channel = s.legacy.ChannelFor(eventType)
	default:
		slog.Warn("no routing entry resolved and no fallback configured", "event_type", eventType)
		return s.finish(eventType, payload, model.OutcomeIgnored)
	}

	if entry != nil && !entry.Active {
		slog.Info("routing entry inactive, event ignored", "repo", entry.FullName, "event_type", eventType)
		return s.finish(eventType, payload, model.OutcomeIgnored)
	}

	if secret == "" {
		slog.Info("no webhook secret configured, accepting unsigned delivery", "event_type", eventType)
	}
	if !VerifySignature(payload, signature, secret) {
		slog.Warn("webhook signature verification failed", "event_type", eventType)
		return s.finish(eventType, payload, model.OutcomeIgnored)
	}

	// Ping is the user's only feedback that wiring succeeded: it bypasses
	// mutes and formatting and always attempts a dispatch.
	if eventType == "ping" {
		return s.finish(eventType, payload, s.dispatchPing(ctx, channel, payload))
	}

	return s.finish(eventType, payload, s.deliverTail(ctx, channel, eventType, payload))
}

// DeliverPolled feeds a synthesized event from the poll service into the
// same downstream path as webhook deliveries: mute check, formatting,
// digest, dispatch. Signature and active checks do not apply; the poll
// service only processes active polling entries.
func (s *RouterService) DeliverPolled(ctx context.Context, entry model.RoutingEntry, eventType string, payload []byte) model.Outcome {
	s.stats.RecordReceived()
	return s.finish(eventType, payload, s.deliverTail(ctx, entry.Channel, eventType, payload))
}

// deliverTail runs mute, format, channel, and dispatch for an accepted
// event and returns the outcome.
func (s *RouterService) deliverTail(ctx context.Context, channel, eventType string, payload []byte) model.Outcome {
	if s.mutes.IsMuted(eventType) {
		return model.OutcomeMuted
	}

	artifact, err := s.formatter.Format(eventType, payload)
	if err != nil {
		slog.Error("formatter failed, event ignored", "event_type", eventType, "error", err)
		return model.OutcomeIgnored
	}
	if artifact == nil {
		return model.OutcomeIgnored
	}

	if channel == "" {
		slog.Warn("no delivery channel configured, event dropped", "event_type", eventType)
		return model.OutcomeDropped
	}

	if err := s.dispatcher.Dispatch(ctx, channel, *artifact); err != nil {
		slog.Error("dispatch failed, event dropped", "event_type", eventType, "channel", channel, "error", err)
		return model.OutcomeDropped
	}

	return model.OutcomeSent
}

// dispatchPing sends the fixed liveness confirmation artifact.
func (s *RouterService) dispatchPing(ctx context.Context, channel string, payload []byte) model.Outcome {
	env := parseEnvelope(payload)
	artifact := model.Artifact{
		Text:      "webhook configured and reachable",
		EventType: "ping",
		Repo:      env.Repository.FullName,
	}
	if env.Repository.FullName != "" {
		artifact.Text = fmt.Sprintf("webhook configured and reachable for %s", env.Repository.FullName)
	}

	if channel == "" {
		slog.Warn("ping received but no delivery channel configured")
		return model.OutcomeDropped
	}

	if err := s.dispatcher.Dispatch(ctx, channel, artifact); err != nil {
		slog.Error("ping dispatch failed", "channel", channel, "error", err)
		return model.OutcomeDropped
	}

	return model.OutcomeSent
}

// finish records the outcome in the digest and counters.
func (s *RouterService) finish(eventType string, payload []byte, outcome model.Outcome) model.Outcome {
	s.digest.Push(eventType, payload, outcome)
	s.stats.RecordOutcome(outcome)
	return outcome
}

// resolve finds the routing entry for a delivery: explicit numeric id
// first, then explicit owner/name, then the repository identity embedded
// in the payload. Returns nil, nil when nothing resolves.
func (s *RouterService) resolve(ctx context.Context, ref EventRef, payload []byte) (*model.RoutingEntry, error) {
	if ref.ID != 0 {
		return s.routing.GetByID(ctx, ref.ID)
	}

	if ref.FullName != "" {
		return s.routing.GetByFullName(ctx, ref.FullName)
	}

	if fullName := parseEnvelope(payload).Repository.FullName; fullName != "" {
		return s.routing.GetByFullName(ctx, fullName)
	}

	return nil, nil
}

// Mutes exposes the mute registry for the driving adapters.
func (s *RouterService) Mutes() *MuteRegistry { return s.mutes }

// Digest exposes the digest buffer for the driving adapters.
func (s *RouterService) Digest() *DigestBuffer { return s.digest }

// Stats exposes the outcome counters for the driving adapters.
func (s *RouterService) Stats() *Stats { return s.stats }
