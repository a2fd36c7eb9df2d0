package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
	"github.com/ericfisherdev/hookrelay/internal/domain/port/driven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoutingStore is an in-memory RoutingStore for service tests.
type fakeRoutingStore struct {
	entries map[string]*model.RoutingEntry
	updates []driven.RoutingUpdate
	err     error
}

func newFakeRoutingStore(entries ...model.RoutingEntry) *fakeRoutingStore {
	s := &fakeRoutingStore{entries: make(map[string]*model.RoutingEntry)}
	for i := range entries {
		e := entries[i]
		s.entries[e.FullName] = &e
	}
	return s
}

func (s *fakeRoutingStore) Add(_ context.Context, entry model.RoutingEntry) error {
	if _, ok := s.entries[entry.FullName]; ok {
		return driven.ErrEntryAlreadyExists
	}
	s.entries[entry.FullName] = &entry
	return nil
}

func (s *fakeRoutingStore) Remove(_ context.Context, fullName string) error {
	if _, ok := s.entries[fullName]; !ok {
		return driven.ErrEntryNotFound
	}
	delete(s.entries, fullName)
	return nil
}

func (s *fakeRoutingStore) GetByID(_ context.Context, id int64) (*model.RoutingEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, e := range s.entries {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeRoutingStore) GetByFullName(_ context.Context, fullName string) (*model.RoutingEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	e, ok := s.entries[fullName]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (s *fakeRoutingStore) ListAll(_ context.Context) ([]model.RoutingEntry, error) {
	var out []model.RoutingEntry
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out, nil
}

func (s *fakeRoutingStore) ListActive(_ context.Context) ([]model.RoutingEntry, error) {
	var out []model.RoutingEntry
	for _, e := range s.entries {
		if e.Active {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeRoutingStore) ListPollable(_ context.Context) ([]model.RoutingEntry, error) {
	var out []model.RoutingEntry
	for _, e := range s.entries {
		if e.Active && e.Mode == model.DeliveryModePolling {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeRoutingStore) Update(_ context.Context, id int64, update driven.RoutingUpdate) error {
	s.updates = append(s.updates, update)
	for _, e := range s.entries {
		if e.ID != id {
			continue
		}
		if update.LastCommitSHA != nil {
			e.LastCommitSHA = *update.LastCommitSHA
		}
		if update.LastPolledAt != nil {
			e.LastPolledAt = *update.LastPolledAt
		}
		if update.LastError != nil {
			e.LastError = *update.LastError
		}
		if update.Active != nil {
			e.Active = *update.Active
		}
		return nil
	}
	return driven.ErrEntryNotFound
}

// fakeDispatcher records every dispatched artifact.
type fakeDispatcher struct {
	channels  []string
	artifacts []model.Artifact
	err       error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, channel string, artifact model.Artifact) error {
	if d.err != nil {
		return d.err
	}
	d.channels = append(d.channels, channel)
	d.artifacts = append(d.artifacts, artifact)
	return nil
}

func webhookEntry(id int64, fullName, channel, secret string) model.RoutingEntry {
	return model.RoutingEntry{
		ID:        id,
		Owner:     "octocat",
		Name:      "hello-world",
		FullName:  fullName,
		Channel:   channel,
		Secret:    secret,
		Active:    true,
		Mode:      model.DeliveryModeWebhook,
		CreatedAt: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func newTestRouter(store *fakeRoutingStore, dispatcher *fakeDispatcher, legacy LegacyRoute) *RouterService {
	return NewRouterService(store, NewDefaultFormatter(), dispatcher, NewMuteRegistry(), NewDigestBuffer(), NewStats(), legacy)
}

func TestProcessWebhook_Sent(t *testing.T) {
	store := newFakeRoutingStore(webhookEntry(1, "octocat/hello-world", "https://chat.example.com/hooks/dev", "s3cret"))
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	payload := []byte(`{"action":"opened","repository":{"full_name":"octocat/hello-world"},"pull_request":{"number":1,"title":"Hi"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{FullName: "octocat/hello-world"}, "pull_request", sign(payload, "s3cret"), payload)

	assert.Equal(t, model.OutcomeSent, outcome)
	require.Len(t, dispatcher.artifacts, 1)
	assert.Equal(t, "https://chat.example.com/hooks/dev", dispatcher.channels[0])
	assert.Equal(t, "pull_request", dispatcher.artifacts[0].EventType)

	snap := router.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.Received)
	assert.Equal(t, int64(1), snap.Sent)
	assert.Equal(t, 1, router.Digest().Size())
}

func TestProcessWebhook_InactiveEntryIgnoredWithoutDispatch(t *testing.T) {
	entry := webhookEntry(1, "octocat/hello-world", "https://chat.example.com/hooks/dev", "")
	entry.Active = false
	store := newFakeRoutingStore(entry)
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	payload := []byte(`{"repository":{"full_name":"octocat/hello-world"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "push", "", payload)

	assert.Equal(t, model.OutcomeIgnored, outcome)
	assert.Empty(t, dispatcher.artifacts, "inactive entry must not dispatch")

	entries := router.Digest().Recent(1)
	require.Len(t, entries, 1)
	assert.Equal(t, model.OutcomeIgnored, entries[0].Outcome)
}

func TestProcessWebhook_BadSignatureIgnored(t *testing.T) {
	store := newFakeRoutingStore(webhookEntry(1, "octocat/hello-world", "https://chat.example.com/hooks/dev", "s3cret"))
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	payload := []byte(`{"repository":{"full_name":"octocat/hello-world"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "push", "sha256=deadbeef", payload)

	assert.Equal(t, model.OutcomeIgnored, outcome)
	assert.Empty(t, dispatcher.artifacts)
	assert.Equal(t, int64(1), router.Stats().Snapshot().Ignored)
}

func TestProcessWebhook_NoSecretAcceptsUnsigned(t *testing.T) {
	store := newFakeRoutingStore(webhookEntry(1, "octocat/hello-world", "https://chat.example.com/hooks/dev", ""))
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	payload := []byte(`{"repository":{"full_name":"octocat/hello-world"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "push", "", payload)

	assert.Equal(t, model.OutcomeSent, outcome)
}

func TestProcessWebhook_MutedEvent(t *testing.T) {
	store := newFakeRoutingStore(webhookEntry(1, "octocat/hello-world", "https://chat.example.com/hooks/dev", ""))
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	router.Mutes().Mute("push", time.Hour, "alice", "deploy window")

	payload := []byte(`{"repository":{"full_name":"octocat/hello-world"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "push", "", payload)

	assert.Equal(t, model.OutcomeMuted, outcome)
	assert.Empty(t, dispatcher.artifacts)
	assert.Equal(t, int64(1), router.Stats().Snapshot().Muted)
}

func TestProcessWebhook_PingBypassesMute(t *testing.T) {
	store := newFakeRoutingStore(webhookEntry(1, "octocat/hello-world", "https://chat.example.com/hooks/dev", ""))
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	router.Mutes().Mute("ping", time.Hour, "", "")

	payload := []byte(`{"zen":"Design for failure.","repository":{"full_name":"octocat/hello-world"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "ping", "", payload)

	assert.Equal(t, model.OutcomeSent, outcome)
	require.Len(t, dispatcher.artifacts, 1)
	assert.Contains(t, dispatcher.artifacts[0].Text, "octocat/hello-world")
	assert.Equal(t, "ping", dispatcher.artifacts[0].EventType)
}

func TestProcessWebhook_QuietActionIgnored(t *testing.T) {
	store := newFakeRoutingStore(webhookEntry(1, "octocat/hello-world", "https://chat.example.com/hooks/dev", ""))
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	payload := []byte(`{"action":"synchronize","repository":{"full_name":"octocat/hello-world"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "pull_request", "", payload)

	assert.Equal(t, model.OutcomeIgnored, outcome)
	assert.Empty(t, dispatcher.artifacts)
}

func TestProcessWebhook_NoChannelDropped(t *testing.T) {
	store := newFakeRoutingStore(webhookEntry(1, "octocat/hello-world", "", ""))
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	payload := []byte(`{"repository":{"full_name":"octocat/hello-world"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "push", "", payload)

	assert.Equal(t, model.OutcomeDropped, outcome)
	assert.Equal(t, int64(1), router.Stats().Snapshot().Dropped)
}

func TestProcessWebhook_DispatchFailureDropped(t *testing.T) {
	store := newFakeRoutingStore(webhookEntry(1, "octocat/hello-world", "https://chat.example.com/hooks/dev", ""))
	dispatcher := &fakeDispatcher{err: errors.New("connection refused")}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	payload := []byte(`{"repository":{"full_name":"octocat/hello-world"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "push", "", payload)

	assert.Equal(t, model.OutcomeDropped, outcome)
}

func TestProcessWebhook_LegacyFallback(t *testing.T) {
	store := newFakeRoutingStore()
	dispatcher := &fakeDispatcher{}
	legacy := LegacyRoute{
		Secret:         "legacy-secret",
		DefaultChannel: "https://chat.example.com/hooks/default",
		ChannelByEvent: map[string]string{"release": "https://chat.example.com/hooks/announce"},
	}
	router := newTestRouter(store, dispatcher, legacy)

	payload := []byte(`{"repository":{"full_name":"unknown/repo"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "push", sign(payload, "legacy-secret"), payload)

	assert.Equal(t, model.OutcomeSent, outcome)
	require.Len(t, dispatcher.channels, 1)
	assert.Equal(t, "https://chat.example.com/hooks/default", dispatcher.channels[0])
}

func TestProcessWebhook_LegacyChannelByEvent(t *testing.T) {
	store := newFakeRoutingStore()
	dispatcher := &fakeDispatcher{}
	legacy := LegacyRoute{
		DefaultChannel: "https://chat.example.com/hooks/default",
		ChannelByEvent: map[string]string{"release": "https://chat.example.com/hooks/announce"},
	}
	router := newTestRouter(store, dispatcher, legacy)

	payload := []byte(`{"action":"published","release":{"tag_name":"v1.0.0"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "release", "", payload)

	assert.Equal(t, model.OutcomeSent, outcome)
	require.Len(t, dispatcher.channels, 1)
	assert.Equal(t, "https://chat.example.com/hooks/announce", dispatcher.channels[0])
}

func TestProcessWebhook_NoEntryNoFallbackIgnored(t *testing.T) {
	store := newFakeRoutingStore()
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	payload := []byte(`{"repository":{"full_name":"unknown/repo"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "push", "", payload)

	assert.Equal(t, model.OutcomeIgnored, outcome)
	assert.Empty(t, dispatcher.artifacts)
}

func TestProcessWebhook_StoreErrorIgnored(t *testing.T) {
	store := newFakeRoutingStore()
	store.err = errors.New("db locked")
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	payload := []byte(`{"repository":{"full_name":"octocat/hello-world"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{}, "push", "", payload)

	assert.Equal(t, model.OutcomeIgnored, outcome)
}

func TestProcessWebhook_ResolveByID(t *testing.T) {
	store := newFakeRoutingStore(webhookEntry(7, "octocat/hello-world", "https://chat.example.com/hooks/dev", ""))
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	// Payload names a different repo; the explicit id wins.
	payload := []byte(`{"repository":{"full_name":"other/repo"}}`)
	outcome := router.ProcessWebhook(context.Background(), EventRef{ID: 7}, "push", "", payload)

	assert.Equal(t, model.OutcomeSent, outcome)
}

func TestDeliverPolled_SkipsSignatureAndActiveChecks(t *testing.T) {
	store := newFakeRoutingStore()
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	entry := webhookEntry(1, "octocat/hello-world", "https://chat.example.com/hooks/dev", "s3cret")
	payload := []byte(`{"ref":"refs/heads/main","sender":{"login":"alice"},"commits":[{"id":"abc"}]}`)

	outcome := router.DeliverPolled(context.Background(), entry, "push", payload)

	assert.Equal(t, model.OutcomeSent, outcome)
	require.Len(t, dispatcher.artifacts, 1)
}

func TestDeliverPolled_RespectsMutes(t *testing.T) {
	store := newFakeRoutingStore()
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(store, dispatcher, LegacyRoute{})

	router.Mutes().Mute("push", time.Hour, "", "")

	entry := webhookEntry(1, "octocat/hello-world", "https://chat.example.com/hooks/dev", "")
	outcome := router.DeliverPolled(context.Background(), entry, "push", []byte(`{}`))

	assert.Equal(t, model.OutcomeMuted, outcome)
	assert.Empty(t, dispatcher.artifacts)
}
