package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
	"github.com/ericfisherdev/hookrelay/internal/domain/port/driven"
)

// maxSyntheticPerTick caps how many push events one poll of one repository
// may synthesize, bounding the event storm after a large gap.
const maxSyntheticPerTick = 5

// pollRequest is a manual single-repository poll trigger.
type pollRequest struct {
	fullName string
	done     chan error
}

// PollService synthesizes push events for repositories without webhook
// delivery by periodically diffing the latest commit against the stored
// checkpoint. Repositories are processed sequentially within one tick to
// keep rate-limit accounting deterministic, and a failure in one never
// aborts the others.
type PollService struct {
	host        driven.HostClient
	routing     driven.RoutingStore
	credentials driven.CredentialStore
	router      *RouterService
	rate        *RateLimiter

	// fallbackToken is the config-supplied token used when the credential
	// store has nothing for an entry.
	fallbackToken string

	interval   time.Duration
	pollCh     chan pollRequest
	intervalCh chan time.Duration
}

// NewPollService creates a PollService with all required dependencies.
func NewPollService(
	host driven.HostClient,
	routing driven.RoutingStore,
	credentials driven.CredentialStore,
	router *RouterService,
	rate *RateLimiter,
	fallbackToken string,
	interval time.Duration,
) *PollService {
	return &PollService{
		host:          host,
		routing:       routing,
		credentials:   credentials,
		router:        router,
		rate:          rate,
		fallbackToken: fallbackToken,
		interval:      interval,
		pollCh:        make(chan pollRequest),
		intervalCh:    make(chan time.Duration),
	}
}

// Start begins the polling loop. It runs an immediate poll, then polls on
// the configured interval, serving manual triggers and interval changes
// between ticks. The single-goroutine loop guarantees at most one in-flight
// poll per repository. Start blocks until the context is canceled.
func (s *PollService) Start(ctx context.Context) {
	s.pollAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer func() { ticker.Stop() }()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll service stopped")
			return
		case <-ticker.C:
			s.pollAll(ctx)
		case req := <-s.pollCh:
			req.done <- s.pollOne(ctx, req.fullName)
		case d := <-s.intervalCh:
			// The old ticker must be fully stopped before the replacement
			// starts so a stale tick can never fire.
			ticker.Stop()
			ticker = time.NewTicker(d)
			s.interval = d
			slog.Info("poll interval changed", "interval", d)
		}
	}
}

// PollNow triggers an immediate poll of one repository through the running
// loop, bypassing the schedule. It fails fast if the repository is unknown
// or not polling-enabled, and blocks until the poll completes or ctx is
// canceled.
func (s *PollService) PollNow(ctx context.Context, fullName string) error {
	done := make(chan error, 1)

	select {
	case s.pollCh <- pollRequest{fullName: fullName, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetInterval replaces the polling interval at runtime.
func (s *PollService) SetInterval(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", d)
	}

	select {
	case s.intervalCh <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pollAll polls every active polling-mode repository sequentially.
func (s *PollService) pollAll(ctx context.Context) {
	start := time.Now()

	entries, err := s.routing.ListPollable(ctx)
	if err != nil {
		slog.Error("listing pollable entries failed", "error", err)
		return
	}

	var pollErrors int
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		if err := s.pollEntry(ctx, entry); err != nil {
			slog.Error("repo poll failed", "repo", entry.FullName, "error", err)
			pollErrors++
		}
	}

	slog.Info("poll cycle complete",
		"repos", len(entries),
		"errors", pollErrors,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// pollOne polls a single repository by full name, for manual triggers.
func (s *PollService) pollOne(ctx context.Context, fullName string) error {
	entry, err := s.routing.GetByFullName(ctx, fullName)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("poll %s: %w", fullName, driven.ErrEntryNotFound)
	}
	if !entry.Active || entry.Mode != model.DeliveryModePolling {
		return fmt.Errorf("poll %s: %w", fullName, driven.ErrNotPollable)
	}

	return s.pollEntry(ctx, *entry)
}

// pollEntry is the per-repository poll procedure: credential resolution,
// rate-limit gate, checkpoint fetch, diff, event synthesis, checkpoint
// adoption. Fetch failures are recorded against the entry and leave the
// checkpoint untouched.
func (s *PollService) pollEntry(ctx context.Context, entry model.RoutingEntry) error {
	credential, token := s.resolveCredential(ctx, entry)
	if token == "" {
		slog.Warn("no credential available, skipping poll", "repo", entry.FullName)
		return nil
	}

	if s.rate.IsRateLimited(credential) {
		slog.Info("rate limited, skipping poll", "repo", entry.FullName, "credential", credential)
		return nil
	}

	latest, err := s.host.FetchLatestCommit(ctx, entry.Owner, entry.Name, credential, token)
	if err != nil {
		s.recordPollError(ctx, entry, err)
		return err
	}

	now := time.Now().UTC()

	if latest == nil {
		// Empty repository: nothing to diff against yet.
		return s.recordPollSuccess(ctx, entry, entry.LastCommitSHA, now)
	}

	if entry.LastCommitSHA == "" {
		// First observation: adopt the checkpoint without synthesizing
		// events, so a freshly added repository does not flood the channel
		// with its entire recent history.
		slog.Info("baseline checkpoint adopted", "repo", entry.FullName, "sha", latest.SHA)
		return s.recordPollSuccess(ctx, entry, latest.SHA, now)
	}

	if latest.SHA == entry.LastCommitSHA {
		return s.recordPollSuccess(ctx, entry, entry.LastCommitSHA, now)
	}

	commits, err := s.host.FetchRecentCommits(ctx, entry.Owner, entry.Name, credential, token)
	if err != nil {
		s.recordPollError(ctx, entry, err)
		return err
	}

	delta := commitsSinceCheckpoint(commits, entry.LastCommitSHA)
	if delta == nil {
		slog.Warn("checkpoint not in history window, falling back to recent commits",
			"repo", entry.FullName,
			"checkpoint", entry.LastCommitSHA,
			"window", len(commits),
		)
		delta = commits
	}
	if len(delta) > maxSyntheticPerTick {
		delta = delta[:maxSyntheticPerTick]
	}

	// delta is newest-first; dispatch in chronological order.
	for i := len(delta) - 1; i >= 0; i-- {
		payload, err := synthesizePushPayload(entry, delta[i])
		if err != nil {
			slog.Error("synthesizing push payload failed", "repo", entry.FullName, "sha", delta[i].SHA, "error", err)
			continue
		}
		s.router.DeliverPolled(ctx, entry, "push", payload)
	}

	checkpoint := latest.SHA
	if len(commits) > 0 {
		checkpoint = commits[0].SHA
	}

	slog.Info("poll synthesized events",
		"repo", entry.FullName,
		"events", len(delta),
		"checkpoint", checkpoint,
	)

	return s.recordPollSuccess(ctx, entry, checkpoint, now)
}

// resolveCredential returns the credential name and token for an entry:
// the entry's own credential if named, else the default credential, else
// the config fallback token.
func (s *PollService) resolveCredential(ctx context.Context, entry model.RoutingEntry) (name, token string) {
	name = entry.Credential
	if name == "" {
		name = driven.DefaultCredentialName
	}

	token, err := s.credentials.Get(ctx, name)
	if err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		slog.Error("credential lookup failed", "credential", name, "error", err)
	}
	if token == "" {
		token = s.fallbackToken
	}

	return name, token
}

// recordPollSuccess stores the new checkpoint and poll timestamp and clears
// any recorded error.
func (s *PollService) recordPollSuccess(ctx context.Context, entry model.RoutingEntry, checkpoint string, polledAt time.Time) error {
	clearErr := ""
	update := driven.RoutingUpdate{
		LastPolledAt: &polledAt,
		LastError:    &clearErr,
	}
	if checkpoint != "" {
		update.LastCommitSHA = &checkpoint
	}

	if err := s.routing.Update(ctx, entry.ID, update); err != nil {
		return fmt.Errorf("record poll success for %s: %w", entry.FullName, err)
	}
	return nil
}

// recordPollError stores the failure message against the entry. The
// checkpoint is never touched on failure.
func (s *PollService) recordPollError(ctx context.Context, entry model.RoutingEntry, pollErr error) {
	msg := pollErr.Error()
	if err := s.routing.Update(ctx, entry.ID, driven.RoutingUpdate{LastError: &msg}); err != nil {
		slog.Error("recording poll error failed", "repo", entry.FullName, "error", err)
	}
}

// commitsSinceCheckpoint returns the commits newer than the checkpoint
// within the newest-first window, or nil if the checkpoint is not present
// in the window.
func commitsSinceCheckpoint(commits []model.Commit, checkpoint string) []model.Commit {
	for i, c := range commits {
		if c.SHA == checkpoint {
			return commits[:i]
		}
	}
	return nil
}

// synthesizePushPayload builds a push-shaped webhook payload for one polled
// commit so it flows through the same summarize/format path as real push
// deliveries.
func synthesizePushPayload(entry model.RoutingEntry, commit model.Commit) ([]byte, error) {
	ref := "refs/heads/" + commit.Branch
	repoURL := "https://github.com/" + entry.FullName

	event := gh.PushEvent{
		Ref:     gh.Ptr(ref),
		Compare: gh.Ptr(commit.URL),
		Commits: []*gh.HeadCommit{{
			ID:      gh.Ptr(commit.SHA),
			Message: gh.Ptr(commit.Message),
			URL:     gh.Ptr(commit.URL),
			Author:  &gh.CommitAuthor{Name: gh.Ptr(commit.Author)},
		}},
		Sender: &gh.User{Login: gh.Ptr(commit.Author)},
		Repo: &gh.PushEventRepository{
			FullName: gh.Ptr(entry.FullName),
			HTMLURL:  gh.Ptr(repoURL),
		},
	}

	return json.Marshal(&event)
}
