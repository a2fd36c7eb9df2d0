package driven

import (
	"context"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
)

// CommitWindowSize is the bounded history window fetched when a checkpoint
// has moved.
const CommitWindowSize = 30

// HostClient defines the driven port for reading commit state from the
// source-control host. The token selects the credential for the call;
// implementations surface rate-limit response metadata to the rate limiter
// keyed by the credential name.
type HostClient interface {
	// FetchLatestCommit returns the most recent commit on the default
	// branch, or nil if the repository has no commits.
	FetchLatestCommit(ctx context.Context, owner, name, credential, token string) (*model.Commit, error)

	// FetchRecentCommits returns up to CommitWindowSize commits on the
	// default branch, newest first.
	FetchRecentCommits(ctx context.Context, owner, name, credential, token string) ([]model.Commit, error)
}
