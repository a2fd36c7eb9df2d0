// Package github implements the HostClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
	"github.com/ericfisherdev/hookrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HostClient = (*Client)(nil)

// RateObserver receives the rate-limit headers of every API response,
// keyed by the credential that made the call.
type RateObserver interface {
	UpdateFromHeaders(credential string, headers http.Header)
}

// Client implements the driven.HostClient port using the go-github library.
// Because polling credentials are resolved per repository, the underlying
// go-github clients are created lazily per token and cached.
type Client struct {
	rate    RateObserver
	baseURL *url.URL // nil in production; set by tests to an httptest server.

	mu       sync.Mutex
	clients  map[string]*gh.Client // keyed by token
	branches map[string]string     // default branch cache keyed by owner/name
}

// NewClient creates a new GitHub API client factory. Each per-token client
// carries the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(rate RateObserver) *Client {
	return &Client{
		rate:     rate,
		clients:  make(map[string]*gh.Client),
		branches: make(map[string]string),
	}
}

// NewClientWithBaseURL creates a Client whose API calls go to the given
// base URL. This constructor is intended for testing, allowing injection of
// an httptest server.
func NewClientWithBaseURL(baseURL string, rate RateObserver) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	return &Client{
		rate:     rate,
		baseURL:  u,
		clients:  make(map[string]*gh.Client),
		branches: make(map[string]string),
	}, nil
}

// FetchLatestCommit returns the most recent commit on the default branch,
// or nil if the repository has no commits yet.
func (c *Client) FetchLatestCommit(ctx context.Context, owner, name, credential, token string) (*model.Commit, error) {
	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: 1},
	}

	commits, resp, err := c.clientFor(token).Repositories.ListCommits(ctx, owner, name, opts)
	c.observeRate(credential, resp, owner+"/"+name, len(commits))
	if err != nil {
		if isEmptyRepo(resp) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing latest commit for %s/%s: %w", owner, name, err)
	}

	if len(commits) == 0 {
		return nil, nil
	}

	branch := c.defaultBranch(ctx, owner, name, credential, token)
	commit := mapCommit(commits[0], branch)
	return &commit, nil
}

// FetchRecentCommits returns up to CommitWindowSize commits on the default
// branch, newest first.
func (c *Client) FetchRecentCommits(ctx context.Context, owner, name, credential, token string) ([]model.Commit, error) {
	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: driven.CommitWindowSize},
	}

	commits, resp, err := c.clientFor(token).Repositories.ListCommits(ctx, owner, name, opts)
	c.observeRate(credential, resp, owner+"/"+name, len(commits))
	if err != nil {
		if isEmptyRepo(resp) {
			return []model.Commit{}, nil
		}
		return nil, fmt.Errorf("listing commits for %s/%s: %w", owner, name, err)
	}

	branch := c.defaultBranch(ctx, owner, name, credential, token)

	mapped := make([]model.Commit, 0, len(commits))
	for _, rc := range commits {
		mapped = append(mapped, mapCommit(rc, branch))
	}

	return mapped, nil
}

// clientFor returns the cached go-github client for the token, creating it
// on first use.
func (c *Client) clientFor(token string) *gh.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[token]; ok {
		return client
	}

	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}

	c.clients[token] = client
	return client
}

// defaultBranch resolves and caches the repository's default branch. The
// branch only decorates synthesized payloads, so lookup failures degrade to
// "main" instead of failing the poll.
func (c *Client) defaultBranch(ctx context.Context, owner, name, credential, token string) string {
	fullName := owner + "/" + name

	c.mu.Lock()
	if branch, ok := c.branches[fullName]; ok {
		c.mu.Unlock()
		return branch
	}
	c.mu.Unlock()

	repo, resp, err := c.clientFor(token).Repositories.Get(ctx, owner, name)
	c.observeRate(credential, resp, fullName, 1)
	if err != nil || repo.GetDefaultBranch() == "" {
		slog.Debug("default branch lookup failed", "repo", fullName, "error", err)
		return "main"
	}

	c.mu.Lock()
	c.branches[fullName] = repo.GetDefaultBranch()
	c.mu.Unlock()

	return repo.GetDefaultBranch()
}

// observeRate forwards rate-limit headers to the observer and logs the
// remaining quota after each call.
func (c *Client) observeRate(credential string, resp *gh.Response, endpoint string, count int) {
	if resp == nil {
		return
	}

	if c.rate != nil {
		c.rate.UpdateFromHeaders(credential, resp.Header)
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)
}

// isEmptyRepo reports whether the response indicates a repository with no
// commits. GitHub answers 409 Conflict for commit listings on empty repos.
func isEmptyRepo(resp *gh.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusConflict
}

// mapCommit converts a go-github RepositoryCommit to a domain model Commit.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapCommit(rc *gh.RepositoryCommit, branch string) model.Commit {
	author := rc.GetAuthor().GetLogin()
	if author == "" {
		author = rc.GetCommit().GetAuthor().GetName()
	}

	return model.Commit{
		SHA:     rc.GetSHA(),
		Message: rc.GetCommit().GetMessage(),
		Author:  author,
		URL:     rc.GetHTMLURL(),
		Branch:  branch,
	}
}
