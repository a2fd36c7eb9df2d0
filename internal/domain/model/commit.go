package model

// Commit is one commit observed while polling a repository. Branch is the
// repository's default branch (polling only observes the default branch).
type Commit struct {
	SHA     string
	Message string
	Author  string
	URL     string
	Branch  string
}
