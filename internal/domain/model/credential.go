package model

import "time"

// Credential is a named GitHub API token used by the poll service. The
// credential named "default" is used for entries without an explicit one.
type Credential struct {
	ID        int64
	Name      string
	Token     string
	UpdatedAt time.Time
}
