package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
)

// Sentinel errors returned by RoutingStore implementations.
var (
	// ErrEntryNotFound indicates the requested routing entry does not exist.
	ErrEntryNotFound = errors.New("routing entry not found")

	// ErrEntryAlreadyExists indicates an entry with the same full name already exists.
	ErrEntryAlreadyExists = errors.New("routing entry already exists")

	// ErrNotPollable indicates a manual poll was requested for an entry
	// that is inactive or not in polling mode.
	ErrNotPollable = errors.New("routing entry is not pollable")
)

// RoutingUpdate carries partial field updates for a routing entry. Nil
// pointers leave the column untouched. A LastError pointing at the empty
// string clears the stored error.
type RoutingUpdate struct {
	Channel       *string
	Secret        *string
	Active        *bool
	Mode          *model.DeliveryMode
	Credential    *string
	LastCommitSHA *string
	LastPolledAt  *time.Time
	LastError     *string
}

// RoutingStore defines the driven port for routing entry persistence.
// Add returns ErrEntryAlreadyExists if the full name is taken.
// Remove and Update return ErrEntryNotFound if the entry does not exist.
// Get methods return nil, nil when no entry matches.
type RoutingStore interface {
	Add(ctx context.Context, entry model.RoutingEntry) error
	Remove(ctx context.Context, fullName string) error
	GetByID(ctx context.Context, id int64) (*model.RoutingEntry, error)
	GetByFullName(ctx context.Context, fullName string) (*model.RoutingEntry, error)
	ListAll(ctx context.Context) ([]model.RoutingEntry, error)
	ListActive(ctx context.Context) ([]model.RoutingEntry, error)
	ListPollable(ctx context.Context) ([]model.RoutingEntry, error)
	Update(ctx context.Context, id int64, update RoutingUpdate) error
}
