package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
	"github.com/ericfisherdev/hookrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RoutingStore = (*RoutingRepo)(nil)

// routingColumns is the select list shared by every read query.
const routingColumns = `id, owner, name, full_name, channel, secret, active, mode, credential, last_commit_sha, last_polled_at, last_error, created_at`

// RoutingRepo is the SQLite implementation of the RoutingStore port interface.
type RoutingRepo struct {
	db *DB
}

// NewRoutingRepo creates a new RoutingRepo backed by the given DB.
func NewRoutingRepo(db *DB) *RoutingRepo {
	return &RoutingRepo{db: db}
}

// Add inserts a new routing entry. Returns ErrEntryAlreadyExists if an
// entry with the same full_name exists.
func (r *RoutingRepo) Add(ctx context.Context, entry model.RoutingEntry) error {
	const query = `INSERT INTO routing_entries (owner, name, full_name, channel, secret, active, mode, credential, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	mode := entry.Mode
	if mode == "" {
		mode = model.DeliveryModeWebhook
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		entry.Owner, entry.Name, entry.FullName,
		entry.Channel, entry.Secret, entry.Active, string(mode),
		entry.Credential, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("add routing entry %s: %w", entry.FullName, driven.ErrEntryAlreadyExists)
		}
		return fmt.Errorf("add routing entry %s: %w", entry.FullName, err)
	}

	return nil
}

// Remove deletes a routing entry by full name. Returns ErrEntryNotFound if
// no entry matches.
func (r *RoutingRepo) Remove(ctx context.Context, fullName string) error {
	const query = `DELETE FROM routing_entries WHERE full_name = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, fullName)
	if err != nil {
		return fmt.Errorf("remove routing entry %s: %w", fullName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("remove routing entry %s: %w", fullName, driven.ErrEntryNotFound)
	}

	return nil
}

// GetByID retrieves a routing entry by its numeric id. Returns nil, nil if
// no entry matches.
func (r *RoutingRepo) GetByID(ctx context.Context, id int64) (*model.RoutingEntry, error) {
	query := `SELECT ` + routingColumns + ` FROM routing_entries WHERE id = ?`

	entry, err := scanRoutingEntry(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get routing entry %d: %w", id, err)
	}

	return entry, nil
}

// GetByFullName retrieves a routing entry by owner/name. Returns nil, nil
// if no entry matches.
func (r *RoutingRepo) GetByFullName(ctx context.Context, fullName string) (*model.RoutingEntry, error) {
	query := `SELECT ` + routingColumns + ` FROM routing_entries WHERE full_name = ?`

	entry, err := scanRoutingEntry(r.db.Reader.QueryRowContext(ctx, query, fullName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get routing entry %s: %w", fullName, err)
	}

	return entry, nil
}

// ListAll returns all routing entries ordered by full name.
func (r *RoutingRepo) ListAll(ctx context.Context) ([]model.RoutingEntry, error) {
	query := `SELECT ` + routingColumns + ` FROM routing_entries ORDER BY full_name`
	return r.list(ctx, query)
}

// ListActive returns all active routing entries ordered by full name.
func (r *RoutingRepo) ListActive(ctx context.Context) ([]model.RoutingEntry, error) {
	query := `SELECT ` + routingColumns + ` FROM routing_entries WHERE active = 1 ORDER BY full_name`
	return r.list(ctx, query)
}

// ListPollable returns all active entries in polling mode ordered by full name.
func (r *RoutingRepo) ListPollable(ctx context.Context) ([]model.RoutingEntry, error) {
	query := `SELECT ` + routingColumns + ` FROM routing_entries WHERE active = 1 AND mode = 'polling' ORDER BY full_name`
	return r.list(ctx, query)
}

// Update applies the non-nil fields of the update to the entry. A LastError
// pointing at the empty string clears the stored error to NULL. Returns
// ErrEntryNotFound if no entry has the given id.
func (r *RoutingRepo) Update(ctx context.Context, id int64, update driven.RoutingUpdate) error {
	var sets []string
	var args []any

	if update.Channel != nil {
		sets = append(sets, "channel = ?")
		args = append(args, *update.Channel)
	}
	if update.Secret != nil {
		sets = append(sets, "secret = ?")
		args = append(args, *update.Secret)
	}
	if update.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, *update.Active)
	}
	if update.Mode != nil {
		sets = append(sets, "mode = ?")
		args = append(args, string(*update.Mode))
	}
	if update.Credential != nil {
		sets = append(sets, "credential = ?")
		args = append(args, *update.Credential)
	}
	if update.LastCommitSHA != nil {
		sets = append(sets, "last_commit_sha = ?")
		args = append(args, *update.LastCommitSHA)
	}
	if update.LastPolledAt != nil {
		sets = append(sets, "last_polled_at = ?")
		args = append(args, update.LastPolledAt.UTC().Format(time.RFC3339))
	}
	if update.LastError != nil {
		sets = append(sets, "last_error = ?")
		if *update.LastError == "" {
			args = append(args, nil)
		} else {
			args = append(args, *update.LastError)
		}
	}

	if len(sets) == 0 {
		return nil
	}

	query := `UPDATE routing_entries SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)

	result, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update routing entry %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update routing entry %d: %w", id, driven.ErrEntryNotFound)
	}

	return nil
}

// list runs a query over the full routing column set and scans all rows.
func (r *RoutingRepo) list(ctx context.Context, query string) ([]model.RoutingEntry, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list routing entries: %w", err)
	}
	defer rows.Close()

	var entries []model.RoutingEntry
	for rows.Next() {
		entry, err := scanRoutingEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan routing entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routing entries: %w", err)
	}

	return entries, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRoutingEntry(s scanner) (*model.RoutingEntry, error) {
	var entry model.RoutingEntry
	var mode, createdAt string
	var lastSHA, lastPolledAt, lastError sql.NullString

	err := s.Scan(
		&entry.ID, &entry.Owner, &entry.Name, &entry.FullName,
		&entry.Channel, &entry.Secret, &entry.Active, &mode,
		&entry.Credential, &lastSHA, &lastPolledAt, &lastError, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Mode = model.DeliveryMode(mode)
	entry.LastCommitSHA = lastSHA.String
	entry.LastError = lastError.String

	if lastPolledAt.Valid {
		entry.LastPolledAt, err = parseTime(lastPolledAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_polled_at: %w", err)
		}
	}

	entry.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &entry, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
