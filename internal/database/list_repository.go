package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ListRepository handles one allow-list or deny-list table. Both tables share
// the same shape; the repository is parameterized by table name.
type ListRepository struct {
	BaseRepository
	logger *slog.Logger
	table  string
}

// NewAllowlistRepository creates the repository backing the allow-list
func NewAllowlistRepository(db *sqlx.DB, logger *slog.Logger) *ListRepository {
	return newListRepository(db, logger, "allowlist_entries")
}

// NewDenylistRepository creates the repository backing the deny-list
func NewDenylistRepository(db *sqlx.DB, logger *slog.Logger) *ListRepository {
	return newListRepository(db, logger, "denylist_entries")
}

func newListRepository(db *sqlx.DB, logger *slog.Logger, table string) *ListRepository {
	return &ListRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
		table:          table,
	}
}

// Table returns the backing table name
func (r *ListRepository) Table() string {
	return r.table
}

// FindActive returns all active entries. Inactive entries are never matched.
func (r *ListRepository) FindActive(ctx context.Context) ([]*ListEntry, error) {
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE active = TRUE
		ORDER BY created_at`, r.table)

	var entries []*ListEntry
	err := r.db.SelectContext(ctx, &entries, query)
	if err != nil {
		r.logger.Error("Failed to find active list entries", "table", r.table, "error", err)
		return nil, fmt.Errorf("failed to find active list entries: %w", err)
	}

	return entries, nil
}

// Insert adds an entry. Duplicate values are silently absorbed because the
// pipeline feedback loop may race with itself; a second identical write must
// not fail.
func (r *ListRepository) Insert(ctx context.Context, entryType, value, reason string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, type, value, active, reason, created_at)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		ON CONFLICT (value) DO NOTHING`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), entryType, value, reason, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to insert list entry", "table", r.table, "value", value, "error", err)
		return fmt.Errorf("failed to insert list entry: %w", err)
	}

	return nil
}

// Deactivate soft-deletes an entry; entries are never hard-deleted
func (r *ListRepository) Deactivate(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET active = FALSE, deactivated_at = $2
		WHERE id = $1 AND active = TRUE`, r.table)

	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to deactivate list entry", "table", r.table, "entry_id", id, "error", err)
		return fmt.Errorf("failed to deactivate list entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("active list entry not found: %s", id)
	}

	r.logger.Info("List entry deactivated", "table", r.table, "entry_id", id)
	return nil
}

// List retrieves entries with pagination, newest first
func (r *ListRepository) List(ctx context.Context, filter Filter, includeInactive bool) ([]*ListEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "WHERE active = TRUE"
	if includeInactive {
		where = ""
	}

	query := fmt.Sprintf(`
		SELECT * FROM %s %s
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, r.table, where)

	var entries []*ListEntry
	err := r.db.SelectContext(ctx, &entries, query, limit, filter.Offset)
	if err != nil {
		r.logger.Error("Failed to list entries", "table", r.table, "error", err)
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	return entries, nil
}
