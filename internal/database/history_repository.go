package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/antifraude/url-sentinel/internal/domain"
)

// HistoryRepository handles url_records data operations
type HistoryRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlx.DB, logger *slog.Logger) *HistoryRepository {
	return &HistoryRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// FindByNormalizedURL returns the record for a normalized URL, or nil when no
// record exists yet.
func (r *HistoryRepository) FindByNormalizedURL(ctx context.Context, normalizedURL string) (*URLRecord, error) {
	query := `
		SELECT * FROM url_records
		WHERE normalized_url = $1`

	var record URLRecord
	err := r.db.GetContext(ctx, &record, query, normalizedURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find url record", "normalized_url", normalizedURL, "error", err)
		return nil, fmt.Errorf("failed to find url record: %w", err)
	}

	return &record, nil
}

// GetByID retrieves a record by ID
func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*URLRecord, error) {
	query := `
		SELECT * FROM url_records
		WHERE id = $1`

	var record URLRecord
	err := r.db.GetContext(ctx, &record, query, id)
	if err != nil {
		r.logger.Error("Failed to get url record by ID", "record_id", id, "error", err)
		return nil, fmt.Errorf("failed to get url record by ID: %w", err)
	}

	return &record, nil
}

// Upsert creates the record on first sight or updates last_seen_at,
// last_verdict and last_score otherwise. Concurrent upserts for the same URL
// are last-writer-wins; the unique constraint on normalized_url guarantees a
// single row either way.
func (r *HistoryRepository) Upsert(ctx context.Context, normalizedURL, host string, verdict domain.Verdict, score int) (*URLRecord, error) {
	query := `
		INSERT INTO url_records (
			id, normalized_url, domain, first_seen_at, last_seen_at, last_verdict, last_score
		) VALUES (
			$1, $2, $3, $4, $4, $5, $6
		)
		ON CONFLICT (normalized_url) DO UPDATE SET
			domain       = EXCLUDED.domain,
			last_seen_at = EXCLUDED.last_seen_at,
			last_verdict = EXCLUDED.last_verdict,
			last_score   = EXCLUDED.last_score
		RETURNING *`

	now := time.Now().UTC()
	var record URLRecord
	err := r.db.GetContext(ctx, &record, query,
		uuid.New().String(), normalizedURL, host, now, string(verdict), domain.ClampScore(score))
	if err != nil {
		r.logger.Error("Failed to upsert url record", "normalized_url", normalizedURL, "error", err)
		return nil, fmt.Errorf("failed to upsert url record: %w", err)
	}

	return &record, nil
}

// List retrieves records ordered by most recently seen
func (r *HistoryRepository) List(ctx context.Context, filter Filter) ([]*URLRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT * FROM url_records
		ORDER BY last_seen_at DESC
		LIMIT $1 OFFSET $2`

	var records []*URLRecord
	err := r.db.SelectContext(ctx, &records, query, limit, filter.Offset)
	if err != nil {
		r.logger.Error("Failed to list url records", "error", err)
		return nil, fmt.Errorf("failed to list url records: %w", err)
	}

	return records, nil
}

// Delete removes a history record, evicting the pipeline cache for that URL
func (r *HistoryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM url_records WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete url record", "record_id", id, "error", err)
		return fmt.Errorf("failed to delete url record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("url record not found: %s", id)
	}

	r.logger.Info("URL record deleted", "record_id", id)
	return nil
}

// PruneOlderThan deletes records not seen since the cutoff and returns the
// number removed
func (r *HistoryRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM url_records WHERE last_seen_at < $1`, cutoff)
	if err != nil {
		r.logger.Error("Failed to prune url records", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to prune url records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
