package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ScheduledRepository maintains the scheduled-post projection rows that back
// the publishing queue view in the admin console.
type ScheduledRepository struct {
	db *sqlx.DB
}

// NewScheduledRepository creates a new ScheduledRepository.
func NewScheduledRepository(db *sqlx.DB) *ScheduledRepository {
	return &ScheduledRepository{db: db}
}

// UpsertPending records (or reschedules) a pending projection row for a post.
func (r *ScheduledRepository) UpsertPending(ctx context.Context, postID string, scheduledAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_posts WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("failed to clear scheduled row: %w", err)
	}
	query := `INSERT INTO scheduled_posts (post_id, scheduled_at, status, attempts) VALUES (?, ?, ?, 0)`
	if _, err := r.db.ExecContext(ctx, query, postID, scheduledAt, SchedulePending); err != nil {
		return fmt.Errorf("failed to insert scheduled row: %w", err)
	}
	return nil
}

// MarkAttempt records the outcome of one publish attempt.
func (r *ScheduledRepository) MarkAttempt(ctx context.Context, postID string, status ScheduledStatus, errMsg string) error {
	query := `UPDATE scheduled_posts SET status = ?, attempts = attempts + 1,
		last_attempt_at = ?, error_message = ? WHERE post_id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now(), errMsg, postID); err != nil {
		return fmt.Errorf("failed to mark scheduled attempt: %w", err)
	}
	return nil
}

// Remove drops the projection row for a post, used when a post leaves the
// scheduled status by any route other than publishing.
func (r *ScheduledRepository) Remove(ctx context.Context, postID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_posts WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("failed to remove scheduled row: %w", err)
	}
	return nil
}

// GetAll retrieves the whole projection, soonest first.
func (r *ScheduledRepository) GetAll(ctx context.Context) ([]*ScheduledPost, error) {
	var rows []*ScheduledPost
	query := `SELECT post_id, scheduled_at, status, attempts, last_attempt_at, error_message
		FROM scheduled_posts ORDER BY scheduled_at`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get scheduled posts: %w", err)
	}
	return rows, nil
}

// GetDuePending retrieves pending rows whose scheduled time has passed.
func (r *ScheduledRepository) GetDuePending(ctx context.Context, now time.Time) ([]*ScheduledPost, error) {
	var rows []*ScheduledPost
	query := `SELECT post_id, scheduled_at, status, attempts, last_attempt_at, error_message
		FROM scheduled_posts WHERE status = ? AND scheduled_at <= ? ORDER BY scheduled_at`
	if err := r.db.SelectContext(ctx, &rows, query, SchedulePending, now); err != nil {
		return nil, fmt.Errorf("failed to get due scheduled posts: %w", err)
	}
	return rows, nil
}
