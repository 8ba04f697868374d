package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"matching-workers/internal/matching"
	"matching-workers/internal/models"
)

const (
	markStatusSQL    = `UPDATE search_profiles SET match_status = $2, updated_at = NOW() WHERE id = $1`
	markCompletedSQL = `UPDATE search_profiles SET match_status = $2, match_count = $3, last_matched_at = $4, updated_at = NOW() WHERE id = $1`
)

// StatusReporter tracks run progress in the match_status, match_count and
// last_matched_at columns of search_profiles.
type StatusReporter struct {
	db *sql.DB
}

func NewStatusReporter(db *sql.DB) *StatusReporter {
	return &StatusReporter{db: db}
}

func (r *StatusReporter) MarkProcessing(ctx context.Context, id int64) error {
	return r.exec(ctx, markStatusSQL, id, int(models.MatchStatusProcessing))
}

func (r *StatusReporter) MarkCompleted(ctx context.Context, id int64, count int, at time.Time) error {
	return r.exec(ctx, markCompletedSQL, id, int(models.MatchStatusCompleted), count, at.UTC())
}

func (r *StatusReporter) MarkFailed(ctx context.Context, id int64, _ error) error {
	return r.exec(ctx, markStatusSQL, id, int(models.MatchStatusFailed))
}

func (r *StatusReporter) exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update match status: %w", err)
	}
	return nil
}

var _ matching.StatusReporter = (*StatusReporter)(nil)
