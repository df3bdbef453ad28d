package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/murillocortez/klyver-engine/internal/domain"
)

// RunStore persists campaign pass records. A row is created when a pass
// starts, its checkpoint is advanced as customers are processed, and it is
// finalized with the pass counters when the pass ends.
type RunStore struct{ db *sql.DB }

// NewRunStore creates a Postgres-backed run store.
func NewRunStore(db *sql.DB) *RunStore { return &RunStore{db: db} }

func (s *RunStore) Create(ctx context.Context, run *domain.CampaignRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaign_runs (id, campaign_slug, status, started_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.Slug, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Checkpoint records the last processed customer id so an interrupted pass
// can be audited and resumed.
func (s *RunStore) Checkpoint(ctx context.Context, runID, customerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaign_runs SET checkpoint = $2 WHERE id = $1`, runID, customerID)
	if err != nil {
		return fmt.Errorf("checkpoint run: %w", err)
	}
	return nil
}

func (s *RunStore) Finish(ctx context.Context, run *domain.CampaignRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaign_runs
		SET status = $2, processed = $3, sent_count = $4, skipped_count = $5,
			failed_count = $6, simulated_count = $7, error = $8, finished_at = $9
		WHERE id = $1
	`, run.ID, run.Status, run.Processed, run.SentCount, run.SkippedCount,
		run.FailedCount, run.SimulatedCount, run.Error, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]domain.CampaignRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_slug, status, processed, sent_count, skipped_count,
			failed_count, simulated_count, checkpoint, error, started_at, finished_at
		FROM campaign_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignRun
	for rows.Next() {
		var r domain.CampaignRun
		if err := rows.Scan(&r.ID, &r.Slug, &r.Status, &r.Processed, &r.SentCount,
			&r.SkippedCount, &r.FailedCount, &r.SimulatedCount, &r.Checkpoint, &r.Error,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkStaleAborted flags runs stuck in the running state for longer than
// maxAge as aborted. Called at startup to clean up after crashes.
func (s *RunStore) MarkStaleAborted(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaign_runs
		SET status = $1, error = 'stale run aborted at startup', finished_at = NOW()
		WHERE status = $2 AND started_at < $3
	`, domain.RunAborted, domain.RunRunning, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("abort stale runs: %w", err)
	}
	return res.RowsAffected()
}
