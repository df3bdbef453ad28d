package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/murillocortez/klyver-engine/internal/domain"
)

// StatsRepository implements stats.Repository with count queries over the
// ledger and coupon tables.
type StatsRepository struct{ db *sql.DB }

// NewStatsRepository creates a Postgres-backed stats repository.
func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) CountActions(ctx context.Context, slug domain.CampaignSlug, status domain.ActionStatus, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM campaign_action_logs
		WHERE campaign_slug = $1 AND status = $2 AND created_at >= $3
	`, slug, status, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}

func (r *StatsRepository) CountVipIssuances(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vip_issuances WHERE issued_at >= $1
	`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count vip issuances: %w", err)
	}
	return n, nil
}

// CountRedeemedCoupons attributes a redemption to the period of redeemed_at,
// which checkout stamps when it increments usage_count. Rows redeemed before
// that column existed have a NULL redeemed_at and fall back to created_at, so
// a legacy coupon redeemed after the period boundary may be attributed to its
// issuance period.
func (r *StatsRepository) CountRedeemedCoupons(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM coupons
		WHERE usage_count > 0 AND COALESCE(redeemed_at, created_at) >= $1
	`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count redeemed coupons: %w", err)
	}
	return n, nil
}
