package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/murillocortez/klyver-engine/internal/coupon"
	"github.com/murillocortez/klyver-engine/internal/domain"
)

// CouponRepository implements coupon.Repository.
type CouponRepository struct{ db *sql.DB }

// NewCouponRepository creates a Postgres-backed coupon repository.
func NewCouponRepository(db *sql.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) Insert(ctx context.Context, c *domain.Coupon) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO coupons (id, code, discount_type, discount_value, customer_id,
			start_date, end_date, usage_limit, usage_count, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.Code, c.DiscountType, c.DiscountValue, c.CustomerID,
		c.StartDate, c.EndDate, c.UsageLimit, c.UsageCount, c.Active)
	if isUniqueViolation(err) {
		return coupon.ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}
