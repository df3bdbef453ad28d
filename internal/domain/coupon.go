package domain

import "time"

// DiscountType enumerates how a coupon's value is applied. The engine only
// issues percentage coupons; the type exists so the checkout subsystem can
// share the schema.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
)

// Coupon is a single-use, single-customer discount voucher. DiscountValue is
// a snapshot of the campaign's discount percent at issuance time and is
// immutable afterward. UsageCount and RedeemedAt are written by the checkout
// subsystem on redemption; everything else is written once by the engine.
type Coupon struct {
	ID            string       `json:"id" db:"id"`
	Code          string       `json:"code" db:"code"`
	DiscountType  DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue float64      `json:"discount_value" db:"discount_value"`
	CustomerID    string       `json:"customer_id" db:"customer_id"`
	StartDate     time.Time    `json:"start_date" db:"start_date"`
	EndDate       time.Time    `json:"end_date" db:"end_date"`
	UsageLimit    int          `json:"usage_limit" db:"usage_limit"`
	UsageCount    int          `json:"usage_count" db:"usage_count"`
	Active        bool         `json:"active" db:"active"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	RedeemedAt    *time.Time   `json:"redeemed_at,omitempty" db:"redeemed_at"`
}
