package domain

import "time"

// IssuanceStatus tracks the issue-then-notify lifecycle of a reward. Rows
// are inserted pending, the send is attempted, then the row is finalized.
// A pending or failed row inside its coupon's validity window is retryable.
type IssuanceStatus string

const (
	IssuancePending IssuanceStatus = "pending"
	IssuanceSent    IssuanceStatus = "sent"
	IssuanceFailed  IssuanceStatus = "failed"
)

// BirthdayIssuance proves a birthday reward was granted. Unique on
// (CustomerID, Year): at most one birthday coupon per customer per
// calendar year, enforced by the database.
type BirthdayIssuance struct {
	ID         string         `json:"id" db:"id"`
	CustomerID string         `json:"customer_id" db:"customer_id"`
	Year       int            `json:"year" db:"year"`
	CouponID   string         `json:"coupon_id" db:"coupon_id"`
	ValidUntil time.Time      `json:"valid_until" db:"valid_until"`
	Status     IssuanceStatus `json:"status" db:"status"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// VipReason records which threshold qualified the customer. Spend takes
// priority when both conditions hold.
type VipReason string

const (
	VipBySpend      VipReason = "spend_threshold"
	VipByOrderCount VipReason = "order_count"
)

// VipIssuance proves a VIP promotion was granted. Unique on CustomerID:
// a customer is promoted at most once, ever.
type VipIssuance struct {
	ID         string         `json:"id" db:"id"`
	CustomerID string         `json:"customer_id" db:"customer_id"`
	CouponID   string         `json:"coupon_id" db:"coupon_id"`
	Status     IssuanceStatus `json:"status" db:"status"`
	Reason     VipReason      `json:"reason" db:"reason"`
	IssuedAt   time.Time      `json:"issued_at" db:"issued_at"`
}
