package domain

import (
	"strings"
	"time"
)

// Customer is a read-only snapshot of a customer record owned by the
// upstream store. BirthDate is nullable; only its month/day are meaningful
// for the birthday campaign (the year is whatever the operator typed in).
type Customer struct {
	ID               string     `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	Phone            string     `json:"phone" db:"phone"`
	BirthDate        *time.Time `json:"birth_date" db:"birth_date"`
	LastPurchaseDate *time.Time `json:"last_purchase_date" db:"last_purchase_date"`
}

// FirstName returns the first whitespace-separated token of the customer's
// name, used for message personalization and coupon code prefixes.
func (c Customer) FirstName() string {
	name := strings.TrimSpace(c.Name)
	if i := strings.IndexAny(name, " \t"); i > 0 {
		return name[:i]
	}
	return name
}

// BirthdayMatches reports whether the customer's birth month/day equals the
// given date's month/day. Always false when BirthDate is null.
func (c Customer) BirthdayMatches(today time.Time) bool {
	if c.BirthDate == nil {
		return false
	}
	return c.BirthDate.Month() == today.Month() && c.BirthDate.Day() == today.Day()
}

// OrderAggregate is the windowed rollup of a customer's completed orders,
// used for VIP qualification.
type OrderAggregate struct {
	CustomerID string  `json:"customer_id" db:"customer_id"`
	TotalSpent float64 `json:"total_spent" db:"total_spent"`
	OrderCount int     `json:"order_count" db:"order_count"`
}
