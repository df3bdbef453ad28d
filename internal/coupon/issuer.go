// Package coupon issues single-use, single-customer discount coupons with
// unique codes. Collisions on generated codes are retried with a
// disambiguating suffix a bounded number of times before surfacing failure
// for that customer only.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/murillocortez/klyver-engine/internal/domain"
)

// ErrDuplicateCode is returned by Repository.Insert when the coupon code is
// already taken, and by Issue when every retry attempt collided.
var ErrDuplicateCode = errors.New("coupon code already exists")

// maxCodeLen bounds generated coupon codes (suffix included).
const maxCodeLen = 20

// maxAttempts is the number of insert tries per issuance: the base code plus
// two suffixed retries.
const maxAttempts = 3

// Repository persists coupons. Insert must return ErrDuplicateCode when the
// code unique key is violated.
type Repository interface {
	Insert(ctx context.Context, c *domain.Coupon) error
}

// Issuer creates coupons against a Repository.
type Issuer struct {
	repo Repository
	now  func() time.Time
}

// NewIssuer creates a coupon issuer.
func NewIssuer(repo Repository) *Issuer {
	return &Issuer{repo: repo, now: time.Now}
}

// Issue creates a percentage coupon for the customer. The discount value is
// snapshotted from the campaign config and never changes afterward;
// end_date is exactly issued-at plus validityDays.
func (i *Issuer) Issue(ctx context.Context, code string, discountValue float64, customerID string, validityDays int) (*domain.Coupon, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	if validityDays <= 0 {
		return nil, fmt.Errorf("validity days must be positive")
	}

	issuedAt := i.now()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		c := &domain.Coupon{
			ID:            uuid.New().String(),
			Code:          withSuffix(code, attempt),
			DiscountType:  domain.DiscountPercentage,
			DiscountValue: discountValue,
			CustomerID:    customerID,
			StartDate:     issuedAt,
			EndDate:       issuedAt.AddDate(0, 0, validityDays),
			UsageLimit:    1,
			UsageCount:    0,
			Active:        true,
			CreatedAt:     issuedAt,
		}

		err := i.repo.Insert(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return nil, fmt.Errorf("insert coupon: %w", err)
		}
	}
	return nil, fmt.Errorf("coupon code %s: %w", code, ErrDuplicateCode)
}

// withSuffix disambiguates retried codes with a short random fragment.
func withSuffix(code string, attempt int) string {
	if attempt == 0 {
		return truncate(code, maxCodeLen)
	}
	suffix := "-" + strings.ToUpper(uuid.New().String()[:4])
	return truncate(code, maxCodeLen-len(suffix)) + suffix
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
