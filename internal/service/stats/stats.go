// Package stats aggregates campaign effectiveness counters for the admin
// dashboard.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/murillocortez/klyver-engine/internal/domain"
)

// Repository provides the count queries the aggregator composes.
type Repository interface {
	CountActions(ctx context.Context, slug domain.CampaignSlug, status domain.ActionStatus, since time.Time) (int, error)
	CountVipIssuances(ctx context.Context, since time.Time) (int, error)
	CountRedeemedCoupons(ctx context.Context, since time.Time) (int, error)
}

// Summary is the per-period effectiveness rollup.
type Summary struct {
	PeriodDays       int `json:"period_days"`
	Reactivated      int `json:"customers_reactivated"`
	BirthdaysReached int `json:"birthday_messages_sent"`
	VipPromotions    int `json:"vip_promotions"`
	CouponsRedeemed  int `json:"coupons_redeemed"`
}

// Aggregator computes summaries over a trailing window.
type Aggregator struct {
	repo Repository
	now  func() time.Time
}

// NewAggregator creates a stats aggregator.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo, now: time.Now}
}

// Summarize computes the rollup for the trailing periodDays window.
// A non-positive period defaults to 30 days.
func (a *Aggregator) Summarize(ctx context.Context, periodDays int) (*Summary, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	since := a.now().AddDate(0, 0, -periodDays)

	reactivated, err := a.repo.CountActions(ctx, domain.SlugReactivation, domain.ActionSent, since)
	if err != nil {
		return nil, fmt.Errorf("count reactivations: %w", err)
	}
	birthdays, err := a.repo.CountActions(ctx, domain.SlugBirthday, domain.ActionSent, since)
	if err != nil {
		return nil, fmt.Errorf("count birthday sends: %w", err)
	}
	vips, err := a.repo.CountVipIssuances(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count vip promotions: %w", err)
	}
	redeemed, err := a.repo.CountRedeemedCoupons(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count redeemed coupons: %w", err)
	}

	return &Summary{
		PeriodDays:       periodDays,
		Reactivated:      reactivated,
		BirthdaysReached: birthdays,
		VipPromotions:    vips,
		CouponsRedeemed:  redeemed,
	}, nil
}
