package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/murillocortez/klyver-engine/internal/domain"
)

type fakeRepo struct {
	actions  map[domain.CampaignSlug]int
	vips     int
	redeemed int
	err      error

	gotSince time.Time
}

func (f *fakeRepo) CountActions(_ context.Context, slug domain.CampaignSlug, status domain.ActionStatus, since time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if status != domain.ActionSent {
		return 0, nil
	}
	f.gotSince = since
	return f.actions[slug], nil
}

func (f *fakeRepo) CountVipIssuances(_ context.Context, _ time.Time) (int, error) {
	return f.vips, f.err
}

func (f *fakeRepo) CountRedeemedCoupons(_ context.Context, _ time.Time) (int, error) {
	return f.redeemed, f.err
}

func TestAggregator_Summarize(t *testing.T) {
	repo := &fakeRepo{
		actions: map[domain.CampaignSlug]int{
			domain.SlugReactivation: 12,
			domain.SlugBirthday:     5,
		},
		vips:     3,
		redeemed: 7,
	}
	agg := NewAggregator(repo)
	agg.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }

	s, err := agg.Summarize(context.Background(), 30)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if s.Reactivated != 12 {
		t.Errorf("Reactivated = %d, want 12", s.Reactivated)
	}
	if s.BirthdaysReached != 5 {
		t.Errorf("BirthdaysReached = %d, want 5", s.BirthdaysReached)
	}
	if s.VipPromotions != 3 {
		t.Errorf("VipPromotions = %d, want 3", s.VipPromotions)
	}
	if s.CouponsRedeemed != 7 {
		t.Errorf("CouponsRedeemed = %d, want 7", s.CouponsRedeemed)
	}

	wantSince := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	if !repo.gotSince.Equal(wantSince) {
		t.Errorf("since = %v, want %v", repo.gotSince, wantSince)
	}
}

func TestAggregator_Summarize_DefaultPeriod(t *testing.T) {
	agg := NewAggregator(&fakeRepo{})
	s, err := agg.Summarize(context.Background(), 0)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if s.PeriodDays != 30 {
		t.Errorf("PeriodDays = %d, want 30", s.PeriodDays)
	}
}

func TestAggregator_Summarize_RepoError(t *testing.T) {
	agg := NewAggregator(&fakeRepo{err: errors.New("db down")})
	if _, err := agg.Summarize(context.Background(), 7); err == nil {
		t.Fatal("Summarize() error = nil, want error")
	}
}
