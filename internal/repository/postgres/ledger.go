package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/murillocortez/klyver-engine/internal/domain"
	"github.com/murillocortez/klyver-engine/internal/service/campaign"
)

// uniqueViolation is the Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Ledger implements campaign.Ledger on top of the action log and issuance
// tables. The unique keys on birthday_issuances (customer_id, year) and
// vip_issuances (customer_id) are the authoritative dedup mechanism; the
// Has* queries are a cheap pre-filter in front of them.
type Ledger struct{ db *sql.DB }

// NewLedger creates a Postgres-backed campaign ledger.
func NewLedger(db *sql.DB) *Ledger { return &Ledger{db: db} }

// AtomicUniqueness is true: the issuance unique keys are enforced by the
// database, so the runner may process customers concurrently.
func (l *Ledger) AtomicUniqueness() bool { return true }

// HasActionWithin only counts delivered messages: a failed or simulated
// attempt must not start a cooldown, so the customer stays eligible on the
// next pass.
func (l *Ledger) HasActionWithin(ctx context.Context, customerID string, slug domain.CampaignSlug, window time.Duration) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM campaign_action_logs
			WHERE customer_id = $1 AND campaign_slug = $2
			  AND status = 'sent' AND created_at > $3
		)
	`, customerID, slug, time.Now().Add(-window)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check action window: %w", err)
	}
	return exists, nil
}

func (l *Ledger) LogAction(ctx context.Context, entry *domain.ActionLog) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO campaign_action_logs (id, customer_id, campaign_slug, status, message_sent)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.CustomerID, entry.Slug, entry.Status, entry.MessageSent)
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

func (l *Ledger) HasBirthdayIssuance(ctx context.Context, customerID string, year int) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM birthday_issuances WHERE customer_id = $1 AND year = $2
		)
	`, customerID, year).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check birthday issuance: %w", err)
	}
	return exists, nil
}

func (l *Ledger) CreateBirthdayIssuance(ctx context.Context, iss *domain.BirthdayIssuance) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO birthday_issuances (id, customer_id, year, coupon_id, valid_until, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, iss.ID, iss.CustomerID, iss.Year, iss.CouponID, iss.ValidUntil, iss.Status)
	if isUniqueViolation(err) {
		return campaign.ErrAlreadyIssued
	}
	if err != nil {
		return fmt.Errorf("create birthday issuance: %w", err)
	}
	return nil
}

func (l *Ledger) FinalizeBirthdayIssuance(ctx context.Context, id string, status domain.IssuanceStatus) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE birthday_issuances SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("finalize birthday issuance: %w", err)
	}
	return nil
}

func (l *Ledger) HasVipIssuance(ctx context.Context, customerID string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM vip_issuances WHERE customer_id = $1)
	`, customerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check vip issuance: %w", err)
	}
	return exists, nil
}

func (l *Ledger) CreateVipIssuance(ctx context.Context, iss *domain.VipIssuance) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO vip_issuances (id, customer_id, coupon_id, status, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, iss.ID, iss.CustomerID, iss.CouponID, iss.Status, iss.Reason)
	if isUniqueViolation(err) {
		return campaign.ErrAlreadyIssued
	}
	if err != nil {
		return fmt.Errorf("create vip issuance: %w", err)
	}
	return nil
}

func (l *Ledger) FinalizeVipIssuance(ctx context.Context, id string, status domain.IssuanceStatus) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE vip_issuances SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("finalize vip issuance: %w", err)
	}
	return nil
}

// ListRetryableIssuances returns issuances that never reached the customer
// and whose coupon is still valid, across both issuance tables.
func (l *Ledger) ListRetryableIssuances(ctx context.Context, now time.Time) ([]campaign.RetryableIssuance, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT bi.id, 'birthday', bi.customer_id, c.code, bi.valid_until
		FROM birthday_issuances bi
		JOIN coupons c ON c.id = bi.coupon_id
		WHERE bi.status IN ('pending', 'failed') AND bi.valid_until > $1
		UNION ALL
		SELECT vi.id, 'vip', vi.customer_id, c.code, c.end_date
		FROM vip_issuances vi
		JOIN coupons c ON c.id = vi.coupon_id
		WHERE vi.status IN ('pending', 'failed') AND c.end_date > $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list retryable issuances: %w", err)
	}
	defer rows.Close()

	var out []campaign.RetryableIssuance
	for rows.Next() {
		var ri campaign.RetryableIssuance
		if err := rows.Scan(&ri.ID, &ri.Kind, &ri.CustomerID, &ri.CouponCode, &ri.ValidUntil); err != nil {
			return nil, fmt.Errorf("scan retryable issuance: %w", err)
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}
