package campaign

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/murillocortez/klyver-engine/internal/coupon"
	"github.com/murillocortez/klyver-engine/internal/domain"
	"github.com/murillocortez/klyver-engine/internal/message"
)

// runBirthday rewards customers whose birth month/day matches today, at most
// once per calendar year. The reward is a percentage coupon plus a message
// carrying the coupon code.
func (r *Runner) runBirthday(ctx context.Context, cfg *domain.CampaignConfig) (RunResult, error) {
	customers, err := r.customers.ListWithBirthDate(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list customers: %w", err)
	}

	today := r.now()
	year := today.Year()

	validityDays := cfg.Rules.ValidityDays
	if validityDays <= 0 {
		validityDays = defaultBirthdayValidityDays
	}

	var candidates []domain.Customer
	for _, c := range customers {
		if c.BirthdayMatches(today) {
			candidates = append(candidates, c)
		}
	}

	res := r.processAll(ctx, domain.SlugBirthday, candidates, func(ctx context.Context, c domain.Customer) outcome {
		issued, err := r.ledger.HasBirthdayIssuance(ctx, c.ID, year)
		if err != nil {
			log.Printf("[Runner] birthday dedup check for customer %s: %v", c.ID, err)
			return outcomeFailed
		}
		if issued {
			return outcomeSkipped
		}

		msg := r.renderMessage(cfg.MessageTemplate, c)
		if r.simulate {
			r.logAction(ctx, c.ID, domain.SlugBirthday, domain.ActionSimulated, msg)
			return outcomeSimulated
		}

		procCtx, cancel := context.WithTimeout(ctx, perCustomerTimeout)
		defer cancel()

		code := coupon.BirthdayCode(c.FirstName(), c.ID)
		cp, err := r.coupons.Issue(procCtx, code, cfg.DiscountPercent, c.ID, validityDays)
		if err != nil {
			log.Printf("[Runner] birthday coupon for customer %s: %v", c.ID, err)
			r.logAction(ctx, c.ID, domain.SlugBirthday, domain.ActionFailed, msg)
			return outcomeFailed
		}

		iss := &domain.BirthdayIssuance{
			ID:         uuid.New().String(),
			CustomerID: c.ID,
			Year:       year,
			CouponID:   cp.ID,
			ValidUntil: cp.EndDate,
			Status:     domain.IssuancePending,
		}
		if err := r.ledger.CreateBirthdayIssuance(ctx, iss); err != nil {
			if errors.Is(err, ErrAlreadyIssued) {
				// Lost a uniqueness race: another pass already handled this
				// customer this year. Not an error.
				return outcomeSkipped
			}
			log.Printf("[Runner] birthday issuance for customer %s: %v", c.ID, err)
			r.logAction(ctx, c.ID, domain.SlugBirthday, domain.ActionFailed, msg)
			return outcomeFailed
		}

		full := message.AppendCoupon(msg, cp.Code, cp.DiscountValue)
		if err := r.dispatcher.Send(procCtx, c.Phone, full); err != nil {
			log.Printf("[Runner] birthday send to customer %s failed: %v", c.ID, err)
			r.finalizeBirthday(ctx, iss.ID, domain.IssuanceFailed)
			r.logAction(ctx, c.ID, domain.SlugBirthday, domain.ActionFailed, full)
			return outcomeFailed
		}

		r.finalizeBirthday(ctx, iss.ID, domain.IssuanceSent)
		r.logAction(ctx, c.ID, domain.SlugBirthday, domain.ActionSent, full)
		return outcomeSent
	})

	return res, nil
}

func (r *Runner) finalizeBirthday(ctx context.Context, id string, status domain.IssuanceStatus) {
	if err := r.ledger.FinalizeBirthdayIssuance(ctx, id, status); err != nil {
		log.Printf("[Runner] finalize birthday issuance %s: %v", id, err)
	}
}
