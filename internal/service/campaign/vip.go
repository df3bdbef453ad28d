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

// vipReason returns the qualifying reason, or "" when the aggregate does not
// qualify. Spend takes priority when both conditions hold.
func vipReason(agg domain.OrderAggregate, rules domain.RuleParams) domain.VipReason {
	if rules.SpendThreshold > 0 && agg.TotalSpent >= rules.SpendThreshold {
		return domain.VipBySpend
	}
	if rules.OrderCountThreshold > 0 && agg.OrderCount >= rules.OrderCountThreshold {
		return domain.VipByOrderCount
	}
	return ""
}

// runVip promotes customers whose completed-order aggregates over the
// trailing window clear the spend or order-count threshold. A customer is
// promoted at most once, ever.
func (r *Runner) runVip(ctx context.Context, cfg *domain.CampaignConfig) (RunResult, error) {
	since := r.now().AddDate(0, -r.vipWindowMonths, 0)
	aggregates, err := r.customers.AggregateCompletedOrders(ctx, since)
	if err != nil {
		return RunResult{}, fmt.Errorf("aggregate orders: %w", err)
	}

	reasons := make(map[string]domain.VipReason, len(aggregates))
	var ids []string
	for _, agg := range aggregates {
		if reason := vipReason(agg, cfg.Rules); reason != "" {
			reasons[agg.CustomerID] = reason
			ids = append(ids, agg.CustomerID)
		}
	}
	if len(ids) == 0 {
		return RunResult{}, nil
	}

	candidates, err := r.customers.ListByIDs(ctx, ids)
	if err != nil {
		return RunResult{}, fmt.Errorf("load vip candidates: %w", err)
	}

	validityDays := cfg.Rules.ValidityDays
	if validityDays <= 0 {
		validityDays = defaultVipValidityDays
	}

	res := r.processAll(ctx, domain.SlugVIP, candidates, func(ctx context.Context, c domain.Customer) outcome {
		promoted, err := r.ledger.HasVipIssuance(ctx, c.ID)
		if err != nil {
			log.Printf("[Runner] vip dedup check for customer %s: %v", c.ID, err)
			return outcomeFailed
		}
		if promoted {
			return outcomeSkipped
		}

		msg := r.renderMessage(cfg.MessageTemplate, c)
		if r.simulate {
			r.logAction(ctx, c.ID, domain.SlugVIP, domain.ActionSimulated, msg)
			return outcomeSimulated
		}

		procCtx, cancel := context.WithTimeout(ctx, perCustomerTimeout)
		defer cancel()

		cp, err := r.coupons.Issue(procCtx, coupon.VipCode(c.ID), cfg.DiscountPercent, c.ID, validityDays)
		if err != nil {
			log.Printf("[Runner] vip coupon for customer %s: %v", c.ID, err)
			r.logAction(ctx, c.ID, domain.SlugVIP, domain.ActionFailed, msg)
			return outcomeFailed
		}

		iss := &domain.VipIssuance{
			ID:         uuid.New().String(),
			CustomerID: c.ID,
			CouponID:   cp.ID,
			Status:     domain.IssuancePending,
			Reason:     reasons[c.ID],
			IssuedAt:   r.now(),
		}
		if err := r.ledger.CreateVipIssuance(ctx, iss); err != nil {
			if errors.Is(err, ErrAlreadyIssued) {
				return outcomeSkipped
			}
			log.Printf("[Runner] vip issuance for customer %s: %v", c.ID, err)
			r.logAction(ctx, c.ID, domain.SlugVIP, domain.ActionFailed, msg)
			return outcomeFailed
		}

		full := message.AppendCoupon(msg, cp.Code, cp.DiscountValue)
		if err := r.dispatcher.Send(procCtx, c.Phone, full); err != nil {
			log.Printf("[Runner] vip send to customer %s failed: %v", c.ID, err)
			r.finalizeVip(ctx, iss.ID, domain.IssuanceFailed)
			r.logAction(ctx, c.ID, domain.SlugVIP, domain.ActionFailed, full)
			return outcomeFailed
		}

		r.finalizeVip(ctx, iss.ID, domain.IssuanceSent)
		r.logAction(ctx, c.ID, domain.SlugVIP, domain.ActionSent, full)
		return outcomeSent
	})

	return res, nil
}

func (r *Runner) finalizeVip(ctx context.Context, id string, status domain.IssuanceStatus) {
	if err := r.ledger.FinalizeVipIssuance(ctx, id, status); err != nil {
		log.Printf("[Runner] finalize vip issuance %s: %v", id, err)
	}
}
