package campaign

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/murillocortez/klyver-engine/internal/domain"
)

// reactivationEligible reports whether the customer's last purchase is older
// than the inactivity window. Customers who never purchased are excluded:
// there is no baseline to reactivate from.
func reactivationEligible(c domain.Customer, now time.Time, daysInactive int) bool {
	if c.LastPurchaseDate == nil {
		return false
	}
	cutoff := now.AddDate(0, 0, -daysInactive)
	return c.LastPurchaseDate.Before(cutoff)
}

// runReactivation targets customers inactive for config.Rules.DaysInactive
// days, skipping anyone already contacted inside the cooldown window. No
// coupon is issued for this campaign; the reward is the message itself.
func (r *Runner) runReactivation(ctx context.Context, cfg *domain.CampaignConfig) (RunResult, error) {
	customers, err := r.customers.ListWithLastPurchase(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list customers: %w", err)
	}

	now := r.now()
	cooldown := time.Duration(cfg.Rules.CooldownDays) * 24 * time.Hour

	var candidates []domain.Customer
	for _, c := range customers {
		if reactivationEligible(c, now, cfg.Rules.DaysInactive) {
			candidates = append(candidates, c)
		}
	}

	res := r.processAll(ctx, domain.SlugReactivation, candidates, func(ctx context.Context, c domain.Customer) outcome {
		seen, err := r.ledger.HasActionWithin(ctx, c.ID, domain.SlugReactivation, cooldown)
		if err != nil {
			log.Printf("[Runner] cooldown check for customer %s: %v", c.ID, err)
			return outcomeFailed
		}
		if seen {
			return outcomeSkipped
		}

		msg := r.renderMessage(cfg.MessageTemplate, c)
		if r.simulate {
			r.logAction(ctx, c.ID, domain.SlugReactivation, domain.ActionSimulated, msg)
			return outcomeSimulated
		}

		sendCtx, cancel := context.WithTimeout(ctx, perCustomerTimeout)
		err = r.dispatcher.Send(sendCtx, c.Phone, msg)
		cancel()
		if err != nil {
			log.Printf("[Runner] reactivation send to customer %s failed: %v", c.ID, err)
			r.logAction(ctx, c.ID, domain.SlugReactivation, domain.ActionFailed, msg)
			return outcomeFailed
		}

		r.logAction(ctx, c.ID, domain.SlugReactivation, domain.ActionSent, msg)
		return outcomeSent
	})

	return res, nil
}
