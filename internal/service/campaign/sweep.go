package campaign

import (
	"context"
	"fmt"
	"log"

	"github.com/murillocortez/klyver-engine/internal/domain"
	"github.com/murillocortez/klyver-engine/internal/message"
)

// RetrySweep re-attempts the notification for issuances that are stuck
// pending or failed while their coupon is still valid. A crash between
// issuance and send leaves a customer "issued but never notified"; the sweep
// closes that gap. Safe to run on a schedule alongside normal passes.
func (r *Runner) RetrySweep(ctx context.Context) (retried, failed int, err error) {
	issuances, err := r.ledger.ListRetryableIssuances(ctx, r.now())
	if err != nil {
		return 0, 0, fmt.Errorf("list retryable issuances: %w", err)
	}
	if len(issuances) == 0 {
		return 0, 0, nil
	}

	ids := make([]string, 0, len(issuances))
	for _, iss := range issuances {
		ids = append(ids, iss.CustomerID)
	}
	customers, err := r.customers.ListByIDs(ctx, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("load customers: %w", err)
	}
	byID := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}

	// Templates are snapshotted once per slug for the whole sweep.
	templates := make(map[domain.CampaignSlug]string)
	for _, slug := range []domain.CampaignSlug{domain.SlugBirthday, domain.SlugVIP} {
		cfg, err := r.configs.Get(ctx, slug)
		if err != nil {
			log.Printf("[Runner] sweep: load %s config: %v", slug, err)
			continue
		}
		templates[slug] = cfg.MessageTemplate
	}

	for _, iss := range issuances {
		c, ok := byID[iss.CustomerID]
		if !ok {
			continue
		}
		tmpl, ok := templates[iss.Kind]
		if !ok {
			continue
		}

		// Discount value travels with the coupon, not the current config.
		msg := message.AppendCouponCode(r.renderMessage(tmpl, c), iss.CouponCode)

		sendCtx, cancel := context.WithTimeout(ctx, perCustomerTimeout)
		sendErr := r.dispatcher.Send(sendCtx, c.Phone, msg)
		cancel()

		status := domain.IssuanceSent
		if sendErr != nil {
			status = domain.IssuanceFailed
			failed++
			log.Printf("[Runner] sweep send to customer %s failed: %v", c.ID, sendErr)
		} else {
			retried++
			r.logAction(ctx, c.ID, iss.Kind, domain.ActionSent, msg)
		}

		switch iss.Kind {
		case domain.SlugBirthday:
			r.finalizeBirthday(ctx, iss.ID, status)
		case domain.SlugVIP:
			r.finalizeVip(ctx, iss.ID, status)
		}
	}

	log.Printf("[Runner] retry sweep: %d notified, %d still failing", retried, failed)
	return retried, failed, nil
}
