package campaign

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/murillocortez/klyver-engine/internal/domain"
)

// Pass status values reported to the caller of Run/RunAll.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
)

// Default coupon validity when the campaign config leaves it unset.
const (
	defaultBirthdayValidityDays = 7
	defaultVipValidityDays      = 30
)

// perCustomerTimeout bounds one candidate's issue+send work.
const perCustomerTimeout = 30 * time.Second

// RunResult summarizes a single campaign pass.
type RunResult struct {
	Slug      domain.CampaignSlug `json:"slug"`
	Status    string              `json:"status"`
	Processed int                 `json:"processed"`
	Sent      int                 `json:"sent"`
	Skipped   int                 `json:"skipped"`
	Failed    int                 `json:"failed"`
	Simulated int                 `json:"simulated"`
	Error     string              `json:"error,omitempty"`
}

// Runner orchestrates campaign passes: for each campaign it snapshots the
// config, pulls candidates, filters them through the eligibility evaluator,
// consults the dedup ledger, and on success issues coupons and dispatches
// messages, isolating per-customer failures.
type Runner struct {
	configs    ConfigStore
	customers  CustomerRepository
	ledger     Ledger
	coupons    CouponIssuer
	dispatcher Dispatcher
	renderer   Renderer

	workers         int
	simulate        bool
	vipWindowMonths int

	// now is swapped out in tests for deterministic calendar checks.
	now func() time.Time

	// Checkpoint, when set, is called after each processed candidate so the
	// hosting worker can persist resume progress.
	Checkpoint func(slug domain.CampaignSlug, customerID string)
}

// RunnerConfig holds runner tuning knobs.
type RunnerConfig struct {
	Workers         int
	Simulate        bool
	VipWindowMonths int
}

// NewRunner creates a campaign runner.
func NewRunner(configs ConfigStore, customers CustomerRepository, ledger Ledger,
	coupons CouponIssuer, dispatcher Dispatcher, renderer Renderer, cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.VipWindowMonths <= 0 {
		cfg.VipWindowMonths = 6
	}
	return &Runner{
		configs:         configs,
		customers:       customers,
		ledger:          ledger,
		coupons:         coupons,
		dispatcher:      dispatcher,
		renderer:        renderer,
		workers:         cfg.Workers,
		simulate:        cfg.Simulate,
		vipWindowMonths: cfg.VipWindowMonths,
		now:             time.Now,
	}
}

// RunAll runs the three campaigns independently. A campaign-level abort does
// not stop the others; its error is carried inside that campaign's RunResult.
func (r *Runner) RunAll(ctx context.Context) map[domain.CampaignSlug]RunResult {
	results := make(map[domain.CampaignSlug]RunResult, 3)
	for _, slug := range domain.AllSlugs() {
		res, err := r.Run(ctx, slug)
		if err != nil {
			res.Slug = slug
			res.Error = err.Error()
			log.Printf("[Runner] campaign %s aborted: %v", slug, err)
		}
		results[slug] = res
	}
	return results
}

// Run executes one campaign pass. The config is snapshotted here; mid-pass
// edits do not affect the in-flight run. Returns a non-nil error only when
// the pass aborts (upstream data failure); in that case last_run_at is not
// advanced. Disabled campaigns return StatusSkipped with no side effects.
func (r *Runner) Run(ctx context.Context, slug domain.CampaignSlug) (RunResult, error) {
	if !slug.Valid() {
		return RunResult{Slug: slug}, ErrUnknownCampaign
	}

	cfg, err := r.configs.Get(ctx, slug)
	if err != nil {
		return RunResult{Slug: slug}, fmt.Errorf("load config: %w", err)
	}
	if !cfg.Active {
		return RunResult{Slug: slug, Status: StatusSkipped}, nil
	}

	var res RunResult
	switch slug {
	case domain.SlugReactivation:
		res, err = r.runReactivation(ctx, cfg)
	case domain.SlugBirthday:
		res, err = r.runBirthday(ctx, cfg)
	case domain.SlugVIP:
		res, err = r.runVip(ctx, cfg)
	}
	if err != nil {
		return res, err
	}

	res.Slug = slug
	res.Status = StatusSuccess
	if err := r.configs.AdvanceLastRun(ctx, slug, r.now()); err != nil {
		// The pass itself completed; a bookkeeping failure is logged, not fatal.
		log.Printf("[Runner] advance last_run_at for %s: %v", slug, err)
	}
	log.Printf("[Runner] campaign %s completed: processed=%d sent=%d skipped=%d failed=%d",
		slug, res.Processed, res.Sent, res.Skipped, res.Failed)
	return res, nil
}

// outcome is the per-candidate result inside a pass.
type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeSimulated
)

// processAll fans candidates out across the worker pool when the ledger's
// uniqueness checks are atomic; otherwise it processes sequentially, which is
// the required default to avoid duplicate issuance races. Reactivation is
// always sequential: its cooldown is a soft, window-queried invariant with no
// storage constraint behind it.
func (r *Runner) processAll(ctx context.Context, slug domain.CampaignSlug,
	candidates []domain.Customer, process func(context.Context, domain.Customer) outcome) RunResult {

	parallel := r.workers > 1 && r.ledger.AtomicUniqueness() && slug != domain.SlugReactivation

	var res RunResult
	if !parallel {
		for _, c := range candidates {
			r.tally(&res, process(ctx, c))
			if r.Checkpoint != nil {
				r.Checkpoint(slug, c.ID)
			}
		}
		return res
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan domain.Customer)

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				out := process(ctx, c)
				mu.Lock()
				r.tally(&res, out)
				mu.Unlock()
				if r.Checkpoint != nil {
					r.Checkpoint(slug, c.ID)
				}
			}
		}()
	}

	for _, c := range candidates {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
	return res
}

func (r *Runner) tally(res *RunResult, out outcome) {
	res.Processed++
	switch out {
	case outcomeSent:
		res.Sent++
	case outcomeSkipped:
		res.Skipped++
	case outcomeFailed:
		res.Failed++
	case outcomeSimulated:
		res.Simulated++
	}
}

// renderMessage substitutes {{name}} into the campaign template.
func (r *Runner) renderMessage(template string, c domain.Customer) string {
	msg, err := r.renderer.Render(template, map[string]any{"name": c.FirstName()})
	if err != nil {
		// A broken template should not kill a pass; fall back to raw text.
		log.Printf("[Runner] template render error: %v", err)
		return template
	}
	return msg
}

// logAction appends to the action log, which doubles as the reactivation
// cooldown ledger. Failures here are logged and swallowed: the message
// already went out (or didn't), and the log is best-effort bookkeeping.
func (r *Runner) logAction(ctx context.Context, customerID string, slug domain.CampaignSlug,
	status domain.ActionStatus, message string) {
	entry := &domain.ActionLog{
		ID:          uuid.New().String(),
		CustomerID:  customerID,
		Slug:        slug,
		Status:      status,
		MessageSent: message,
		CreatedAt:   r.now(),
	}
	if err := r.ledger.LogAction(ctx, entry); err != nil {
		log.Printf("[Runner] log action for customer %s: %v", customerID, err)
	}
}
