package campaign

import (
	"context"
	"time"

	"github.com/murillocortez/klyver-engine/internal/domain"
)

// ConfigStore defines the data access contract for campaign configuration.
// Implementations must be safe for concurrent use.
type ConfigStore interface {
	// ListActive returns the configs of all active campaigns.
	ListActive(ctx context.Context) ([]domain.CampaignConfig, error)

	// Get returns a single campaign config. Returns ErrConfigNotFound if the
	// slug has never been seeded.
	Get(ctx context.Context, slug domain.CampaignSlug) (*domain.CampaignConfig, error)

	// Update modifies operator-editable fields. Only non-nil fields are applied.
	Update(ctx context.Context, slug domain.CampaignSlug, u UpdateFields) error

	// AdvanceLastRun moves last_run_at forward to t. Implementations must keep
	// the column monotonically non-decreasing: an older t is a no-op.
	AdvanceLastRun(ctx context.Context, slug domain.CampaignSlug, t time.Time) error
}

// UpdateFields holds the operator-editable config fields. Nil fields are not applied.
type UpdateFields struct {
	Active          *bool
	MessageTemplate *string
	DiscountPercent *float64
	Rules           *domain.RuleParams
}

// CustomerRepository provides read access to customer records and order
// history aggregates owned by the upstream store.
type CustomerRepository interface {
	// ListWithLastPurchase returns customers that have purchased at least once.
	ListWithLastPurchase(ctx context.Context) ([]domain.Customer, error)

	// ListWithBirthDate returns customers with a non-null birth date.
	ListWithBirthDate(ctx context.Context) ([]domain.Customer, error)

	// ListByIDs returns the customers for the given ids, in no particular order.
	ListByIDs(ctx context.Context, ids []string) ([]domain.Customer, error)

	// AggregateCompletedOrders rolls up completed orders since the given time
	// into one OrderAggregate per customer.
	AggregateCompletedOrders(ctx context.Context, since time.Time) ([]domain.OrderAggregate, error)
}

// Ledger is the durable record of past campaign actions and issuances,
// queried to prevent re-triggering at three granularities: per-window
// (reactivation cooldown), per-calendar-year (birthday) and per-lifetime (vip).
type Ledger interface {
	// HasActionWithin reports whether a sent action log row exists for the
	// customer and slug with created_at inside the trailing window. Failed
	// and simulated rows are ignored; they do not start a cooldown.
	HasActionWithin(ctx context.Context, customerID string, slug domain.CampaignSlug, window time.Duration) (bool, error)

	// LogAction appends an action log row. Rows are never mutated afterward.
	LogAction(ctx context.Context, entry *domain.ActionLog) error

	// HasBirthdayIssuance reports whether the customer was already rewarded
	// in the given calendar year.
	HasBirthdayIssuance(ctx context.Context, customerID string, year int) (bool, error)

	// CreateBirthdayIssuance inserts a pending issuance row. Returns
	// ErrAlreadyIssued when the (customer, year) unique key is taken.
	CreateBirthdayIssuance(ctx context.Context, iss *domain.BirthdayIssuance) error

	// FinalizeBirthdayIssuance transitions a pending row to sent or failed.
	FinalizeBirthdayIssuance(ctx context.Context, id string, status domain.IssuanceStatus) error

	// HasVipIssuance reports whether the customer was ever promoted.
	HasVipIssuance(ctx context.Context, customerID string) (bool, error)

	// CreateVipIssuance inserts a pending issuance row. Returns
	// ErrAlreadyIssued when the customer unique key is taken.
	CreateVipIssuance(ctx context.Context, iss *domain.VipIssuance) error

	// FinalizeVipIssuance transitions a pending row to sent or failed.
	FinalizeVipIssuance(ctx context.Context, id string, status domain.IssuanceStatus) error

	// ListRetryableIssuances returns pending/failed issuances whose coupon is
	// still inside its validity window, for the notification retry sweep.
	ListRetryableIssuances(ctx context.Context, now time.Time) ([]RetryableIssuance, error)

	// AtomicUniqueness reports whether the backing store enforces the
	// issuance unique keys atomically. When false the runner processes
	// customers sequentially to avoid duplicate issuance races.
	AtomicUniqueness() bool
}

// RetryableIssuance is a reward that was issued but whose notification never
// succeeded. Kind is the campaign slug the issuance belongs to.
type RetryableIssuance struct {
	ID         string
	Kind       domain.CampaignSlug
	CustomerID string
	CouponCode string
	ValidUntil time.Time
}

// CouponIssuer generates unique, time-boxed, single-customer, single-use
// coupons. Implementations retry code collisions internally a bounded number
// of times before surfacing failure.
type CouponIssuer interface {
	Issue(ctx context.Context, code string, discountValue float64, customerID string, validityDays int) (*domain.Coupon, error)
}

// Dispatcher is the boundary abstraction over the outbound messaging
// transport. Implementations may fail transiently and perform no retries;
// retry policy belongs to the runner.
type Dispatcher interface {
	Send(ctx context.Context, phone, message string) error
}

// Renderer substitutes template placeholders ({{name}}) into a message.
type Renderer interface {
	Render(template string, data map[string]any) (string, error)
}
