package domain

import (
	"time"
)

// CampaignSlug identifies one of the three lifecycle campaigns.
type CampaignSlug string

const (
	SlugReactivation CampaignSlug = "reactivation"
	SlugBirthday     CampaignSlug = "birthday"
	SlugVIP          CampaignSlug = "vip"
)

// AllSlugs returns the campaign slugs in their canonical run order.
func AllSlugs() []CampaignSlug {
	return []CampaignSlug{SlugReactivation, SlugBirthday, SlugVIP}
}

// Valid reports whether the slug is one of the known campaigns.
func (s CampaignSlug) Valid() bool {
	return s == SlugReactivation || s == SlugBirthday || s == SlugVIP
}

// RuleParams holds the campaign-specific eligibility parameters.
// Only the fields relevant to a given campaign are populated:
// reactivation uses DaysInactive/CooldownDays, birthday uses ValidityDays,
// vip uses SpendThreshold/OrderCountThreshold/ValidityDays.
type RuleParams struct {
	DaysInactive        int     `json:"days_inactive,omitempty"`
	CooldownDays        int     `json:"cooldown_days,omitempty"`
	ValidityDays        int     `json:"validity_days,omitempty"`
	SpendThreshold      float64 `json:"spend_threshold,omitempty"`
	OrderCountThreshold int     `json:"order_count_threshold,omitempty"`
}

// CampaignConfig is the persisted per-campaign configuration, edited by
// operators between runs and snapshotted at the start of each pass.
type CampaignConfig struct {
	ID              string       `json:"id" db:"id"`
	Slug            CampaignSlug `json:"slug" db:"slug"`
	Active          bool         `json:"active" db:"active"`
	MessageTemplate string       `json:"message_template" db:"message_template"`
	DiscountPercent float64      `json:"discount_percent" db:"discount_percent"`
	Rules           RuleParams   `json:"rules" db:"rules"`
	LastRunAt       *time.Time   `json:"last_run_at" db:"last_run_at"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// ActionStatus enumerates the recorded outcome of a campaign action.
type ActionStatus string

const (
	ActionSent      ActionStatus = "sent"
	ActionFailed    ActionStatus = "failed"
	ActionSimulated ActionStatus = "simulated"
)

// ActionLog is an append-only record of a campaign touching a customer.
// Reactivation cooldown checks are time-windowed queries over this table.
type ActionLog struct {
	ID          string       `json:"id" db:"id"`
	CustomerID  string       `json:"customer_id" db:"customer_id"`
	Slug        CampaignSlug `json:"campaign_slug" db:"campaign_slug"`
	Status      ActionStatus `json:"status" db:"status"`
	MessageSent string       `json:"message_sent" db:"message_sent"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// RunStatus enumerates the lifecycle states of a campaign pass.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// CampaignRun is the durable record of a single campaign pass. Checkpoint
// holds the last processed customer id so an interrupted run can resume;
// re-processing is idempotent thanks to the ledger's uniqueness invariants.
type CampaignRun struct {
	ID             string       `json:"id" db:"id"`
	Slug           CampaignSlug `json:"campaign_slug" db:"campaign_slug"`
	Status         RunStatus    `json:"status" db:"status"`
	Processed      int          `json:"processed" db:"processed"`
	SentCount      int          `json:"sent_count" db:"sent_count"`
	SkippedCount   int          `json:"skipped_count" db:"skipped_count"`
	FailedCount    int          `json:"failed_count" db:"failed_count"`
	// SimulatedCount is non-zero only for dry-run passes.
	SimulatedCount int          `json:"simulated_count" db:"simulated_count"`
	Checkpoint     string       `json:"checkpoint" db:"checkpoint"`
	Error          string       `json:"error,omitempty" db:"error"`
	StartedAt      time.Time    `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time   `json:"finished_at" db:"finished_at"`
}
