// Package api exposes the admin HTTP surface: campaign configuration,
// manual pass triggers, run history and effectiveness stats.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/murillocortez/klyver-engine/internal/domain"
	"github.com/murillocortez/klyver-engine/internal/pkg/httputil"
	"github.com/murillocortez/klyver-engine/internal/service/campaign"
	"github.com/murillocortez/klyver-engine/internal/service/stats"
	"github.com/murillocortez/klyver-engine/internal/worker"
)

// ConfigStore is the config access the handlers need.
type ConfigStore interface {
	List(ctx context.Context) ([]domain.CampaignConfig, error)
	Get(ctx context.Context, slug domain.CampaignSlug) (*domain.CampaignConfig, error)
	Update(ctx context.Context, slug domain.CampaignSlug, u campaign.UpdateFields) error
}

// PassTrigger starts campaign passes. Satisfied by worker.PassRunner.
type PassTrigger interface {
	RunCampaign(ctx context.Context, slug domain.CampaignSlug) (campaign.RunResult, error)
	RunAll(ctx context.Context) map[domain.CampaignSlug]campaign.RunResult
	RetrySweep(ctx context.Context) (retried, failed int, err error)
}

// RunLister reads run history. Satisfied by postgres.RunStore.
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.CampaignRun, error)
}

// StatsProvider computes effectiveness summaries. Satisfied by stats.Aggregator.
type StatsProvider interface {
	Summarize(ctx context.Context, periodDays int) (*stats.Summary, error)
}

// Handlers holds the admin API handlers and their collaborators.
type Handlers struct {
	configs ConfigStore
	passes  PassTrigger
	runs    RunLister
	stats   StatsProvider
}

// NewHandlers creates the admin API handlers.
func NewHandlers(configs ConfigStore, passes PassTrigger, runs RunLister, stats StatsProvider) *Handlers {
	return &Handlers{configs: configs, passes: passes, runs: runs, stats: stats}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// ListCampaigns returns all campaign configs.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	configs, err := h.configs.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"campaigns": configs})
}

// GetCampaignConfig returns one campaign's config.
func (h *Handlers) GetCampaignConfig(w http.ResponseWriter, r *http.Request) {
	slug, ok := slugParam(w, r)
	if !ok {
		return
	}
	cfg, err := h.configs.Get(r.Context(), slug)
	if errors.Is(err, campaign.ErrConfigNotFound) {
		httputil.NotFound(w, "campaign not configured")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, cfg)
}

// updateConfigRequest is the PUT body. Absent fields are left untouched.
type updateConfigRequest struct {
	Active          *bool              `json:"active"`
	MessageTemplate *string            `json:"message_template"`
	DiscountPercent *float64           `json:"discount_percent"`
	Rules           *domain.RuleParams `json:"rules"`
}

// UpdateCampaignConfig applies a partial config update. Edits never touch an
// in-flight pass: the runner snapshots its config at pass start.
func (h *Handlers) UpdateCampaignConfig(w http.ResponseWriter, r *http.Request) {
	slug, ok := slugParam(w, r)
	if !ok {
		return
	}
	var req updateConfigRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.DiscountPercent != nil && (*req.DiscountPercent < 0 || *req.DiscountPercent > 100) {
		httputil.BadRequest(w, "discount_percent must be between 0 and 100")
		return
	}
	err := h.configs.Update(r.Context(), slug, campaign.UpdateFields{
		Active:          req.Active,
		MessageTemplate: req.MessageTemplate,
		DiscountPercent: req.DiscountPercent,
		Rules:           req.Rules,
	})
	if errors.Is(err, campaign.ErrConfigNotFound) {
		httputil.NotFound(w, "campaign not configured")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	cfg, err := h.configs.Get(r.Context(), slug)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, cfg)
}

// RunAllCampaigns triggers a pass of every campaign. The pass keeps running
// even if the admin client disconnects.
func (h *Handlers) RunAllCampaigns(w http.ResponseWriter, r *http.Request) {
	results := h.passes.RunAll(context.WithoutCancel(r.Context()))
	httputil.OK(w, map[string]any{"results": results})
}

// RunCampaign triggers a single campaign pass.
func (h *Handlers) RunCampaign(w http.ResponseWriter, r *http.Request) {
	slug, ok := slugParam(w, r)
	if !ok {
		return
	}
	res, err := h.passes.RunCampaign(context.WithoutCancel(r.Context()), slug)
	if errors.Is(err, worker.ErrPassInProgress) {
		httputil.Conflict(w, "a pass for this campaign is already running")
		return
	}
	if errors.Is(err, campaign.ErrConfigNotFound) {
		httputil.NotFound(w, "campaign not configured")
		return
	}
	if err != nil {
		res.Slug = slug
		res.Error = err.Error()
		// An aborted pass is still a handled outcome, not a 500.
		httputil.OK(w, res)
		return
	}
	httputil.OK(w, res)
}

// RetrySweep re-attempts stuck issuance notifications.
func (h *Handlers) RetrySweep(w http.ResponseWriter, r *http.Request) {
	retried, failed, err := h.passes.RetrySweep(context.WithoutCancel(r.Context()))
	if errors.Is(err, worker.ErrPassInProgress) {
		httputil.Conflict(w, "a retry sweep is already running")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"retried": retried, "failed": failed})
}

// ListRuns returns recent run records, newest first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			httputil.BadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"runs": runs})
}

// GetStats returns the effectiveness summary for a trailing window,
// defaulting to 30 days.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			httputil.BadRequest(w, "days must be between 1 and 365")
			return
		}
		days = n
	}
	summary, err := h.stats.Summarize(r.Context(), days)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, summary)
}

func slugParam(w http.ResponseWriter, r *http.Request) (domain.CampaignSlug, bool) {
	slug := domain.CampaignSlug(chi.URLParam(r, "slug"))
	if !slug.Valid() {
		httputil.BadRequest(w, "unknown campaign: "+string(slug))
		return "", false
	}
	return slug, true
}
