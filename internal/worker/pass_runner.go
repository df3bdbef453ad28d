// Package worker hosts the campaign pass orchestration: distributed run
// locks, durable run records with resume checkpoints, and the scheduled
// notification retry sweep.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/murillocortez/klyver-engine/internal/domain"
	"github.com/murillocortez/klyver-engine/internal/pkg/distlock"
	"github.com/murillocortez/klyver-engine/internal/service/campaign"
)

// ErrPassInProgress is returned when a pass for the same campaign already
// holds the run lock, here or on another host.
var ErrPassInProgress = errors.New("campaign pass already in progress")

// Executor runs campaign passes. Satisfied by campaign.Runner.
type Executor interface {
	Run(ctx context.Context, slug domain.CampaignSlug) (campaign.RunResult, error)
	RetrySweep(ctx context.Context) (retried, failed int, err error)
}

// RunStore persists campaign run records. Satisfied by postgres.RunStore.
type RunStore interface {
	Create(ctx context.Context, run *domain.CampaignRun) error
	Checkpoint(ctx context.Context, runID, customerID string) error
	Finish(ctx context.Context, run *domain.CampaignRun) error
}

// LockFactory builds a distributed lock for the given key. Keeping this a
// factory lets the runner create a fresh lock (with fresh ownership token)
// per pass.
type LockFactory func(key string) distlock.DistLock

// PassRunner wraps an Executor with run locking and durable run records.
// At most one pass per campaign runs at a time across all hosts; a second
// trigger while one is in flight is rejected with ErrPassInProgress.
type PassRunner struct {
	exec  Executor
	runs  RunStore
	locks LockFactory

	mu     sync.Mutex
	active map[domain.CampaignSlug]string // slug -> in-flight run id
}

// NewPassRunner creates a pass runner.
func NewPassRunner(exec Executor, runs RunStore, locks LockFactory) *PassRunner {
	return &PassRunner{
		exec:   exec,
		runs:   runs,
		locks:  locks,
		active: make(map[domain.CampaignSlug]string),
	}
}

// RecordCheckpoint persists the last processed customer for the slug's
// in-flight run. Wire this to campaign.Runner.Checkpoint. Failures are
// logged and swallowed: checkpoints are resume hints, not correctness.
func (p *PassRunner) RecordCheckpoint(slug domain.CampaignSlug, customerID string) {
	p.mu.Lock()
	runID, ok := p.active[slug]
	p.mu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.runs.Checkpoint(ctx, runID, customerID); err != nil {
		log.Printf("[PassRunner] checkpoint run %s: %v", runID, err)
	}
}

// RunCampaign executes one locked, recorded campaign pass.
func (p *PassRunner) RunCampaign(ctx context.Context, slug domain.CampaignSlug) (campaign.RunResult, error) {
	if !slug.Valid() {
		return campaign.RunResult{Slug: slug}, campaign.ErrUnknownCampaign
	}

	lock := p.locks("campaign:" + string(slug))
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return campaign.RunResult{Slug: slug}, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return campaign.RunResult{Slug: slug}, ErrPassInProgress
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			log.Printf("[PassRunner] release run lock for %s: %v", slug, err)
		}
	}()

	run := &domain.CampaignRun{
		ID:        uuid.New().String(),
		Slug:      slug,
		Status:    domain.RunRunning,
		StartedAt: time.Now(),
	}
	if err := p.runs.Create(ctx, run); err != nil {
		// The pass can still proceed without its audit row.
		log.Printf("[PassRunner] create run record for %s: %v", slug, err)
	}

	p.mu.Lock()
	p.active[slug] = run.ID
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.active, slug)
		p.mu.Unlock()
	}()

	res, runErr := p.exec.Run(ctx, slug)

	now := time.Now()
	run.Processed = res.Processed
	run.SentCount = res.Sent
	run.SkippedCount = res.Skipped
	run.FailedCount = res.Failed
	run.SimulatedCount = res.Simulated
	run.FinishedAt = &now
	if runErr != nil {
		run.Status = domain.RunAborted
		run.Error = runErr.Error()
	} else {
		run.Status = domain.RunCompleted
	}
	finishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.runs.Finish(finishCtx, run); err != nil {
		log.Printf("[PassRunner] finish run record %s: %v", run.ID, err)
	}

	return res, runErr
}

// RunAll triggers all three campaigns in canonical order. Per-campaign
// failures (including ErrPassInProgress) land in that campaign's result.
func (p *PassRunner) RunAll(ctx context.Context) map[domain.CampaignSlug]campaign.RunResult {
	results := make(map[domain.CampaignSlug]campaign.RunResult, 3)
	for _, slug := range domain.AllSlugs() {
		res, err := p.RunCampaign(ctx, slug)
		if err != nil {
			res.Slug = slug
			res.Error = err.Error()
		}
		results[slug] = res
	}
	return results
}

// RetrySweep re-attempts stuck issuance notifications under its own lock so
// scheduled sweeps never pile up.
func (p *PassRunner) RetrySweep(ctx context.Context) (retried, failed int, err error) {
	lock := p.locks("campaign:retry-sweep")
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		return 0, 0, ErrPassInProgress
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if relErr := lock.Release(releaseCtx); relErr != nil {
			log.Printf("[PassRunner] release sweep lock: %v", relErr)
		}
	}()

	return p.exec.RetrySweep(ctx)
}
