// Command runner executes campaign passes once and exits, meant to be
// invoked from cron. By default it runs all three campaigns; -campaign
// restricts the pass and -retry-pending runs the notification retry sweep
// instead.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/murillocortez/klyver-engine/internal/config"
	"github.com/murillocortez/klyver-engine/internal/coupon"
	"github.com/murillocortez/klyver-engine/internal/domain"
	"github.com/murillocortez/klyver-engine/internal/message"
	"github.com/murillocortez/klyver-engine/internal/notify"
	"github.com/murillocortez/klyver-engine/internal/pkg/distlock"
	"github.com/murillocortez/klyver-engine/internal/repository/postgres"
	"github.com/murillocortez/klyver-engine/internal/service/campaign"
	"github.com/murillocortez/klyver-engine/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	slugFlag := flag.String("campaign", "", "run a single campaign (reactivation, birthday, vip)")
	retryPending := flag.Bool("retry-pending", false, "run the issuance notification retry sweep instead of passes")
	simulate := flag.Bool("simulate", false, "evaluate eligibility without dispatching messages")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall execution deadline")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[Runner] load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("[Runner] database url is required")
	}
	if *simulate {
		cfg.Engine.SimulationMode = true
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("[Runner] open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("[Runner] ping database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("[Runner] redis unavailable, using pg advisory locks: %v", err)
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	runner := campaign.NewRunner(
		postgres.NewConfigStore(db),
		postgres.NewCustomerRepository(db),
		postgres.NewLedger(db),
		coupon.NewIssuer(postgres.NewCouponRepository(db)),
		notify.NewGatewayClient(cfg.WhatsApp),
		message.NewRenderer(),
		campaign.RunnerConfig{
			Workers:         cfg.Engine.Workers,
			Simulate:        cfg.Engine.SimulationMode,
			VipWindowMonths: cfg.Engine.VipWindowMonths,
		},
	)

	lockTTL := cfg.Engine.LockTTL()
	passes := worker.NewPassRunner(runner, postgres.NewRunStore(db), func(key string) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, lockTTL)
	})
	runner.Checkpoint = passes.RecordCheckpoint

	if *retryPending {
		retried, failed, err := passes.RetrySweep(ctx)
		if err != nil {
			log.Fatalf("[Runner] retry sweep: %v", err)
		}
		log.Printf("[Runner] retry sweep done: %d notified, %d still failing", retried, failed)
		return
	}

	exitCode := 0
	if *slugFlag != "" {
		slug := domain.CampaignSlug(*slugFlag)
		res, err := passes.RunCampaign(ctx, slug)
		if err != nil {
			log.Printf("[Runner] campaign %s: %v", slug, err)
			exitCode = 1
		} else {
			logResult(res)
		}
	} else {
		for slug, res := range passes.RunAll(ctx) {
			if res.Error != "" {
				log.Printf("[Runner] campaign %s aborted: %s", slug, res.Error)
				exitCode = 1
				continue
			}
			logResult(res)
		}
	}
	os.Exit(exitCode)
}

func logResult(res campaign.RunResult) {
	log.Printf("[Runner] campaign %s %s: processed=%d sent=%d skipped=%d failed=%d simulated=%d",
		res.Slug, res.Status, res.Processed, res.Sent, res.Skipped, res.Failed, res.Simulated)
}
