package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/murillocortez/klyver-engine/internal/api"
	"github.com/murillocortez/klyver-engine/internal/config"
	"github.com/murillocortez/klyver-engine/internal/coupon"
	"github.com/murillocortez/klyver-engine/internal/message"
	"github.com/murillocortez/klyver-engine/internal/notify"
	"github.com/murillocortez/klyver-engine/internal/pkg/distlock"
	"github.com/murillocortez/klyver-engine/internal/repository/postgres"
	"github.com/murillocortez/klyver-engine/internal/service/campaign"
	"github.com/murillocortez/klyver-engine/internal/service/stats"
	"github.com/murillocortez/klyver-engine/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[Server] load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("[Server] database url is required (config database.url or DATABASE_URL)")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("[Server] open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("[Server] ping database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("[Server] redis unavailable, falling back to pg advisory locks: %v", err)
			redisClient.Close()
			redisClient = nil
		}
	}

	configStore := postgres.NewConfigStore(db)
	if err := configStore.Seed(context.Background()); err != nil {
		log.Printf("[Server] seed campaign configs: %v", err)
	}

	runStore := postgres.NewRunStore(db)
	if n, err := runStore.MarkStaleAborted(context.Background(), 2*cfg.Engine.LockTTL()); err != nil {
		log.Printf("[Server] abort stale runs: %v", err)
	} else if n > 0 {
		log.Printf("[Server] aborted %d stale runs from a previous process", n)
	}

	issuer := coupon.NewIssuer(postgres.NewCouponRepository(db))
	dispatcher := notify.NewGatewayClient(cfg.WhatsApp)
	renderer := message.NewRenderer()

	runner := campaign.NewRunner(
		configStore,
		postgres.NewCustomerRepository(db),
		postgres.NewLedger(db),
		issuer,
		dispatcher,
		renderer,
		campaign.RunnerConfig{
			Workers:         cfg.Engine.Workers,
			Simulate:        cfg.Engine.SimulationMode,
			VipWindowMonths: cfg.Engine.VipWindowMonths,
		},
	)
	if cfg.Engine.SimulationMode {
		log.Println("[Server] simulation mode on: no messages will be dispatched")
	}

	lockTTL := cfg.Engine.LockTTL()
	passes := worker.NewPassRunner(runner, runStore, func(key string) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, lockTTL)
	})
	runner.Checkpoint = passes.RecordCheckpoint

	handlers := api.NewHandlers(configStore, passes, runStore, stats.NewAggregator(postgres.NewStatsRepository(db)))
	server := api.NewServer(cfg.Server, handlers, cfg.Auth.APIKey)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("[Server] %v", err)
		}
	case sig := <-stop:
		log.Printf("[Server] received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Server] shutdown: %v", err)
		}
	}

	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("[Server] stopped")
}
