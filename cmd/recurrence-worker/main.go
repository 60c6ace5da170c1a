package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/practice-scheduling/internal/config"
	"github.com/hackgods/practice-scheduling/internal/db"
	"github.com/hackgods/practice-scheduling/internal/logging"
	redisclient "github.com/hackgods/practice-scheduling/internal/redis"
	"github.com/hackgods/practice-scheduling/internal/scheduling"
	"github.com/hackgods/practice-scheduling/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.Init("recurrence-worker", cfg.Env, cfg.LogLevel)
	if cfg.StorageBackend != config.StoragePostgres {
		logger.Fatal().Str("storage", cfg.StorageBackend).Msg("recurrence worker needs the postgres backend")
	}
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Int("horizon_days", cfg.MaterializeHorizon).
		Msg("recurrence-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	var locker redisclient.Locker = redisclient.NoopLocker{}
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, slot locking disabled")
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		logger.Info().Msg("connected to Redis")
	}

	dispatcher := webhook.NewDispatcher(cfg, webhook.WithLogger(logger))
	dispatcher.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("webhook drain incomplete")
		}
	}()

	repo := scheduling.NewPgRepository(pgPool)
	svc := scheduling.NewService(repo, locker, dispatcher, scheduling.NewZoneClock(cfg.PracticeTimezone), cfg)

	// Run once at startup
	runOnce(rootCtx, logger, svc, cfg.MaterializeHorizon)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping recurrence worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, svc, cfg.MaterializeHorizon)
		}
	}
}

func runOnce(ctx context.Context, logger zerolog.Logger, svc *scheduling.Service, horizon int) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	summary, err := svc.MaterializeActiveRules(runCtx, horizon)
	if err != nil {
		logger.Error().Err(err).Msg("materialize run error")
		return
	}
	logger.Info().
		Int("rules", summary.Rules).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("took", time.Since(start)).
		Msg("materialize run complete")
}
