package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/practice-scheduling/internal/api"
	"github.com/hackgods/practice-scheduling/internal/config"
	"github.com/hackgods/practice-scheduling/internal/db"
	"github.com/hackgods/practice-scheduling/internal/logging"
	redisclient "github.com/hackgods/practice-scheduling/internal/redis"
	"github.com/hackgods/practice-scheduling/internal/scheduling"
	"github.com/hackgods/practice-scheduling/internal/telephony"
	"github.com/hackgods/practice-scheduling/internal/webhook"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.Init("api-server", cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.StorageBackend).
		Str("weekend_policy", cfg.WeekendPolicy).
		Str("timezone", cfg.PracticeTimezone.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, pgPool, err := openRepository(rootCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage setup error")
	}
	if pgPool != nil {
		defer pgPool.Close()
	}

	// Redis is optional: without it the unique index alone keeps slots exclusive.
	var (
		rdb    *redis.Client
		locker redisclient.Locker = redisclient.NoopLocker{}
	)
	rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, slot locking disabled")
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	}

	dispatcher := webhook.NewDispatcher(cfg, webhook.WithLogger(logger))
	dispatcher.Start()

	clock := scheduling.NewZoneClock(cfg.PracticeTimezone)
	svc := scheduling.NewService(repo, locker, dispatcher, clock, cfg)

	handler := api.NewRouter(api.RouterConfig{
		Service:   svc,
		Telephony: telephony.NewFunctions(svc, clock),
		Clock:     clock,
		Logger:    logger,
		PgPool:    pgPool,
		Redis:     rdb,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down api-server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		// requests are drained first so their events still reach the queue
		if err := dispatcher.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api-server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("api-server stopped")
}

// openRepository returns the configured store. The pool is nil for the memory backend.
func openRepository(ctx context.Context, cfg config.Config) (scheduling.Repository, *pgxpool.Pool, error) {
	if cfg.StorageBackend == config.StorageMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return scheduling.NewMemoryRepository(), nil, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(pgCtx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info().Msg("connected to Postgres")

	return scheduling.NewPgRepository(pool), pool, nil
}
