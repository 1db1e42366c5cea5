package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"product-catalog-platform/analytics/internal/rollup"
	"product-catalog-platform/analytics/internal/store"
	"product-catalog-platform/shared/awsx"
	"product-catalog-platform/shared/config"
	"product-catalog-platform/shared/lockx"
	"product-catalog-platform/shared/logx"
	"product-catalog-platform/shared/metricsx"
	"product-catalog-platform/shared/observability"
)

const taskDailyRollup = "analytics.rollup"

const rollupLockKey = "analytics:rollup:lock"

func main() {
	cfg, problems := config.Load("aggregator", 8084)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)

	if cfg.AsynqRedisAddr == "" {
		problems = append(problems, config.Problem{Field: "ASYNQ_REDIS_ADDR", Message: "ASYNQ_REDIS_ADDR is required"})
	}
	if cfg.AnalyticsTable == "" {
		problems = append(problems, config.Problem{Field: "ANALYTICS_TABLE", Message: "ANALYTICS_TABLE is required"})
	}
	if len(problems) > 0 {
		logger.Error(context.Background(), "config_invalid", "invalid config",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.Any("problems", problems),
		)
		os.Exit(1)
	}

	metricsx.Register()

	if cfg.OtelEnabled {
		if shutdown, err := observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: cfg.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OtelEndpoint,
			Insecure:    cfg.OtelInsecure,
			SampleRatio: cfg.OtelSampleRatio,
		}); err == nil {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	awsCfg, err := awsx.LoadConfig(context.Background(), cfg)
	if err != nil {
		logger.Error(context.Background(), "aws_init_failed", "aws config init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	st := store.New(awsx.NewDynamoDB(awsCfg, cfg), cfg.AnalyticsTable)

	lockClient := redis.NewClient(&redis.Options{
		Addr:     cfg.AsynqRedisAddr,
		Password: cfg.AsynqRedisPass,
		DB:       cfg.AsynqRedisDB,
	})
	defer lockClient.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.AsynqRedisAddr,
		Password: cfg.AsynqRedisPass,
		DB:       cfg.AsynqRedisDB,
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.AsynqConcurrency,
		Queues: map[string]int{
			cfg.AsynqQueue: 1,
		},
	})
	defer server.Shutdown()

	mux := asynq.NewServeMux()
	mux.HandleFunc(taskDailyRollup, func(ctx context.Context, t *asynq.Task) error {
		// Only one worker rebuilds a day at a time. The writes are
		// idempotent, but the lock keeps the GSI read load bounded.
		lock, ok, err := lockx.Acquire(ctx, lockClient, rollupLockKey, 10*time.Minute)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info(ctx, "rollup_skipped", "another worker holds the rollup lock")
			return nil
		}
		defer func() { _ = lock.Release(ctx) }()

		start := time.Now()
		sellers, err := rollup.Run(ctx, st, st, time.Now().UTC())
		if err != nil {
			return err
		}
		logger.Info(ctx, "rollup_done", "daily rollup completed",
			slog.Int("sellers", sellers),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
	})
	defer scheduler.Shutdown()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := scheduler.Register(cfg.RollupCron, asynq.NewTask(taskDailyRollup, nil, asynq.Queue(cfg.AsynqQueue))); err != nil {
		logger.Error(context.Background(), "scheduler_init_failed", "scheduler init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error(context.Background(), "scheduler_start_failed", "scheduler start failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			info, err := inspector.GetQueueInfo(cfg.AsynqQueue)
			if err != nil {
				continue
			}
			metricsx.SetAsynqQueueDepth(cfg.AsynqQueue, info.Size)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "worker_start", "aggregator started",
			slog.String("queue", cfg.AsynqQueue),
			slog.String("cron", cfg.RollupCron),
			slog.Int("concurrency", cfg.AsynqConcurrency),
		)
		errCh <- server.Run(mux)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info(context.Background(), "shutdown_signal", "received signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, asynq.ErrServerClosed) {
			logger.Error(context.Background(), "worker_failed", "worker failed",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	logger.Info(context.Background(), "worker_stop", "aggregator stopped")
}
