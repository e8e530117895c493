package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/watchplus/watchplus/internal/app"
	"github.com/watchplus/watchplus/internal/observability"
	"github.com/watchplus/watchplus/internal/platform/db"
	"github.com/watchplus/watchplus/internal/reports"
	"github.com/watchplus/watchplus/internal/rules"
	"github.com/watchplus/watchplus/internal/shared"
	"github.com/watchplus/watchplus/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, rules.NewEngine())
	archiveHandler := jobs.NewArchiveExpiredHandler(reportsService, logger, metrics)
	cleanupHandler := jobs.NewIdempotencyCleanupHandler(shared.NewIdempotencyStore(pool), logger, metrics)

	archiveTask, err := jobs.NewArchiveExpiredTask(jobs.ArchiveExpiredPayload{})
	if err != nil {
		logger.Error("build archive task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{Retention: cfg.IdempotencyRetention})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskArchiveExpired, Handler: archiveHandler},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupHandler},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.EvidenceArchiveSchedule, Task: archiveTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IdempotencyCleanupSchedule, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
