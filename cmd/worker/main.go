package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/comptoir-erp/comptoir-erp/internal/accounting"
	"github.com/comptoir-erp/comptoir-erp/internal/app"
	"github.com/comptoir-erp/comptoir-erp/internal/documents"
	"github.com/comptoir-erp/comptoir-erp/internal/generate"
	"github.com/comptoir-erp/comptoir-erp/internal/platform/cache"
	"github.com/comptoir-erp/comptoir-erp/internal/platform/db"
	"github.com/comptoir-erp/comptoir-erp/internal/shared"
	"github.com/comptoir-erp/comptoir-erp/jobs"
)

func main() {
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, document locks disabled", slog.Any("error", err))
		redisClient = nil
	}

	auditLogger := shared.NewAuditLogger(pool)
	locker := shared.NewDocumentLocker(redisClient, cfg.DocumentLockTTL)

	ledgerRepo := accounting.NewRepository(pool)
	ledgerSvc := accounting.NewService(ledgerRepo, auditLogger)
	docRepo := documents.NewRepository(pool)
	hooks := generate.NewHooks(ledgerRepo, ledgerSvc, docRepo, locker, auditLogger, logger)

	scanJob := jobs.NewPendingScanJob(hooks, docRepo, logger)

	sweepTask, err := jobs.NewPendingScanTask(jobs.PendingScanPayload{Limit: cfg.PendingScanLimit})
	if err != nil {
		logger.Error("build pending scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerPendingScan, Handler: scanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "@every " + cfg.PendingScanInterval.String(), Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
