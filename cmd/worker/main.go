package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/app"
	"github.com/brightbooks-erp/brightbooks/internal/assets"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/locks"
	"github.com/brightbooks-erp/brightbooks/jobs"
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

	store, cleanup, err := app.NewStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("init store", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	engine := ledger.NewEngine(store, ledger.NewIntentLog(store), logger, ledger.NewMetrics(nil))
	lockManager := locks.NewManager(store, cfg.LockTTL, logger)
	lockManager.WithRefreshInterval(cfg.LockRefreshInterval)
	resolver := accounts.NewResolver(store)
	assetService := assets.NewService(store, engine, resolver, logger)

	depreciationTask, err := jobs.NewDepreciationRunTask(jobs.DepreciationRunPayload{})
	if err != nil {
		logger.Error("build depreciation task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDepreciationRun, Handler: jobs.NewDepreciationHandler(assetService, logger)},
			{Type: jobs.TaskLockSweep, Handler: jobs.NewLockSweepHandler(lockManager, logger)},
			{Type: jobs.TaskLedgerRecover, Handler: jobs.NewLedgerRecoverHandler(engine, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DepreciationCron, Task: depreciationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.LockSweepCron, Task: jobs.NewLockSweepTask()},
			{Spec: cfg.RecoveryCron, Task: jobs.NewLedgerRecoverTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
