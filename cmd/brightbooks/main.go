package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/app"
	"github.com/brightbooks-erp/brightbooks/internal/assets"
	"github.com/brightbooks-erp/brightbooks/internal/inventory"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/locks"
	"github.com/brightbooks-erp/brightbooks/internal/procurement"
	"github.com/brightbooks-erp/brightbooks/internal/sales"
	"github.com/brightbooks-erp/brightbooks/internal/versions"
	"github.com/brightbooks-erp/brightbooks/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	metrics := ledger.NewMetrics(nil)
	engine := ledger.NewEngine(store, ledger.NewIntentLog(store), logger, metrics)
	lockManager := locks.NewManager(store, cfg.LockTTL, logger)
	lockManager.WithRefreshInterval(cfg.LockRefreshInterval)
	recorder := versions.NewRecorder(store, logger)
	resolver := accounts.NewResolver(store)
	accountService := accounts.NewService(store, engine, resolver, logger)
	stock := inventory.NewService(store, logger)
	assetService := assets.NewService(store, engine, resolver, logger)
	receiptService := procurement.NewService(store, engine, resolver, stock, logger)
	returnService := sales.NewService(store, engine, resolver, stock, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer jobClient.Close()
	jobInspector := asynq.NewInspector(redisOpts)
	defer jobInspector.Close()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		LedgerHandler:      ledger.NewHandler(logger, engine, lockManager, recorder),
		LockHandler:        locks.NewHandler(logger, lockManager),
		AccountsHandler:    accounts.NewHandler(logger, accountService, resolver),
		AssetsHandler:      assets.NewHandler(logger, assetService),
		ProcurementHandler: procurement.NewHandler(logger, receiptService),
		SalesHandler:       sales.NewHandler(logger, returnService),
		JobHandler:         jobs.NewHandler(jobInspector, jobClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
