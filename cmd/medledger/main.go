package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/medledger-hq/medledger/internal/accounting/accounts"
	"github.com/medledger-hq/medledger/internal/accounting/fiscalyears"
	"github.com/medledger-hq/medledger/internal/accounting/journals"
	"github.com/medledger-hq/medledger/internal/accounting/ledger"
	"github.com/medledger-hq/medledger/internal/accounting/trialbalance"
	"github.com/medledger-hq/medledger/internal/app"
	"github.com/medledger-hq/medledger/internal/observability"
	"github.com/medledger-hq/medledger/internal/platform/cache"
	"github.com/medledger-hq/medledger/internal/platform/db"
	"github.com/medledger-hq/medledger/internal/shared"
	"github.com/medledger-hq/medledger/jobs"
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
		logger.Warn("redis unavailable, trial balance cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	idempotencyStore := shared.NewIdempotencyStore(pool)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	yearsRepo := fiscalyears.NewRepository(pool)
	yearsService := fiscalyears.NewService(yearsRepo)
	yearsHandler := fiscalyears.NewHandler(logger, yearsService)

	journalsRepo := journals.NewRepository(pool)
	journalsService := journals.NewService(logger, journalsRepo)
	journalsHandler := journals.NewHandler(logger, journalsService, idempotencyStore)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(logger, ledgerRepo, yearsService)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	tbRepo := trialbalance.NewRepository(pool)
	tbService := trialbalance.NewService(logger, tbRepo, yearsService, redisClient)
	tbHandler := trialbalance.NewHandler(logger, tbService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Pool:                pool,
		AccountsHandler:     accountsHandler,
		FiscalYearsHandler:  yearsHandler,
		JournalsHandler:     journalsHandler,
		LedgerHandler:       ledgerHandler,
		TrialBalanceHandler: tbHandler,
		JobsHandler:         jobsHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
