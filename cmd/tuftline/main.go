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
	"github.com/redis/go-redis/v9"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/accounts"
	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	"github.com/tuftline-erp/tuftline-erp/internal/app"
	"github.com/tuftline-erp/tuftline-erp/internal/expenses"
	"github.com/tuftline-erp/tuftline-erp/internal/inventory"
	"github.com/tuftline-erp/tuftline-erp/internal/masterdata/clients"
	"github.com/tuftline-erp/tuftline-erp/internal/masterdata/suppliers"
	"github.com/tuftline-erp/tuftline-erp/internal/orders"
	"github.com/tuftline-erp/tuftline-erp/internal/platform/cache"
	"github.com/tuftline-erp/tuftline-erp/internal/platform/db"
	"github.com/tuftline-erp/tuftline-erp/internal/procurement"
	"github.com/tuftline-erp/tuftline-erp/internal/production"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
	"github.com/tuftline-erp/tuftline-erp/jobs"
	"github.com/tuftline-erp/tuftline-erp/migrations"
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

	if err := db.Migrate(cfg.PGDSN, migrations.FS, "."); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// A missing Redis degrades the stock cache and jobs endpoints, it does
	// not stop the server.
	var redisClient *redis.Client
	redisClient, err = cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	refs := shared.NewReferenceGenerator(nil)
	auditLog := shared.NewAuditLogger(pool)
	idemStore := shared.NewIdempotencyStore(pool)
	stockCache := inventory.NewStockCache(redisClient, cfg.StockCacheTTL)

	ledgerEngine := journals.NewEngine(refs)
	stockEngine := inventory.NewEngine()

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo, auditLog)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	journalsRepo := journals.NewRepository(pool)
	journalsService := journals.NewService(journalsRepo, ledgerEngine, auditLog)
	journalsHandler := journals.NewHandler(logger, journalsService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, stockEngine, stockCache, auditLog)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, ledgerEngine, refs, auditLog, orders.ServiceConfig{
		CashAccountID:             cfg.CashAccountID,
		DepositLiabilityAccountID: cfg.DepositLiabilityAccountID,
	})
	ordersHandler := orders.NewHandler(logger, ordersService)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, ledgerEngine, stockEngine, refs, auditLog, idemStore, inventoryService, procurement.ServiceConfig{
		InventoryAccountID: cfg.InventoryAccountID,
		PayablesAccountID:  cfg.PayablesAccountID,
	})
	procurementHandler := procurement.NewHandler(logger, procurementService)

	productionRepo := production.NewRepository(pool)
	productionService := production.NewService(productionRepo, ledgerEngine, stockEngine, auditLog, inventoryService, production.ServiceConfig{
		WIPAccountID:           cfg.WIPAccountID,
		InventoryAccountID:     cfg.InventoryAccountID,
		FinishedGoodsAccountID: cfg.FinishedGoodsAccountID,
	})
	productionHandler := production.NewHandler(logger, productionService)

	expensesRepo := expenses.NewRepository(pool)
	expensesService := expenses.NewService(expensesRepo, ledgerEngine, refs, auditLog)
	expensesHandler := expenses.NewHandler(logger, expensesService)

	clientsHandler := clients.NewHandler(logger, clients.NewService(clients.NewRepository(pool)))
	suppliersHandler := suppliers.NewHandler(logger, suppliers.NewService(suppliers.NewRepository(pool)))

	var jobsHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobsClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Warn("jobs client", slog.Any("error", err))
		} else {
			defer func() {
				if err := jobsClient.Close(); err != nil {
					logger.Warn("jobs client close", slog.Any("error", err))
				}
			}()
		}
		jobsHandler = jobs.NewHandler(inspector, jobsClient, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AccountsHandler:    accountsHandler,
		JournalsHandler:    journalsHandler,
		InventoryHandler:   inventoryHandler,
		OrdersHandler:      ordersHandler,
		ProcurementHandler: procurementHandler,
		ProductionHandler:  productionHandler,
		ExpensesHandler:    expensesHandler,
		ClientsHandler:     clientsHandler,
		SuppliersHandler:   suppliersHandler,
		JobsHandler:        jobsHandler,
		Pool:               pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
