package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opticore-erp/opticore-erp/internal/app"
	"github.com/opticore-erp/opticore-erp/internal/billing"
	"github.com/opticore-erp/opticore-erp/internal/catalog"
	"github.com/opticore-erp/opticore-erp/internal/dispatch"
	"github.com/opticore-erp/opticore-erp/internal/expense"
	"github.com/opticore-erp/opticore-erp/internal/finance"
	"github.com/opticore-erp/opticore-erp/internal/platform/db"
	"github.com/opticore-erp/opticore-erp/internal/purchasing"
	"github.com/opticore-erp/opticore-erp/internal/sales"
	"github.com/opticore-erp/opticore-erp/internal/shared"
	"github.com/opticore-erp/opticore-erp/internal/stock"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	catalogRepo := catalog.NewRepository(pool)

	reportCache := finance.NewCache(redisClient, cfg.ReportCacheTTL)
	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, reportCache)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger, logger)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, catalogRepo, auditLogger, logger)

	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, catalogRepo, auditLogger, reportCache, logger)

	dispatchRepo := dispatch.NewRepository(pool)
	dispatchService := dispatch.NewService(dispatchRepo, auditLogger, logger)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, catalogRepo, auditLogger, reportCache, logger)

	expenseRepo := expense.NewRepository(pool)
	expenseService := expense.NewService(expenseRepo, auditLogger, reportCache, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SalesHandler:      sales.NewHandler(logger, salesService),
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService),
		DispatchHandler:   dispatch.NewHandler(logger, dispatchService),
		BillingHandler:    billing.NewHandler(logger, billingService),
		ExpenseHandler:    expense.NewHandler(logger, expenseService),
		FinanceHandler:    finance.NewHandler(logger, financeService),
		StockHandler:      stock.NewHandler(logger, stockService),
		CatalogHandler:    catalog.NewHandler(logger, catalogRepo),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
