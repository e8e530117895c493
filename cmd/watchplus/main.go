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

	"github.com/watchplus/watchplus/cmd/watchplus/cli"
	"github.com/watchplus/watchplus/internal/accounts"
	"github.com/watchplus/watchplus/internal/adminlog"
	"github.com/watchplus/watchplus/internal/app"
	"github.com/watchplus/watchplus/internal/auth"
	"github.com/watchplus/watchplus/internal/blocklist"
	"github.com/watchplus/watchplus/internal/observability"
	"github.com/watchplus/watchplus/internal/platform/cache"
	"github.com/watchplus/watchplus/internal/platform/db"
	"github.com/watchplus/watchplus/internal/reports"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
	"github.com/watchplus/watchplus/internal/shared"
	"github.com/watchplus/watchplus/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if len(os.Args) > 1 && os.Args[1] == "bootstrap-admin" {
		if err := cli.BootstrapAdmin(ctx, dbpool, logger, os.Args[2:]); err != nil {
			logger.Error("bootstrap admin", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "watchplus_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	engine := rules.NewEngine()
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	accountsRepo := accounts.NewRepository(dbpool)
	accountsService := accounts.NewService(accountsRepo, engine, metrics)
	rolesMiddleware := roles.Middleware{Accounts: accountsRepo, Logger: logger}

	adminlogRepo := adminlog.NewRepository(dbpool)
	adminlogService := adminlog.NewService(adminlogRepo, engine)
	adminlogHandler := adminlog.NewHandler(logger, adminlogService, rolesMiddleware)

	blocklistStore := blocklist.NewStore(dbpool)
	blocklistService := blocklist.NewService(blocklistStore, engine, adminlogRepo)
	blocklistHandler := blocklist.NewHandler(logger, blocklistService, rolesMiddleware)

	reportsRepo := reports.NewRepository(dbpool)
	reportsService := reports.NewService(reportsRepo, engine)
	reportsHandler := reports.NewHandler(logger, reportsService, rolesMiddleware)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, accountsService, blocklistService)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	accountsHandler := accounts.NewHandler(logger, accountsService, rolesMiddleware, idempotencyStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, rolesMiddleware, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		RolesMiddleware:  rolesMiddleware,
		AuthHandler:      authHandler,
		AccountsHandler:  accountsHandler,
		AdminLogHandler:  adminlogHandler,
		BlocklistHandler: blocklistHandler,
		ReportsHandler:   reportsHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
