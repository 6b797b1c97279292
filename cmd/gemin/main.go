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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gemin-erp/gemin-erp/internal/app"
	"github.com/gemin-erp/gemin-erp/internal/audit"
	"github.com/gemin-erp/gemin-erp/internal/auth"
	"github.com/gemin-erp/gemin-erp/internal/authz"
	"github.com/gemin-erp/gemin-erp/internal/observability"
	"github.com/gemin-erp/gemin-erp/internal/platform/cache"
	"github.com/gemin-erp/gemin-erp/internal/platform/db"
	"github.com/gemin-erp/gemin-erp/internal/tenancy"
	"github.com/gemin-erp/gemin-erp/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	authzRepo := authz.NewRepository(pool)
	authzService := authz.NewService(authzRepo)
	authzGuard := authz.Middleware{Logger: logger, Metrics: metrics}

	auditService := audit.NewService(audit.NewRepository(pool), logger)

	tokens := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(auth.NewRepository(pool), tokens)

	tenancyService := tenancy.NewService(tenancy.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthHandler:       auth.NewHandler(logger, authService),
		AuthMiddleware:    auth.Middleware{Logger: logger, Service: authService, Evaluator: authzService},
		AuthzHandler:      authz.NewHandler(logger, authzService, auditService, jobsClient, authzGuard),
		AuthzMiddleware:   authzGuard,
		TenancyHandler:    tenancy.NewHandler(logger, tenancyService, authzGuard),
		TenancyMiddleware: tenancy.Middleware{Logger: logger, Service: tenancyService, Metrics: metrics},
		AuditHandler:      audit.NewHandler(logger, auditService),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
