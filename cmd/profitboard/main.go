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

	"github.com/odyssey-erp/profitboard/internal/analytics"
	analytichttp "github.com/odyssey-erp/profitboard/internal/analytics/http"
	"github.com/odyssey-erp/profitboard/internal/analytics/ui"
	"github.com/odyssey-erp/profitboard/internal/app"
	"github.com/odyssey-erp/profitboard/internal/auth"
	"github.com/odyssey-erp/profitboard/internal/observability"
	"github.com/odyssey-erp/profitboard/internal/platform/cache"
	"github.com/odyssey-erp/profitboard/internal/platform/db"
	"github.com/odyssey-erp/profitboard/internal/shared"
	"github.com/odyssey-erp/profitboard/internal/view"
	"github.com/odyssey-erp/profitboard/jobs"
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

	provider, err := db.New(ctx, cfg.DB())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer provider.Close()

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

	credentials, err := auth.LoadCredentialsFile(cfg.AuthCredentialsFile)
	if err != nil {
		logger.Error("load credentials", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("credential store loaded", slog.Int("accounts", len(credentials.Usernames())))

	sessionManager := shared.NewSessionManager(redisClient, cfg.AuthCookieName, cfg.AuthCookieKey, cfg.SessionTTL(), cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	if err := metrics.RegisterPool(provider.Pool().Stat); err != nil {
		logger.Warn("register pool metrics", slog.Any("error", err))
	}

	resultCache, err := app.NewResultCache(cfg, redisClient, metrics.Registerer(), logger)
	if err != nil {
		logger.Error("init result cache", slog.Any("error", err))
		os.Exit(1)
	}
	go resultCache.SweepLoop(ctx, time.Minute, logger)
	if !resultCache.Shared() {
		logger.Info("result cache is in-process; worker warm-ups will not reach it", slog.String("cache_backend", cfg.CacheBackend))
	}

	analyticsRepo := analytics.NewRepository(provider.Pool(), cfg.DBSchema)
	analyticsService := analytics.NewService(analyticsRepo, resultCache.Cache)
	analyticsHandler := analytichttp.NewHandler(
		logger,
		analyticsService,
		templates,
		csrfManager,
		ui.SVGRenderer{},
		ui.SVGRenderer{},
		analytichttp.Options{
			TopSKULimit:       cfg.TopSKULimit,
			PageSize:          cfg.PageSize,
			DefaultWindowDays: cfg.DefaultWindowDays,
			RequestTimeout:    cfg.DBStatementTimeout,
		},
	)

	authService := auth.NewService(credentials, logger)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		AnalyticsHandler: analyticsHandler,
		JobsHandler:      jobsHandler,
		Readiness:        provider,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
