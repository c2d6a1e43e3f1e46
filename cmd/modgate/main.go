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

	"github.com/modgate/modgate/internal/admission"
	"github.com/modgate/modgate/internal/anomaly"
	"github.com/modgate/modgate/internal/app"
	"github.com/modgate/modgate/internal/audit"
	audithttp "github.com/modgate/modgate/internal/audit/http"
	"github.com/modgate/modgate/internal/auth"
	"github.com/modgate/modgate/internal/observability"
	"github.com/modgate/modgate/internal/platform/cache"
	"github.com/modgate/modgate/internal/platform/db"
	"github.com/modgate/modgate/internal/policy"
	"github.com/modgate/modgate/internal/rbac"
	"github.com/modgate/modgate/internal/reputation"
	"github.com/modgate/modgate/internal/sandbox"
	"github.com/modgate/modgate/internal/scanner"
	"github.com/modgate/modgate/internal/trust"
	"github.com/modgate/modgate/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	fileSink, err := audit.NewFileSink(cfg.AuditDir)
	if err != nil {
		logger.Error("open audit dir", slog.Any("error", err))
		os.Exit(1)
	}
	pgSink := audit.NewPGSink(pool)
	auditLog := audit.NewLogger(logger, []audit.Sink{fileSink, pgSink})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := auditLog.Close(closeCtx); err != nil {
			logger.Warn("audit close", slog.Any("error", err))
		}
	}()

	trustStore := trust.NewRepository(pool)
	keyring := trust.NewKeyring()
	registry := trust.NewRegistry(trustStore, keyring, logger)

	policyEngine, err := policy.NewEngine(ctx, policy.NewRepository(pool), cfg.Level(), logger, auditLog)
	if err != nil {
		logger.Error("init policy engine", slog.Any("error", err))
		os.Exit(1)
	}

	permCache := rbac.NewPermissionCache(redisClient, 0, logger)
	rbacService := rbac.NewService(rbac.NewRepository(pool), permCache, cfg.OwnerUserIDs, logger, auditLog)
	if err := rbacService.Bootstrap(ctx, nil); err != nil {
		logger.Error("bootstrap rbac", slog.Any("error", err))
		os.Exit(1)
	}
	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger, Metrics: metrics}

	sandboxes := sandbox.NewManager(logger, auditLog)
	threatScanner := scanner.New(logger)
	reputationEngine := reputation.NewEngine(reputation.DefaultWeights(), reputation.NewRepository(pool))
	detector := anomaly.NewDetector(anomaly.DefaultThresholds(), logger)
	go func() {
		// Durable detections are pruned by the worker; the in-memory
		// windows and history belong to this process.
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				detector.ClearOld(cfg.AnomalyRetentionDays)
			}
		}
	}()

	pipeline := admission.NewPipeline(admission.Config{
		Trust:      registry,
		Scanner:    threatScanner,
		Reputation: reputationEngine,
		Policy:     policyEngine,
		Sandboxes:  sandboxes,
		Detector:   detector,
		RBAC:       rbacService,
		Facts:      admission.NewMemoryFacts(),
		Locker:     admission.NewLocker(redisClient),
		Audits:     auditLog,
		Detections: anomaly.NewRepository(pool),
		Metrics:    metrics,
		Logger:     logger,
	})

	authService := auth.NewService(auth.NewRepository(pool))
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}
	authHandler := auth.NewHandler(logger, authService)

	rbacHandler := rbac.NewHandler(logger, rbacService, rbacMiddleware)
	policyHandler := policy.NewHandler(logger, policyEngine, rbacMiddleware)
	admissionHandler := admission.NewHandler(logger, pipeline, rbacMiddleware)
	auditHandler := audithttp.NewHandler(logger, audit.NewService(pgSink))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthMiddleware:   authMiddleware,
		RBACMiddleware:   rbacMiddleware,
		AuthHandler:      authHandler,
		RBACHandler:      rbacHandler,
		PolicyHandler:    policyHandler,
		AdmissionHandler: admissionHandler,
		AuditHandler:     auditHandler,
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
