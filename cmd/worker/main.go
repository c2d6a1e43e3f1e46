package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/modgate/modgate/internal/anomaly"
	"github.com/modgate/modgate/internal/app"
	"github.com/modgate/modgate/internal/audit"
	jobmetrics "github.com/modgate/modgate/internal/jobs"
	"github.com/modgate/modgate/internal/platform/db"
	"github.com/modgate/modgate/internal/reputation"
	"github.com/modgate/modgate/jobs"
)

// storedInputSource rebuilds a scoring input from the persisted score so the
// time-driven factors age correctly between admissions. Fresh scan and
// feedback facts only arrive with the next admission.
type storedInputSource struct {
	store *reputation.Repository
}

func (s storedInputSource) ModuleInput(ctx context.Context, moduleName string) (reputation.Input, error) {
	score, err := s.store.GetScore(ctx, moduleName)
	if err != nil {
		return reputation.Input{}, err
	}
	return reputation.DefaultWeights().InputFromScore(score, time.Now().UTC()), nil
}

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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	auditJob := jobs.NewAuditRetentionJob(audit.NewPGSink(pool), logger, metrics)

	anomalyJob := jobs.NewAnomalyRetentionJob(anomaly.NewRepository(pool), logger, metrics)

	reputationRepo := reputation.NewRepository(pool)
	reputationEngine := reputation.NewEngine(reputation.DefaultWeights(), reputationRepo)
	reputationJob := jobs.NewReputationRefreshJob(reputationEngine, reputationRepo, storedInputSource{store: reputationRepo}, logger, metrics)

	auditTask, err := jobs.NewAuditRetentionTask(jobs.AuditRetentionPayload{Days: cfg.AuditRetentionDays})
	if err != nil {
		logger.Error("build audit retention task", slog.Any("error", err))
		os.Exit(1)
	}
	anomalyTask, err := jobs.NewAnomalyRetentionTask(jobs.AnomalyRetentionPayload{Days: cfg.AnomalyRetentionDays})
	if err != nil {
		logger.Error("build anomaly retention task", slog.Any("error", err))
		os.Exit(1)
	}
	refreshTask, err := jobs.NewReputationRefreshTask(jobs.ReputationRefreshPayload{})
	if err != nil {
		logger.Error("build reputation refresh task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditRetention, Handler: auditJob.Handle},
			{Type: jobs.TaskAnomalyRetention, Handler: anomalyJob.Handle},
			{Type: jobs.TaskReputationRefresh, Handler: reputationJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: auditTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: anomalyTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
