package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/modgate/modgate/internal/jobs"
)

const defaultAuditRetentionDays = 90

// AuditPruner deletes audit events older than the horizon and reports how
// many went away.
type AuditPruner interface {
	DeleteOlderThan(ctx context.Context, horizon time.Time) (int64, error)
}

// AuditRetentionJob prunes persisted audit events. The JSONL files on disk
// are left alone; file rotation is handled by the operator.
type AuditRetentionJob struct {
	Pruner  AuditPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditRetentionJob initialises the handler.
func NewAuditRetentionJob(pruner AuditPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{
		Pruner:  pruner,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the retention pass.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pruner == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Days <= 0 {
		payload.Days = defaultAuditRetentionDays
	}

	tracker := j.Metrics.Track(TaskAuditRetention)
	horizon := j.clock().AddDate(0, 0, -payload.Days)
	removed, err := j.Pruner.DeleteOlderThan(ctx, horizon)
	if err != nil {
		j.logger().Error("audit retention failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddPruned(TaskAuditRetention, int(removed))
	j.logger().Info("audit retention complete",
		slog.Int("days", payload.Days),
		slog.Int64("removed", removed))
	return tracker.End(nil)
}

func (j *AuditRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
