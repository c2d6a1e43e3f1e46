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

const defaultAnomalyRetentionDays = 30

// DetectionPruner deletes persisted anomaly detections older than the
// horizon and reports how many went away.
type DetectionPruner interface {
	DeleteOlderThan(ctx context.Context, horizon time.Time) (int64, error)
}

// AnomalyRetentionJob prunes the anomaly detection table. Each API process
// trims its own in-memory windows on a local timer; this job owns the
// durable rows.
type AnomalyRetentionJob struct {
	Pruner  DetectionPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAnomalyRetentionJob initialises the handler.
func NewAnomalyRetentionJob(pruner DetectionPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnomalyRetentionJob {
	return &AnomalyRetentionJob{
		Pruner:  pruner,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the retention pass.
func (j *AnomalyRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pruner == nil {
		return errors.New("anomaly retention: handler not configured")
	}
	var payload AnomalyRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Days <= 0 {
		payload.Days = defaultAnomalyRetentionDays
	}

	tracker := j.Metrics.Track(TaskAnomalyRetention)
	horizon := j.clock().AddDate(0, 0, -payload.Days)
	removed, err := j.Pruner.DeleteOlderThan(ctx, horizon)
	if err != nil {
		j.logger().Error("anomaly retention failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddPruned(TaskAnomalyRetention, int(removed))
	j.logger().Info("anomaly retention complete",
		slog.Int("days", payload.Days),
		slog.Int64("removed", removed))
	return tracker.End(nil)
}

func (j *AnomalyRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
