package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/modgate/modgate/internal/jobs"
	"github.com/modgate/modgate/internal/reputation"
)

// ScoredModuleLister enumerates every module with a persisted reputation
// score.
type ScoredModuleLister interface {
	ListModules(ctx context.Context) ([]string, error)
}

// ReputationInputSource assembles the current scoring input for a module
// from whatever fact stores the deployment wires in.
type ReputationInputSource interface {
	ModuleInput(ctx context.Context, moduleName string) (reputation.Input, error)
}

// ReputationRefreshJob recomputes stored reputation scores so that aging and
// update-cadence factors stay current between admissions.
type ReputationRefreshJob struct {
	Engine  *reputation.Engine
	Lister  ScoredModuleLister
	Inputs  ReputationInputSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReputationRefreshJob initialises the handler.
func NewReputationRefreshJob(engine *reputation.Engine, lister ScoredModuleLister, inputs ReputationInputSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReputationRefreshJob {
	return &ReputationRefreshJob{
		Engine:  engine,
		Lister:  lister,
		Inputs:  inputs,
		Logger:  logger,
		Metrics: metrics,
	}
}

// Handle refreshes the scores for the modules named in the payload, or for
// every scored module when the payload names none.
func (j *ReputationRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Engine == nil || j.Inputs == nil {
		return errors.New("reputation refresh: handler not configured")
	}
	var payload ReputationRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskReputationRefresh)
	var resultErr error
	defer func() { resultErr = tracker.End(resultErr) }()

	modules := payload.Modules
	if len(modules) == 0 {
		if j.Lister == nil {
			resultErr = errors.New("reputation refresh: no modules given and no lister configured")
			return resultErr
		}
		var err error
		modules, err = j.Lister.ListModules(ctx)
		if err != nil {
			resultErr = fmt.Errorf("reputation refresh: list modules: %w", err)
			return resultErr
		}
	}

	refreshed := 0
	var failed []string
	for _, name := range modules {
		input, err := j.Inputs.ModuleInput(ctx, name)
		if err != nil {
			j.logger().Warn("reputation refresh: gather input failed",
				slog.String("module", name), slog.Any("error", err))
			failed = append(failed, name)
			continue
		}
		if input.ModuleName == "" {
			input.ModuleName = name
		}
		if _, err := j.Engine.Recompute(ctx, input); err != nil {
			j.logger().Warn("reputation refresh: recompute failed",
				slog.String("module", name), slog.Any("error", err))
			failed = append(failed, name)
			continue
		}
		refreshed++
	}

	j.logger().Info("reputation refresh complete",
		slog.Int("modules", len(modules)),
		slog.Int("refreshed", refreshed),
		slog.Int("failed", len(failed)))
	if len(failed) > 0 {
		resultErr = fmt.Errorf("reputation refresh: %d of %d modules failed", len(failed), len(modules))
	}
	return resultErr
}

func (j *ReputationRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
