package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/modgate/modgate/internal/jobs"
	"github.com/modgate/modgate/internal/reputation"
)

type fakeAuditPruner struct {
	horizon time.Time
	removed int64
	err     error
}

func (f *fakeAuditPruner) DeleteOlderThan(_ context.Context, horizon time.Time) (int64, error) {
	f.horizon = horizon
	return f.removed, f.err
}

type fakeDetectionPruner struct {
	horizon time.Time
	removed int64
	err     error
}

func (f *fakeDetectionPruner) DeleteOlderThan(_ context.Context, horizon time.Time) (int64, error) {
	f.horizon = horizon
	return f.removed, f.err
}

func testMetrics(t *testing.T) *jobmetrics.Metrics {
	t.Helper()
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestAuditRetentionJobUsesPayloadDays(t *testing.T) {
	pruner := &fakeAuditPruner{removed: 42}
	job := NewAuditRetentionJob(pruner, testLogger(), testMetrics(t))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewAuditRetentionTask(AuditRetentionPayload{Days: 10})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, now.AddDate(0, 0, -10), pruner.horizon)
}

func TestAuditRetentionJobDefaultsToNinetyDays(t *testing.T) {
	pruner := &fakeAuditPruner{}
	job := NewAuditRetentionJob(pruner, testLogger(), testMetrics(t))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewAuditRetentionTask(AuditRetentionPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, now.AddDate(0, 0, -90), pruner.horizon)
}

func TestAuditRetentionJobPropagatesPrunerError(t *testing.T) {
	pruner := &fakeAuditPruner{err: errors.New("db down")}
	job := NewAuditRetentionJob(pruner, testLogger(), testMetrics(t))

	task, err := NewAuditRetentionTask(AuditRetentionPayload{Days: 7})
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}

func TestAuditRetentionJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewAuditRetentionJob(&fakeAuditPruner{}, testLogger(), testMetrics(t))
	task := asynq.NewTask(TaskAuditRetention, []byte("not json"))

	err := job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAnomalyRetentionJobDefaultsToThirtyDays(t *testing.T) {
	pruner := &fakeDetectionPruner{removed: 3}
	job := NewAnomalyRetentionJob(pruner, testLogger(), testMetrics(t))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewAnomalyRetentionTask(AnomalyRetentionPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, now.AddDate(0, 0, -30), pruner.horizon)
}

func TestAnomalyRetentionJobPropagatesPrunerError(t *testing.T) {
	pruner := &fakeDetectionPruner{err: errors.New("db down")}
	job := NewAnomalyRetentionJob(pruner, testLogger(), testMetrics(t))

	task, err := NewAnomalyRetentionTask(AnomalyRetentionPayload{Days: 7})
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}

type mapInputSource map[string]reputation.Input

func (m mapInputSource) ModuleInput(_ context.Context, moduleName string) (reputation.Input, error) {
	input, ok := m[moduleName]
	if !ok {
		return reputation.Input{}, errors.New("no facts")
	}
	return input, nil
}

func TestReputationRefreshJobRefreshesStoredModules(t *testing.T) {
	ctx := context.Background()
	store := reputation.NewMemoryStore()
	engine := reputation.NewEngine(reputation.DefaultWeights(), store)

	_, err := engine.Recompute(ctx, reputation.Input{ModuleName: "alpha", CodeQuality: 20})
	require.NoError(t, err)
	_, err = engine.Recompute(ctx, reputation.Input{ModuleName: "beta", CodeQuality: 20})
	require.NoError(t, err)

	inputs := mapInputSource{
		"alpha": {ModuleName: "alpha", SignatureValid: true, CodeQuality: 90, UserFeedback: 80},
		"beta":  {ModuleName: "beta", CodeQuality: 50},
	}
	job := NewReputationRefreshJob(engine, store, inputs, testLogger(), testMetrics(t))

	task, err := NewReputationRefreshTask(ReputationRefreshPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	alpha, err := store.GetScore(ctx, "alpha")
	require.NoError(t, err)
	beta, err := store.GetScore(ctx, "beta")
	require.NoError(t, err)
	assert.Greater(t, alpha.TotalScore, beta.TotalScore)
}

func TestReputationRefreshJobReportsPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := reputation.NewMemoryStore()
	engine := reputation.NewEngine(reputation.DefaultWeights(), store)

	_, err := engine.Recompute(ctx, reputation.Input{ModuleName: "alpha", CodeQuality: 20})
	require.NoError(t, err)
	_, err = engine.Recompute(ctx, reputation.Input{ModuleName: "ghost", CodeQuality: 20})
	require.NoError(t, err)

	inputs := mapInputSource{
		"alpha": {ModuleName: "alpha", CodeQuality: 70},
	}
	job := NewReputationRefreshJob(engine, store, inputs, testLogger(), testMetrics(t))

	task, err := NewReputationRefreshTask(ReputationRefreshPayload{})
	require.NoError(t, err)
	err = job.Handle(ctx, task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 modules failed")

	alpha, err := store.GetScore(ctx, "alpha")
	require.NoError(t, err)
	assert.Positive(t, alpha.Factors.CodeQuality)
}

func TestReputationRefreshJobHonoursExplicitModuleList(t *testing.T) {
	ctx := context.Background()
	store := reputation.NewMemoryStore()
	engine := reputation.NewEngine(reputation.DefaultWeights(), store)

	inputs := mapInputSource{
		"gamma": {ModuleName: "gamma", CodeQuality: 60},
	}
	job := NewReputationRefreshJob(engine, nil, inputs, testLogger(), testMetrics(t))

	task, err := NewReputationRefreshTask(ReputationRefreshPayload{Modules: []string{"gamma"}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	_, err = store.GetScore(ctx, "gamma")
	assert.NoError(t, err)
}
