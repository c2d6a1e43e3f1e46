package reputation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(store Store) *Engine {
	engine := NewEngine(DefaultWeights(), store)
	engine.clock = func() time.Time {
		return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	}
	return engine
}

func TestComputePerfectModule(t *testing.T) {
	engine := testEngine(nil)
	score := engine.Compute(Input{
		ModuleName:      "weather",
		DeveloperID:     "dev-1",
		SignatureValid:  true,
		CodeQuality:     100,
		UserFeedback:    100,
		ScanRiskScore:   0,
		AgeDays:         400,
		UpdatesLastYear: 20,
	})
	assert.Equal(t, 100.0, score.TotalScore)
	assert.Equal(t, LevelVerified, score.Level)
	assert.Equal(t, 1.0, score.Confidence)
}

func TestComputeUnsignedUnknownModule(t *testing.T) {
	engine := testEngine(nil)
	score := engine.Compute(Input{ModuleName: "fresh", DeveloperID: "dev-2"})
	assert.Equal(t, 0.0, score.TotalScore)
	assert.Equal(t, LevelUntrusted, score.Level)
	assert.Equal(t, 0.0, score.Confidence)
}

func TestViolationsPenaliseAndFloorAtZero(t *testing.T) {
	engine := testEngine(nil)
	base := Input{
		ModuleName:     "shaky",
		SignatureValid: true,
		CodeQuality:    80,
		UserFeedback:   60,
		ScanRiskScore:  20,
		AgeDays:        365,
	}
	clean := engine.Compute(base)

	one := base
	one.Violations = 1
	penalised := engine.Compute(one)
	assert.InDelta(t, clean.TotalScore-20, penalised.TotalScore, 1e-9)

	many := base
	many.Violations = 10
	floored := engine.Compute(many)
	assert.Equal(t, 0.0, floored.TotalScore)
}

func TestAgeAndCadenceAreCapped(t *testing.T) {
	engine := testEngine(nil)
	capped := engine.Compute(Input{ModuleName: "old", AgeDays: 365, UpdatesLastYear: 12})
	beyond := engine.Compute(Input{ModuleName: "older", AgeDays: 3650, UpdatesLastYear: 48})
	assert.Equal(t, capped.TotalScore, beyond.TotalScore)
}

func TestConfidenceIndependentOfScore(t *testing.T) {
	engine := testEngine(nil)
	highScoreLowConfidence := engine.Compute(Input{
		ModuleName:     "newcomer",
		SignatureValid: true,
		CodeQuality:    100,
		UserFeedback:   100,
		AgeDays:        7,
	})
	assert.Greater(t, highScoreLowConfidence.TotalScore, 60.0)
	assert.InDelta(t, 7.0/365.0, highScoreLowConfidence.Confidence, 1e-9)
}

func TestLevelBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  Level
	}{
		{0, LevelUntrusted},
		{20, LevelUntrusted},
		{20.5, LevelSuspicious},
		{40, LevelSuspicious},
		{60, LevelNeutral},
		{80, LevelTrusted},
		{80.5, LevelVerified},
		{100, LevelVerified},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelForScore(tc.score), "score %.1f", tc.score)
	}
}

func TestRecomputePersistsScore(t *testing.T) {
	store := NewMemoryStore()
	engine := testEngine(store)
	_, err := engine.Recompute(context.Background(), Input{
		ModuleName:     "Weather-Bot",
		DeveloperID:    "dev-1",
		SignatureValid: true,
		AgeDays:        30,
	})
	require.NoError(t, err)

	// Lookup is case-insensitive on module name.
	stored, err := engine.Lookup(context.Background(), "weather-bot")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", stored.DeveloperID)
	assert.False(t, stored.LastUpdated.IsZero())
}

func TestRecomputeRequiresModuleName(t *testing.T) {
	engine := testEngine(NewMemoryStore())
	_, err := engine.Recompute(context.Background(), Input{})
	require.Error(t, err)
}
