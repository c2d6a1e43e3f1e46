package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modgate/modgate/internal/shared"
)

func newTestEngine(t *testing.T, level shared.SecurityLevel) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	engine, err := NewEngine(context.Background(), store, level, nil, nil)
	require.NoError(t, err)
	return engine, store
}

func TestSeedPersistsOnFirstRun(t *testing.T) {
	_, store := newTestEngine(t, shared.LevelStrict)
	cfg, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, shared.LevelStrict, cfg.Level)
	assert.True(t, cfg.ActivePolicies[PolicySignedOnly])
}

func TestRiskGateReportsReason(t *testing.T) {
	engine, _ := newTestEngine(t, shared.LevelModerate)
	require.NoError(t, engine.SetThresholds(context.Background(), 40, 50))

	allowed, reason := engine.IsModuleAllowed("risky", true, 70, 85, "dev-1")
	assert.False(t, allowed)
	assert.Equal(t, "risk too high", reason)
}

func TestGateOrderFirstFailureWins(t *testing.T) {
	engine, _ := newTestEngine(t, shared.LevelParanoid)
	ctx := context.Background()
	require.NoError(t, engine.BlockModule(ctx, "rogue"))

	// Blocked wins over every later gate, including the signature gate.
	allowed, reason := engine.IsModuleAllowed("rogue", false, 0, 100, "dev-1")
	assert.False(t, allowed)
	assert.Equal(t, "module is blocked", reason)

	// With the block lifted the signature gate reports next.
	require.NoError(t, engine.UnblockModule(ctx, "rogue"))
	allowed, reason = engine.IsModuleAllowed("rogue", false, 0, 100, "dev-1")
	assert.False(t, allowed)
	assert.Equal(t, "module signature is missing or invalid", reason)
}

func TestDeveloperAllowlistGate(t *testing.T) {
	engine, _ := newTestEngine(t, shared.LevelParanoid)
	ctx := context.Background()

	// Empty allowlist: gate passes.
	allowed, _ := engine.IsModuleAllowed("clean", true, 90, 5, "dev-unknown")
	assert.True(t, allowed)

	require.NoError(t, engine.AllowDeveloper(ctx, "dev-1"))
	allowed, reason := engine.IsModuleAllowed("clean", true, 90, 5, "dev-unknown")
	assert.False(t, allowed)
	assert.Equal(t, "developer is not in the allowlist", reason)

	allowed, _ = engine.IsModuleAllowed("clean", true, 90, 5, "dev-1")
	assert.True(t, allowed)
}

func TestLoweringMinReputationIsMonotonic(t *testing.T) {
	engine, _ := newTestEngine(t, shared.LevelStrict)
	ctx := context.Background()

	probe := func() bool {
		allowed, _ := engine.IsModuleAllowed("probe", true, 50, 10, "dev-1")
		return allowed
	}
	require.NoError(t, engine.SetThresholds(ctx, 60, 30))
	wasAllowed := probe()
	assert.False(t, wasAllowed)

	// Lowering the bar can only flip denied -> allowed.
	require.NoError(t, engine.SetThresholds(ctx, 40, 30))
	assert.True(t, probe())
}

func TestSetLevelSwapsWholeBundle(t *testing.T) {
	engine, _ := newTestEngine(t, shared.LevelPermissive)
	ctx := context.Background()

	// Customise, then switch levels: preset replaces everything except the
	// blocked and trusted-signer lists.
	require.NoError(t, engine.SetThresholds(ctx, 5, 99))
	require.NoError(t, engine.BlockModule(ctx, "rogue"))
	require.NoError(t, engine.SetLevel(ctx, shared.LevelParanoid))

	cfg := engine.Current()
	assert.Equal(t, shared.LevelParanoid, cfg.Level)
	assert.Equal(t, 80.0, cfg.MinReputationScore)
	assert.Equal(t, 10.0, cfg.MaxRiskScore)
	assert.Equal(t, []string{"rogue"}, cfg.BlockedModules)
	assert.False(t, cfg.AutoApproveVerified)
}

func TestAutoApproveVerifiedShortCircuit(t *testing.T) {
	engine, _ := newTestEngine(t, shared.LevelModerate)
	require.NoError(t, engine.SetThresholds(context.Background(), 98, 50))

	// Verified-level reputation with a valid signature skips the reputation
	// gate even when the configured minimum sits above it.
	allowed, reason := engine.IsModuleAllowed("star", true, 95, 10, "dev-1")
	assert.True(t, allowed)
	assert.Equal(t, "auto-approved verified module", reason)

	// The risk cap still applies to verified modules.
	allowed, reason = engine.IsModuleAllowed("risky", true, 85, 85, "dev-1")
	assert.False(t, allowed)
	assert.Equal(t, "risk too high", reason)

	// An invalid signature never auto-approves.
	allowed, _ = engine.IsModuleAllowed("star", false, 95, 10, "dev-1")
	assert.False(t, allowed)
}

func TestFailedPersistLeavesSnapshotUntouched(t *testing.T) {
	engine, store := newTestEngine(t, shared.LevelModerate)
	store.SaveErr = errors.New("disk full")

	err := engine.BlockModule(context.Background(), "rogue")
	require.Error(t, err)

	allowed, _ := engine.IsModuleAllowed("rogue", true, 90, 5, "dev-1")
	assert.True(t, allowed, "failed mutation must not change the active configuration")
}

func TestMutationsPersistImmediately(t *testing.T) {
	engine, store := newTestEngine(t, shared.LevelModerate)
	require.NoError(t, engine.AddTrustedSigner(context.Background(), "key-1"))

	cfg, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cfg.TrustedSigners, "key-1")
	assert.Equal(t, int64(1), cfg.Version)
}
