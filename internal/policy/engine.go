// Package policy holds the active security configuration and makes the
// module admission decision. Reads are lock-free against an atomically
// swapped snapshot; every mutation persists before the snapshot swap.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modgate/modgate/internal/audit"
	"github.com/modgate/modgate/internal/shared"
)

// Store persists the single security configuration.
type Store interface {
	Load(ctx context.Context) (Configuration, error)
	Save(ctx context.Context, cfg Configuration) error
}

// AuditRecorder receives configuration-change events.
type AuditRecorder interface {
	Record(event audit.Event)
}

// Engine is the security level manager.
type Engine struct {
	store  Store
	logger *slog.Logger
	audits AuditRecorder
	clock  func() time.Time

	writeMu  sync.Mutex
	snapshot atomic.Pointer[Configuration]
}

// NewEngine loads the persisted configuration, seeding the store with the
// preset for seedLevel on first run.
func NewEngine(ctx context.Context, store Store, seedLevel shared.SecurityLevel, logger *slog.Logger, audits AuditRecorder) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		store:  store,
		logger: logger,
		audits: audits,
		clock:  func() time.Time { return time.Now().UTC() },
	}
	cfg, err := store.Load(ctx)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		cfg = PresetFor(seedLevel)
		cfg.UpdatedAt = e.clock()
		if err := store.Save(ctx, cfg); err != nil {
			return nil, fmt.Errorf("policy: seed configuration: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("policy: load configuration: %w", err)
	}
	e.snapshot.Store(&cfg)
	return e, nil
}

// Current returns the active configuration snapshot.
func (e *Engine) Current() Configuration {
	return (*e.snapshot.Load()).clone()
}

// IsModuleAllowed evaluates the admission gates in order; the first failing
// gate wins and is reported as the reason.
func (e *Engine) IsModuleAllowed(moduleName string, signatureValid bool, reputationScore, riskScore float64, developer string) (bool, string) {
	cfg := e.snapshot.Load()
	name := shared.NormalizeName(moduleName)

	for _, blocked := range cfg.BlockedModules {
		if shared.NormalizeName(blocked) == name {
			return false, "module is blocked"
		}
	}

	// A verified module skips the reputation and developer gates only. The
	// signature and risk gates always apply.
	autoApprove := cfg.AutoApproveVerified && signatureValid && reputationScore > 80

	if cfg.ActivePolicies[PolicySignedOnly] && !signatureValid {
		return false, "module signature is missing or invalid"
	}
	if !autoApprove && cfg.ActivePolicies[PolicyMinReputation] && reputationScore < cfg.MinReputationScore {
		return false, fmt.Sprintf("reputation too low: %.1f < %.1f", reputationScore, cfg.MinReputationScore)
	}
	if cfg.ActivePolicies[PolicyMaxRisk] && riskScore > cfg.MaxRiskScore {
		return false, "risk too high"
	}
	if !autoApprove && cfg.ActivePolicies[PolicyDevAllowlist] && len(cfg.AllowedDevelopers) > 0 {
		allowed := false
		for _, dev := range cfg.AllowedDevelopers {
			if dev == developer {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, "developer is not in the allowlist"
		}
	}
	if autoApprove {
		return true, "auto-approved verified module"
	}
	return true, "all policies passed"
}

// mutate applies fn to a copy of the configuration, persists it, and only
// then swaps the snapshot. The in-memory snapshot is the source of truth
// between persists.
func (e *Engine) mutate(ctx context.Context, change string, fn func(*Configuration)) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	next := (*e.snapshot.Load()).clone()
	fn(&next)
	next.Version++
	next.UpdatedAt = e.clock()

	if err := e.store.Save(ctx, next); err != nil {
		return fmt.Errorf("policy: persist configuration: %w", err)
	}
	e.snapshot.Store(&next)

	e.logger.Info("security configuration changed",
		slog.String("change", change), slog.Int64("version", next.Version))
	if e.audits != nil {
		e.audits.Record(audit.Event{
			Type:     audit.EventConfigChanged,
			Severity: audit.SeverityWarning,
			Success:  true,
			Details:  map[string]any{"change": change, "version": next.Version},
		})
	}
	return nil
}

// SetLevel swaps the entire policy bundle for the level's preset. Blocked
// modules survive a level switch; everything else comes from the preset.
func (e *Engine) SetLevel(ctx context.Context, level shared.SecurityLevel) error {
	return e.mutate(ctx, "set_level:"+string(level), func(cfg *Configuration) {
		blocked := cfg.BlockedModules
		signers := cfg.TrustedSigners
		*cfg = PresetFor(level)
		cfg.BlockedModules = blocked
		cfg.TrustedSigners = signers
	})
}

// BlockModule adds a module to the blocked list.
func (e *Engine) BlockModule(ctx context.Context, moduleName string) error {
	name := shared.NormalizeName(moduleName)
	return e.mutate(ctx, "block_module:"+name, func(cfg *Configuration) {
		for _, existing := range cfg.BlockedModules {
			if existing == name {
				return
			}
		}
		cfg.BlockedModules = append(cfg.BlockedModules, name)
	})
}

// UnblockModule removes a module from the blocked list.
func (e *Engine) UnblockModule(ctx context.Context, moduleName string) error {
	name := shared.NormalizeName(moduleName)
	return e.mutate(ctx, "unblock_module:"+name, func(cfg *Configuration) {
		kept := cfg.BlockedModules[:0]
		for _, existing := range cfg.BlockedModules {
			if existing != name {
				kept = append(kept, existing)
			}
		}
		cfg.BlockedModules = kept
	})
}

// AddTrustedSigner records a signer key id in the configuration.
func (e *Engine) AddTrustedSigner(ctx context.Context, keyID string) error {
	return e.mutate(ctx, "add_trusted_signer:"+keyID, func(cfg *Configuration) {
		for _, existing := range cfg.TrustedSigners {
			if existing == keyID {
				return
			}
		}
		cfg.TrustedSigners = append(cfg.TrustedSigners, keyID)
	})
}

// SetPolicy toggles one admission gate.
func (e *Engine) SetPolicy(ctx context.Context, policy Policy, enabled bool) error {
	return e.mutate(ctx, fmt.Sprintf("set_policy:%s=%t", policy, enabled), func(cfg *Configuration) {
		cfg.ActivePolicies[policy] = enabled
	})
}

// SetThresholds updates the reputation and risk bounds.
func (e *Engine) SetThresholds(ctx context.Context, minReputation, maxRisk float64) error {
	return e.mutate(ctx, "set_thresholds", func(cfg *Configuration) {
		cfg.MinReputationScore = minReputation
		cfg.MaxRiskScore = maxRisk
	})
}

// AllowDeveloper adds a developer id to the allowlist.
func (e *Engine) AllowDeveloper(ctx context.Context, developer string) error {
	return e.mutate(ctx, "allow_developer:"+developer, func(cfg *Configuration) {
		for _, existing := range cfg.AllowedDevelopers {
			if existing == developer {
				return
			}
		}
		cfg.AllowedDevelopers = append(cfg.AllowedDevelopers, developer)
	})
}
