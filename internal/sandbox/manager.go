// Package sandbox binds admitted modules to permission profiles and answers
// capability checks. The "sandbox" is a policy abstraction: it scopes what
// the host will do on a module's behalf, not an OS-level container.
package sandbox

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modgate/modgate/internal/audit"
	"github.com/modgate/modgate/internal/shared"
)

// Violation records one denied capability check.
type Violation struct {
	ModuleName string     `json:"module_name"`
	Capability Capability `json:"capability"`
	Detail     string     `json:"detail"`
	Severity   string     `json:"severity"`
	At         time.Time  `json:"at"`
}

// AuditRecorder receives audit events for denied checks.
type AuditRecorder interface {
	Record(event audit.Event)
}

type box struct {
	id        uuid.UUID
	level     shared.SecurityLevel
	profile   Profile
	createdAt time.Time
}

// Manager owns the module → sandbox bindings. A module is Unsandboxed until
// CreateSandbox, Sandboxed(profile) until DestroySandbox, and the bound
// profile changes only through UpdateSecurityLevel.
type Manager struct {
	logger *slog.Logger
	audits AuditRecorder
	clock  func() time.Time

	mu         sync.RWMutex
	boxes      map[string]*box
	violations []Violation
}

// NewManager constructs a Manager. The audit recorder may be nil.
func NewManager(logger *slog.Logger, audits AuditRecorder) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		logger: logger,
		audits: audits,
		clock:  func() time.Time { return time.Now().UTC() },
		boxes:  make(map[string]*box),
	}
}

// CreateSandbox binds the module to the profile preset for level. It returns
// false without side effects when a sandbox already exists.
func (m *Manager) CreateSandbox(moduleName string, level shared.SecurityLevel) bool {
	name := shared.NormalizeName(moduleName)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.boxes[name]; exists {
		return false
	}
	m.boxes[name] = &box{
		id:        uuid.New(),
		level:     level,
		profile:   ProfileForLevel(level),
		createdAt: m.clock(),
	}
	m.logger.Info("sandbox created",
		slog.String("module", name), slog.String("level", string(level)))
	return true
}

// Profile returns the profile currently bound to the module.
func (m *Manager) Profile(moduleName string) (Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.boxes[shared.NormalizeName(moduleName)]
	if !ok {
		return Profile{}, false
	}
	return b.profile, true
}

// CheckPermission answers whether the module's bound profile grants the
// capability. Every denial is recorded as a violation and audited; a module
// without a sandbox is always denied.
func (m *Manager) CheckPermission(moduleName string, capability Capability) bool {
	name := shared.NormalizeName(moduleName)
	m.mu.RLock()
	b, ok := m.boxes[name]
	m.mu.RUnlock()

	if ok && b.profile.Allows(capability) {
		return true
	}

	detail := "capability not granted by profile"
	if !ok {
		detail = "module has no sandbox"
	}
	violation := Violation{
		ModuleName: name,
		Capability: capability,
		Detail:     detail,
		Severity:   "warning",
		At:         m.clock(),
	}
	m.mu.Lock()
	m.violations = append(m.violations, violation)
	m.mu.Unlock()

	m.logger.Warn("sandbox permission denied",
		slog.String("module", name), slog.String("capability", string(capability)))
	if m.audits != nil {
		m.audits.Record(audit.Event{
			Type:       audit.EventSandboxViolation,
			ModuleName: name,
			Severity:   audit.SeverityWarning,
			Success:    false,
			Details:    map[string]any{"capability": string(capability), "detail": detail},
		})
	}
	return false
}

// UpdateSecurityLevel swaps the bound profile in place. It fails when the
// module has no sandbox; there is no implicit create.
func (m *Manager) UpdateSecurityLevel(moduleName string, level shared.SecurityLevel) bool {
	name := shared.NormalizeName(moduleName)
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boxes[name]
	if !ok {
		return false
	}
	b.level = level
	b.profile = ProfileForLevel(level)
	m.logger.Info("sandbox level updated",
		slog.String("module", name), slog.String("level", string(level)))
	return true
}

// DestroySandbox removes the module's sandbox. Destroying a module without a
// sandbox succeeds.
func (m *Manager) DestroySandbox(moduleName string) bool {
	name := shared.NormalizeName(moduleName)
	m.mu.Lock()
	delete(m.boxes, name)
	m.mu.Unlock()
	m.logger.Info("sandbox destroyed", slog.String("module", name))
	return true
}

// Violations returns a copy of the recorded violations.
func (m *Manager) Violations() []Violation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

// Active returns the number of live sandboxes.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.boxes)
}
