package admission

import (
	"context"

	"github.com/modgate/modgate/internal/sandbox"
)

// Manifest is the self-description a module ships with. Permissions lists
// the permission names the module wants the host to declare; declaring them
// at admission time keeps dispatch-time checks against known names only.
type Manifest struct {
	Name        string   `json:"name" validate:"required,min=2,max=128"`
	Version     string   `json:"version" validate:"required,max=64"`
	DeveloperID string   `json:"developer_id" validate:"required,max=128"`
	Permissions []string `json:"permissions" validate:"dive,min=2,max=128"`
}

// Facts is the historical knowledge the host has about a module, fed into
// reputation scoring. A brand-new module has zero facts and scores
// accordingly.
type Facts struct {
	CodeQuality     float64
	UserFeedback    float64
	AgeDays         int
	Violations      int
	UpdatesLastYear int
}

// FactSource supplies historical facts for a module. Lookup failures are
// treated as "no history", never as admission errors.
type FactSource interface {
	ModuleFacts(ctx context.Context, moduleName, developerID string) (Facts, error)
}

// Decision is the outcome of VerifyAndAdmit. Handle is non-nil only when
// Allowed is true; it is the sole way to perform capability checks for the
// admitted module.
type Decision struct {
	Allowed         bool
	Reason          string
	SignatureValid  bool
	RiskScore       float64
	ReputationScore float64
	Profile         sandbox.Profile
	Handle          *ModuleHandle
}
