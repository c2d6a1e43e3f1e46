package policy

import (
	"time"

	"github.com/modgate/modgate/internal/shared"
)

// Policy names toggleable admission gates.
type Policy string

const (
	PolicySignedOnly    Policy = "signed_only"
	PolicyMinReputation Policy = "min_reputation"
	PolicyMaxRisk       Policy = "max_risk"
	PolicyDevAllowlist  Policy = "developer_allowlist"
)

// Configuration is the single process-wide security configuration. It is
// mutated only through Engine operations and persisted on every mutation.
type Configuration struct {
	Level               shared.SecurityLevel `json:"level"`
	ActivePolicies      map[Policy]bool      `json:"active_policies"`
	MinReputationScore  float64              `json:"min_reputation_score"`
	MaxRiskScore        float64              `json:"max_risk_score"`
	TrustedSigners      []string             `json:"trusted_signers"`
	BlockedModules      []string             `json:"blocked_modules"`
	AllowedDevelopers   []string             `json:"allowed_developers"`
	AutoApproveVerified bool                 `json:"auto_approve_verified"`
	Version             int64                `json:"version"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// clone deep-copies the configuration so snapshot readers never observe a
// mutation in progress.
func (c Configuration) clone() Configuration {
	out := c
	out.ActivePolicies = make(map[Policy]bool, len(c.ActivePolicies))
	for k, v := range c.ActivePolicies {
		out.ActivePolicies[k] = v
	}
	out.TrustedSigners = append([]string(nil), c.TrustedSigners...)
	out.BlockedModules = append([]string(nil), c.BlockedModules...)
	out.AllowedDevelopers = append([]string(nil), c.AllowedDevelopers...)
	return out
}

// PresetFor returns the whole policy bundle for a security level. Switching
// levels swaps this bundle atomically; nothing is merged from the previous
// level.
func PresetFor(level shared.SecurityLevel) Configuration {
	switch level {
	case shared.LevelParanoid:
		return Configuration{
			Level: level,
			ActivePolicies: map[Policy]bool{
				PolicySignedOnly:    true,
				PolicyMinReputation: true,
				PolicyMaxRisk:       true,
				PolicyDevAllowlist:  true,
			},
			MinReputationScore: 80,
			MaxRiskScore:       10,
		}
	case shared.LevelStrict:
		return Configuration{
			Level: level,
			ActivePolicies: map[Policy]bool{
				PolicySignedOnly:    true,
				PolicyMinReputation: true,
				PolicyMaxRisk:       true,
			},
			MinReputationScore: 60,
			MaxRiskScore:       30,
		}
	case shared.LevelPermissive:
		return Configuration{
			Level: level,
			ActivePolicies: map[Policy]bool{
				PolicyMaxRisk: true,
			},
			MinReputationScore:  20,
			MaxRiskScore:        70,
			AutoApproveVerified: true,
		}
	default: // moderate
		return Configuration{
			Level: shared.LevelModerate,
			ActivePolicies: map[Policy]bool{
				PolicyMinReputation: true,
				PolicyMaxRisk:       true,
			},
			MinReputationScore:  40,
			MaxRiskScore:        50,
			AutoApproveVerified: true,
		}
	}
}
