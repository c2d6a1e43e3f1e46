package sandbox

import "github.com/modgate/modgate/internal/shared"

// Capability names a boolean grant in a permission profile.
type Capability string

const (
	CapDatabase       Capability = "database"
	CapCache          Capability = "cache"
	CapFilesystem     Capability = "filesystem"
	CapNetwork        Capability = "network"
	CapSystemCommands Capability = "system_commands"
	CapUserData       Capability = "user_data"
	CapAdminFunctions Capability = "admin_functions"
)

// Profile is the concrete capability and resource bundle a sandboxed module
// is bound to.
type Profile struct {
	CanAccessDatabase        bool `json:"can_access_database"`
	CanAccessCache           bool `json:"can_access_cache"`
	CanAccessFilesystem      bool `json:"can_access_filesystem"`
	CanMakeNetworkRequests   bool `json:"can_make_network_requests"`
	CanExecuteSystemCommands bool `json:"can_execute_system_commands"`
	CanModifyUserData        bool `json:"can_modify_user_data"`
	CanAccessAdminFunctions  bool `json:"can_access_admin_functions"`
	MaxMemoryMB              int  `json:"max_memory_mb"`
	MaxExecutionTimeSeconds  int  `json:"max_execution_time_seconds"`
}

// Allows reports whether the profile grants a capability.
func (p Profile) Allows(capability Capability) bool {
	switch capability {
	case CapDatabase:
		return p.CanAccessDatabase
	case CapCache:
		return p.CanAccessCache
	case CapFilesystem:
		return p.CanAccessFilesystem
	case CapNetwork:
		return p.CanMakeNetworkRequests
	case CapSystemCommands:
		return p.CanExecuteSystemCommands
	case CapUserData:
		return p.CanModifyUserData
	case CapAdminFunctions:
		return p.CanAccessAdminFunctions
	default:
		// Unknown capabilities are never granted.
		return false
	}
}

// ProfileForLevel returns the preset profile bound at sandbox creation for a
// security level.
func ProfileForLevel(level shared.SecurityLevel) Profile {
	switch level {
	case shared.LevelParanoid:
		return Profile{
			CanAccessCache:          true,
			MaxMemoryMB:             64,
			MaxExecutionTimeSeconds: 5,
		}
	case shared.LevelStrict:
		return Profile{
			CanAccessDatabase:       true,
			CanAccessCache:          true,
			MaxMemoryMB:             128,
			MaxExecutionTimeSeconds: 10,
		}
	case shared.LevelPermissive:
		return Profile{
			CanAccessDatabase:       true,
			CanAccessCache:          true,
			CanAccessFilesystem:     true,
			CanMakeNetworkRequests:  true,
			CanModifyUserData:       true,
			MaxMemoryMB:             512,
			MaxExecutionTimeSeconds: 60,
		}
	default: // moderate
		return Profile{
			CanAccessDatabase:       true,
			CanAccessCache:          true,
			CanMakeNetworkRequests:  true,
			CanModifyUserData:       true,
			MaxMemoryMB:             256,
			MaxExecutionTimeSeconds: 30,
		}
	}
}
