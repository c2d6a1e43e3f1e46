package rbac

import (
	"time"

	"github.com/modgate/modgate/internal/shared"
)

// Built-in roles created by Bootstrap. Each carries a strict superset of the
// permissions of the role before it.
const (
	RoleUser       = "User"
	RoleModerator  = "Moderator"
	RoleAdmin      = "Admin"
	RoleSuperAdmin = "SuperAdmin"
)

// Role is a named bundle of permissions.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a declared capability name. Permissions must be declared
// before they can be granted, which keeps typos from minting phantom scopes.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type defaultRole struct {
	name        string
	description string
	permissions []string
}

// defaultRoles returns the bootstrap hierarchy. The slices are built
// incrementally so the superset property holds by construction.
func defaultRoles() []defaultRole {
	user := []string{
		shared.PermModulesView,
	}
	moderator := append(append([]string{}, user...),
		shared.PermUsersViewList,
		shared.PermAuditView,
	)
	admin := append(append([]string{}, moderator...),
		shared.PermUsersDelete,
		shared.PermRolesView,
		shared.PermRolesEdit,
		shared.PermModulesInstall,
		shared.PermModulesDisable,
		shared.PermSecurityView,
		shared.PermAuditExport,
	)
	return []defaultRole{
		{RoleUser, "Regular platform user", user},
		{RoleModerator, "Moderates users and reviews audit history", moderator},
		{RoleAdmin, "Administers users, roles and module lifecycle", admin},
		{RoleSuperAdmin, "Full access to every platform capability", shared.CoreScopes()},
	}
}
