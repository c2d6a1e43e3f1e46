package shared

// Core platform permissions. Module manifests contribute additional
// permissions at load time; these are the built-in set registered during
// RBAC bootstrap.
const (
	PermUsersViewList = "core.users.view_list"
	PermUsersDelete   = "core.users.delete"

	PermRolesView = "core.roles.view"
	PermRolesEdit = "core.roles.edit"

	PermModulesView    = "core.modules.view"
	PermModulesInstall = "core.modules.install"
	PermModulesDisable = "core.modules.disable"

	PermSecurityView  = "core.security.view"
	PermSecurityEdit  = "core.security.edit"
	PermAuditView     = "core.audit.view"
	PermAuditExport   = "core.audit.export"
	PermSignersManage = "core.security.signers"
)

// CoreScopes lists all built-in permissions.
func CoreScopes() []string {
	return []string{
		PermUsersViewList,
		PermUsersDelete,
		PermRolesView,
		PermRolesEdit,
		PermModulesView,
		PermModulesInstall,
		PermModulesDisable,
		PermSecurityView,
		PermSecurityEdit,
		PermAuditView,
		PermAuditExport,
		PermSignersManage,
	}
}
