package shared

import "fmt"

// ModuleAdmissionLockKey builds redis keys for module admission critical sections.
func ModuleAdmissionLockKey(moduleName string) string {
	return fmt.Sprintf("modgate:admission:%s:lock", NormalizeName(moduleName))
}

// PermissionCacheKey builds redis keys for cached effective permission sets.
func PermissionCacheKey(userID string) string {
	return fmt.Sprintf("modgate:rbac:perms:%s", userID)
}
