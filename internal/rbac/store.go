package rbac

import "context"

// Store is the persistence contract for roles, permissions and their edges.
// Implementations must treat role and permission names case-insensitively
// and keep every mutation atomic; the service layers idempotency and
// authorization semantics on top.
type Store interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	// DeleteRole removes the role-permission edges and then the role itself
	// in one transaction.
	DeleteRole(ctx context.Context, name string) error

	EnsurePermission(ctx context.Context, perm Permission) (Permission, error)
	GetPermission(ctx context.Context, name string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)

	AttachPermission(ctx context.Context, roleName, permName string) error
	DetachPermission(ctx context.Context, roleName, permName string) error
	RolePermissions(ctx context.Context, roleName string) ([]string, error)

	AssignRole(ctx context.Context, userID, roleName string) error
	RemoveRole(ctx context.Context, userID, roleName string) error
	UserRoles(ctx context.Context, userID string) ([]string, error)
	RoleHolderCount(ctx context.Context, roleName string) (int64, error)

	GrantPermission(ctx context.Context, userID, permName string) error
	RevokePermission(ctx context.Context, userID, permName string) error
	UserDirectPermissions(ctx context.Context, userID string) ([]string, error)
}
