package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modgate/modgate/internal/shared"
)

func newTestService(t *testing.T, owners ...string) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewPermissionCache(client, time.Minute, nil)
	return NewService(NewMemoryStore(), cache, owners, nil, nil)
}

func bootstrapped(t *testing.T, owners ...string) *Service {
	t.Helper()
	svc := newTestService(t, owners...)
	require.NoError(t, svc.Bootstrap(context.Background(), nil))
	return svc
}

func TestBootstrapHierarchyIsMonotonic(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()

	// Re-running bootstrap must be a no-op.
	require.NoError(t, svc.Bootstrap(ctx, nil))

	names := []string{RoleUser, RoleModerator, RoleAdmin, RoleSuperAdmin}
	var previous []string
	for _, name := range names {
		perms, err := svc.RolePermissions(ctx, name)
		require.NoError(t, err)
		for _, p := range previous {
			assert.Contains(t, perms, p, "%s must carry every permission of the role below it", name)
		}
		assert.GreaterOrEqual(t, len(perms), len(previous))
		previous = perms
	}
}

func TestBootstrapRegistersManifestPermissions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Bootstrap(ctx, []string{"weather.forecast.read"}))

	require.NoError(t, svc.AssignPermissionToRole(ctx, RoleUser, "weather.forecast.read", false))
	perms, err := svc.RolePermissions(ctx, RoleUser)
	require.NoError(t, err)
	assert.Contains(t, perms, "weather.forecast.read")
}

func TestOwnerBypassesAllChecks(t *testing.T) {
	svc := bootstrapped(t, "owner-1")
	ctx := context.Background()

	// Owners pass even for permissions nobody ever declared.
	ok, err := svc.UserHasPermission(ctx, "owner-1", "made.up.permission")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.UserHasPermission(ctx, "someone-else", shared.PermUsersViewList)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSuperAdminBypassesRoleChecks(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()
	require.NoError(t, svc.AssignRole(ctx, "user-1", RoleSuperAdmin))

	ok, err := svc.UserHasPermission(ctx, "user-1", shared.PermSecurityEdit)
	require.NoError(t, err)
	assert.True(t, ok)

	// SuperAdmin wins before the declaration lookup.
	ok, err = svc.UserHasPermission(ctx, "user-1", "made.up.permission")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestModeratorGrants(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()
	require.NoError(t, svc.AssignRole(ctx, "user-1", RoleModerator))

	ok, err := svc.UserHasPermission(ctx, "user-1", shared.PermUsersViewList)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.UserHasPermission(ctx, "user-1", shared.PermUsersDelete)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssignAndRemoveRoleAreIdempotent(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, "user-1", RoleUser))
	require.NoError(t, svc.AssignRole(ctx, "user-1", RoleUser))
	roles, err := svc.UserRoles(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, roles, 1)

	require.NoError(t, svc.RemoveRole(ctx, "user-1", RoleUser))
	require.NoError(t, svc.RemoveRole(ctx, "user-1", RoleUser))
	roles, err = svc.UserRoles(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestAssignUnknownRoleFails(t *testing.T) {
	svc := bootstrapped(t)
	err := svc.AssignRole(context.Background(), "user-1", "Ghost")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignPermissionAutoCreate(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()

	err := svc.AssignPermissionToRole(ctx, RoleUser, "modules.weather.invoke", false)
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, svc.AssignPermissionToRole(ctx, RoleUser, "modules.weather.invoke", true))
	require.NoError(t, svc.AssignRole(ctx, "user-1", RoleUser))
	ok, err := svc.UserHasPermission(ctx, "user-1", "modules.weather.invoke")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDirectGrantIndependentOfRoles(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()

	require.NoError(t, svc.GrantPermission(ctx, "user-1", shared.PermAuditView, false))
	ok, err := svc.UserHasPermission(ctx, "user-1", shared.PermAuditView)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.RevokePermission(ctx, "user-1", shared.PermAuditView))
	ok, err = svc.UserHasPermission(ctx, "user-1", shared.PermAuditView)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckDistinguishesNotFoundFromDenied(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()

	decision, err := svc.Check(ctx, "user-1", "never.declared")
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeNotFound, decision.Outcome)

	decision, err = svc.Check(ctx, "user-1", shared.PermUsersDelete)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeDenied, decision.Outcome)
	assert.NotEmpty(t, decision.Reason)
}

func TestDeleteDefaultRoleAlwaysFails(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()

	// Nobody holds User yet; deletion still fails.
	err := svc.DeleteRole(ctx, RoleUser)
	require.ErrorIs(t, err, shared.ErrDenied)
}

func TestDeleteHeldRoleFails(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "Reviewer", "reviews module submissions")
	require.NoError(t, err)
	require.NoError(t, svc.AssignRole(ctx, "user-1", "Reviewer"))

	err = svc.DeleteRole(ctx, "Reviewer")
	require.ErrorIs(t, err, shared.ErrDenied)

	require.NoError(t, svc.RemoveRole(ctx, "user-1", "Reviewer"))
	require.NoError(t, svc.DeleteRole(ctx, "Reviewer"))
	_, err = svc.GetRole(ctx, "Reviewer")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestNamesCompareCaseInsensitively(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, "user-1", "moderator"))
	ok, err := svc.UserHasPermission(ctx, "user-1", "CORE.Users.View_List")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMutationsInvalidateCachedGrants(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()

	// Prime the cache with an empty grant set.
	ok, err := svc.UserHasPermission(ctx, "user-1", shared.PermUsersViewList)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, svc.AssignRole(ctx, "user-1", RoleModerator))
	ok, err = svc.UserHasPermission(ctx, "user-1", shared.PermUsersViewList)
	require.NoError(t, err)
	assert.True(t, ok, "role assignment must be visible immediately")

	// Role-level mutations flush every cached user.
	require.NoError(t, svc.AssignPermissionToRole(ctx, RoleModerator, "modules.weather.invoke", true))
	ok, err = svc.UserHasPermission(ctx, "user-1", "modules.weather.invoke")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEffectivePermissionsMergesDirectAndRoleGrants(t *testing.T) {
	svc := bootstrapped(t)
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, "user-1", RoleUser))
	require.NoError(t, svc.GrantPermission(ctx, "user-1", shared.PermAuditView, false))

	perms, err := svc.EffectivePermissions(ctx, "user-1")
	require.NoError(t, err)
	assert.Contains(t, perms, shared.PermModulesView)
	assert.Contains(t, perms, shared.PermAuditView)
}
