package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/modgate/modgate/internal/audit"
	"github.com/modgate/modgate/internal/shared"
)

// AuditRecorder receives audit events for role and permission mutations.
type AuditRecorder interface {
	Record(event audit.Event)
}

// Service is the single source of truth for "can this principal do X".
// Reads are safe for unbounded concurrent callers; every mutation is one
// atomic store operation followed by cache invalidation.
type Service struct {
	store  Store
	cache  *PermissionCache
	owners map[string]struct{}
	logger *slog.Logger
	audits AuditRecorder
}

// NewService builds the RBAC service. The owner set comes from configuration,
// never from storage; cache and audits may be nil.
func NewService(store Store, cache *PermissionCache, owners []string, logger *slog.Logger, audits AuditRecorder) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ownerSet := make(map[string]struct{}, len(owners))
	for _, id := range owners {
		id = strings.TrimSpace(id)
		if id != "" {
			ownerSet[id] = struct{}{}
		}
	}
	return &Service{
		store:  store,
		cache:  cache,
		owners: ownerSet,
		logger: logger,
		audits: audits,
	}
}

// IsOwner reports whether the user is in the configured owner set. Owners
// bypass every role and permission check.
func (s *Service) IsOwner(userID string) bool {
	_, ok := s.owners[strings.TrimSpace(userID)]
	return ok
}

// Bootstrap creates the default role hierarchy and registers every built-in
// permission plus the permissions declared by active module manifests. It is
// idempotent and safe to re-run on every startup.
func (s *Service) Bootstrap(ctx context.Context, manifestPermissions []string) error {
	for _, name := range shared.CoreScopes() {
		if _, err := s.store.EnsurePermission(ctx, Permission{Name: name, Description: "built-in platform permission"}); err != nil {
			return fmt.Errorf("rbac: bootstrap permission %q: %w", name, err)
		}
	}
	if err := s.RegisterPermissions(ctx, manifestPermissions); err != nil {
		return err
	}
	for _, def := range defaultRoles() {
		_, err := s.store.GetRole(ctx, def.name)
		if errors.Is(err, shared.ErrNotFound) {
			_, err = s.store.CreateRole(ctx, Role{Name: def.name, Description: def.description, IsDefault: true})
			if err != nil && !errors.Is(err, shared.ErrAlreadyExists) {
				return fmt.Errorf("rbac: bootstrap role %q: %w", def.name, err)
			}
		} else if err != nil {
			return fmt.Errorf("rbac: bootstrap role %q: %w", def.name, err)
		}
		for _, perm := range def.permissions {
			if err := s.store.AttachPermission(ctx, def.name, perm); err != nil {
				return fmt.Errorf("rbac: bootstrap attach %q to %q: %w", perm, def.name, err)
			}
		}
	}
	s.cache.invalidateAll(ctx)
	s.logger.Info("rbac bootstrap complete",
		slog.Int("core_permissions", len(shared.CoreScopes())),
		slog.Int("manifest_permissions", len(manifestPermissions)))
	return nil
}

// RegisterPermissions declares permission names without granting them to
// anyone. Used at module admission to register manifest permissions.
func (s *Service) RegisterPermissions(ctx context.Context, names []string) error {
	for _, name := range names {
		name = shared.NormalizeName(name)
		if name == "" {
			continue
		}
		if _, err := s.store.EnsurePermission(ctx, Permission{Name: name, Description: "declared by module manifest"}); err != nil {
			return fmt.Errorf("rbac: register permission %q: %w", name, err)
		}
	}
	return nil
}

// CreateRole adds a non-default role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("rbac: role name required: %w", shared.ErrInvalidInput)
	}
	role, err := s.store.CreateRole(ctx, Role{Name: name, Description: strings.TrimSpace(description)})
	if err != nil {
		return Role{}, err
	}
	s.logger.Info("role created", slog.String("role", role.Name))
	return role, nil
}

// GetRole fetches a role by name, case-insensitively.
func (s *Service) GetRole(ctx context.Context, name string) (Role, error) {
	return s.store.GetRole(ctx, name)
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// ListPermissions returns all declared permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// RolePermissions returns the permission names attached to a role.
func (s *Service) RolePermissions(ctx context.Context, roleName string) ([]string, error) {
	return s.store.RolePermissions(ctx, roleName)
}

// DeleteRole removes a role. Built-in default roles can never be deleted,
// and a role still held by any user must be unassigned first. The removal
// cascades role-permission edges before the role itself.
func (s *Service) DeleteRole(ctx context.Context, name string) error {
	role, err := s.store.GetRole(ctx, name)
	if err != nil {
		return err
	}
	if role.IsDefault {
		return fmt.Errorf("rbac: role %q is a built-in default: %w", role.Name, shared.ErrDenied)
	}
	holders, err := s.store.RoleHolderCount(ctx, role.Name)
	if err != nil {
		return err
	}
	if holders > 0 {
		return fmt.Errorf("rbac: role %q is held by %d user(s): %w", role.Name, holders, shared.ErrDenied)
	}
	if err := s.store.DeleteRole(ctx, role.Name); err != nil {
		return err
	}
	s.cache.invalidateAll(ctx)
	s.record(audit.EventRoleDeleted, "", map[string]any{"role": role.Name}, true)
	s.logger.Info("role deleted", slog.String("role", role.Name))
	return nil
}

// AssignRole grants a role to a user. Assigning an already-held role
// succeeds without side effects.
func (s *Service) AssignRole(ctx context.Context, userID, roleName string) error {
	role, err := s.store.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.store.AssignRole(ctx, userID, role.Name); err != nil {
		return err
	}
	s.cache.invalidate(ctx, userID)
	s.record(audit.EventRoleAssigned, userID, map[string]any{"role": role.Name}, true)
	return nil
}

// RemoveRole revokes a role from a user. Removing an unheld role succeeds
// without side effects.
func (s *Service) RemoveRole(ctx context.Context, userID, roleName string) error {
	role, err := s.store.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.store.RemoveRole(ctx, userID, role.Name); err != nil {
		return err
	}
	s.cache.invalidate(ctx, userID)
	s.record(audit.EventRoleRemoved, userID, map[string]any{"role": role.Name}, true)
	return nil
}

// AssignPermissionToRole attaches a permission to a role. With autoCreate
// false an undeclared permission name fails with ErrNotFound instead of
// silently minting a new permission.
func (s *Service) AssignPermissionToRole(ctx context.Context, roleName, permName string, autoCreate bool) error {
	role, err := s.store.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.ensureDeclared(ctx, permName, autoCreate); err != nil {
		return err
	}
	if err := s.store.AttachPermission(ctx, role.Name, permName); err != nil {
		return err
	}
	s.cache.invalidateAll(ctx)
	s.record(audit.EventConfigChanged, "", map[string]any{"role": role.Name, "permission": shared.NormalizeName(permName), "action": "attach"}, true)
	return nil
}

// RemovePermissionFromRole detaches a permission from a role.
func (s *Service) RemovePermissionFromRole(ctx context.Context, roleName, permName string) error {
	role, err := s.store.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.store.DetachPermission(ctx, role.Name, permName); err != nil {
		return err
	}
	s.cache.invalidateAll(ctx)
	s.record(audit.EventConfigChanged, "", map[string]any{"role": role.Name, "permission": shared.NormalizeName(permName), "action": "detach"}, true)
	return nil
}

// GrantPermission gives a user a direct permission grant, independent of any
// role.
func (s *Service) GrantPermission(ctx context.Context, userID, permName string, autoCreate bool) error {
	if err := s.ensureDeclared(ctx, permName, autoCreate); err != nil {
		return err
	}
	if err := s.store.GrantPermission(ctx, userID, permName); err != nil {
		return err
	}
	s.cache.invalidate(ctx, userID)
	s.record(audit.EventConfigChanged, userID, map[string]any{"permission": shared.NormalizeName(permName), "action": "grant"}, true)
	return nil
}

// RevokePermission removes a direct permission grant from a user.
func (s *Service) RevokePermission(ctx context.Context, userID, permName string) error {
	if err := s.store.RevokePermission(ctx, userID, permName); err != nil {
		return err
	}
	s.cache.invalidate(ctx, userID)
	s.record(audit.EventConfigChanged, userID, map[string]any{"permission": shared.NormalizeName(permName), "action": "revoke"}, true)
	return nil
}

// Check resolves whether a user may exercise a permission, keeping "does not
// exist" distinct from "exists but denied". Resolution short-circuits in
// order: configured owner set, the SuperAdmin role, a direct grant, then any
// held role carrying the permission. Names compare case-insensitively.
func (s *Service) Check(ctx context.Context, userID, permName string) (shared.Decision, error) {
	if s.IsOwner(userID) {
		return shared.Allow(), nil
	}
	grants, err := s.resolveGrants(ctx, userID)
	if err != nil {
		return shared.Decision{}, err
	}
	superAdmin := shared.NormalizeName(RoleSuperAdmin)
	for _, role := range grants.Roles {
		if role == superAdmin {
			return shared.Allow(), nil
		}
	}
	want := shared.NormalizeName(permName)
	if _, err := s.store.GetPermission(ctx, want); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("permission " + want), nil
		}
		return shared.Decision{}, err
	}
	for _, perm := range grants.Direct {
		if perm == want {
			return shared.Allow(), nil
		}
	}
	for _, perm := range grants.ByRole {
		if perm == want {
			return shared.Allow(), nil
		}
	}
	return shared.Deny("permission " + want + " not granted"), nil
}

// UserHasPermission is the boolean view of Check used by dispatchers on the
// hot path. An undeclared permission reads as false.
func (s *Service) UserHasPermission(ctx context.Context, userID, permName string) (bool, error) {
	decision, err := s.Check(ctx, userID, permName)
	if err != nil {
		return false, err
	}
	return decision.Allowed(), nil
}

// UserRoles returns the roles held by a user.
func (s *Service) UserRoles(ctx context.Context, userID string) ([]string, error) {
	return s.store.UserRoles(ctx, userID)
}

// EffectivePermissions returns the deduplicated union of a user's direct and
// role-derived permission names, sorted.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	grants, err := s.resolveGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(grants.Direct)+len(grants.ByRole))
	for _, perm := range grants.Direct {
		set[perm] = struct{}{}
	}
	for _, perm := range grants.ByRole {
		set[perm] = struct{}{}
	}
	perms := make([]string, 0, len(set))
	for perm := range set {
		perms = append(perms, perm)
	}
	sort.Strings(perms)
	return perms, nil
}

func (s *Service) resolveGrants(ctx context.Context, userID string) (cachedGrants, error) {
	if grants, ok := s.cache.get(ctx, userID); ok {
		return grants, nil
	}
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return cachedGrants{}, err
	}
	direct, err := s.store.UserDirectPermissions(ctx, userID)
	if err != nil {
		return cachedGrants{}, err
	}
	byRole := make(map[string]struct{})
	for _, role := range roles {
		perms, err := s.store.RolePermissions(ctx, role)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return cachedGrants{}, err
		}
		for _, perm := range perms {
			byRole[perm] = struct{}{}
		}
	}
	grants := cachedGrants{Roles: roles, Direct: direct, ByRole: sortedKeys(byRole)}
	s.cache.put(ctx, userID, grants)
	return grants, nil
}

func (s *Service) ensureDeclared(ctx context.Context, permName string, autoCreate bool) error {
	_, err := s.store.GetPermission(ctx, permName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if !autoCreate {
		return fmt.Errorf("rbac: permission %q is not declared: %w", permName, shared.ErrNotFound)
	}
	_, err = s.store.EnsurePermission(ctx, Permission{Name: permName})
	return err
}

func (s *Service) record(eventType audit.EventType, userID string, details map[string]any, success bool) {
	if s.audits == nil {
		return
	}
	s.audits.Record(audit.Event{
		Type:    eventType,
		UserID:  userID,
		Details: details,
		Success: success,
	})
}
