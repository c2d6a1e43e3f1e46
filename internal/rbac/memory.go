package rbac

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/modgate/modgate/internal/shared"
)

// MemoryStore is an in-memory Store used in tests and single-process setups.
type MemoryStore struct {
	mu         sync.RWMutex
	roles      map[string]Role       // key: normalized name
	perms      map[string]Permission // key: normalized name
	rolePerms  map[string]map[string]struct{}
	userRoles  map[string]map[string]struct{}
	userPerms  map[string]map[string]struct{}
	nextRoleID int64
	nextPermID int64
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:     make(map[string]Role),
		perms:     make(map[string]Permission),
		rolePerms: make(map[string]map[string]struct{}),
		userRoles: make(map[string]map[string]struct{}),
		userPerms: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) CreateRole(_ context.Context, role Role) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := shared.NormalizeName(role.Name)
	if _, ok := m.roles[key]; ok {
		return Role{}, fmt.Errorf("rbac: role %q: %w", role.Name, shared.ErrAlreadyExists)
	}
	m.nextRoleID++
	role.ID = m.nextRoleID
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	m.roles[key] = role
	m.rolePerms[key] = make(map[string]struct{})
	return role, nil
}

func (m *MemoryStore) GetRole(_ context.Context, name string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[shared.NormalizeName(name)]
	if !ok {
		return Role{}, fmt.Errorf("rbac: role %q: %w", name, shared.ErrNotFound)
	}
	return role, nil
}

func (m *MemoryStore) ListRoles(_ context.Context) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roles := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (m *MemoryStore) DeleteRole(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := shared.NormalizeName(name)
	if _, ok := m.roles[key]; !ok {
		return fmt.Errorf("rbac: role %q: %w", name, shared.ErrNotFound)
	}
	delete(m.rolePerms, key)
	delete(m.roles, key)
	return nil
}

func (m *MemoryStore) EnsurePermission(_ context.Context, perm Permission) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := shared.NormalizeName(perm.Name)
	if existing, ok := m.perms[key]; ok {
		if perm.Description != "" && perm.Description != existing.Description {
			existing.Description = perm.Description
			m.perms[key] = existing
		}
		return m.perms[key], nil
	}
	m.nextPermID++
	perm.ID = m.nextPermID
	perm.Name = key
	m.perms[key] = perm
	return perm, nil
}

func (m *MemoryStore) GetPermission(_ context.Context, name string) (Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	perm, ok := m.perms[shared.NormalizeName(name)]
	if !ok {
		return Permission{}, fmt.Errorf("rbac: permission %q: %w", name, shared.ErrNotFound)
	}
	return perm, nil
}

func (m *MemoryStore) ListPermissions(_ context.Context) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	perms := make([]Permission, 0, len(m.perms))
	for _, perm := range m.perms {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

func (m *MemoryStore) AttachPermission(_ context.Context, roleName, permName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	roleKey := shared.NormalizeName(roleName)
	permKey := shared.NormalizeName(permName)
	if _, ok := m.roles[roleKey]; !ok {
		return fmt.Errorf("rbac: role %q: %w", roleName, shared.ErrNotFound)
	}
	if _, ok := m.perms[permKey]; !ok {
		return fmt.Errorf("rbac: permission %q: %w", permName, shared.ErrNotFound)
	}
	m.rolePerms[roleKey][permKey] = struct{}{}
	return nil
}

func (m *MemoryStore) DetachPermission(_ context.Context, roleName, permName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	roleKey := shared.NormalizeName(roleName)
	if _, ok := m.roles[roleKey]; !ok {
		return fmt.Errorf("rbac: role %q: %w", roleName, shared.ErrNotFound)
	}
	delete(m.rolePerms[roleKey], shared.NormalizeName(permName))
	return nil
}

func (m *MemoryStore) RolePermissions(_ context.Context, roleName string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roleKey := shared.NormalizeName(roleName)
	if _, ok := m.roles[roleKey]; !ok {
		return nil, fmt.Errorf("rbac: role %q: %w", roleName, shared.ErrNotFound)
	}
	return sortedKeys(m.rolePerms[roleKey]), nil
}

func (m *MemoryStore) AssignRole(_ context.Context, userID, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	roleKey := shared.NormalizeName(roleName)
	if _, ok := m.roles[roleKey]; !ok {
		return fmt.Errorf("rbac: role %q: %w", roleName, shared.ErrNotFound)
	}
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[string]struct{})
	}
	m.userRoles[userID][roleKey] = struct{}{}
	return nil
}

func (m *MemoryStore) RemoveRole(_ context.Context, userID, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userRoles[userID], shared.NormalizeName(roleName))
	return nil
}

func (m *MemoryStore) UserRoles(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.userRoles[userID]), nil
}

func (m *MemoryStore) RoleHolderCount(_ context.Context, roleName string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roleKey := shared.NormalizeName(roleName)
	var count int64
	for _, roles := range m.userRoles {
		if _, ok := roles[roleKey]; ok {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) GrantPermission(_ context.Context, userID, permName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	permKey := shared.NormalizeName(permName)
	if _, ok := m.perms[permKey]; !ok {
		return fmt.Errorf("rbac: permission %q: %w", permName, shared.ErrNotFound)
	}
	if m.userPerms[userID] == nil {
		m.userPerms[userID] = make(map[string]struct{})
	}
	m.userPerms[userID][permKey] = struct{}{}
	return nil
}

func (m *MemoryStore) RevokePermission(_ context.Context, userID, permName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userPerms[userID], shared.NormalizeName(permName))
	return nil
}

func (m *MemoryStore) UserDirectPermissions(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.userPerms[userID]), nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
