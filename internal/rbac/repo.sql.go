package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modgate/modgate/internal/platform/db"
	"github.com/modgate/modgate/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the RBAC graph.
// Role and permission names are stored alongside a normalized key so lookups
// stay case-insensitive without losing the display form.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, name_key, description, is_default)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		role.Name, shared.NormalizeName(role.Name), role.Description, role.IsDefault)
	if err := row.Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, fmt.Errorf("rbac: role %q: %w", role.Name, shared.ErrAlreadyExists)
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

func (r *Repository) GetRole(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, is_default, created_at, updated_at
		FROM roles
		WHERE name_key = $1`, shared.NormalizeName(name))
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsDefault, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("rbac: role %q: %w", name, shared.ErrNotFound)
		}
		return Role{}, fmt.Errorf("rbac: get role: %w", err)
	}
	return role, nil
}

func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, is_default, created_at, updated_at
		FROM roles
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsDefault, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// DeleteRole removes the role-permission edges and the role in one
// transaction so a failure never leaves a half-deleted role behind.
func (r *Repository) DeleteRole(ctx context.Context, name string) error {
	key := shared.NormalizeName(name)
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM role_permissions
			WHERE role_id = (SELECT id FROM roles WHERE name_key = $1)`, key); err != nil {
			return fmt.Errorf("rbac: delete role permissions: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE name_key = $1`, key)
		if err != nil {
			return fmt.Errorf("rbac: delete role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("rbac: role %q: %w", name, shared.ErrNotFound)
		}
		return nil
	})
}

func (r *Repository) EnsurePermission(ctx context.Context, perm Permission) (Permission, error) {
	key := shared.NormalizeName(perm.Name)
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET
			description = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description ELSE permissions.description END
		RETURNING id, name, description`, key, perm.Description)
	if err := row.Scan(&perm.ID, &perm.Name, &perm.Description); err != nil {
		return Permission{}, fmt.Errorf("rbac: ensure permission: %w", err)
	}
	return perm, nil
}

func (r *Repository) GetPermission(ctx context.Context, name string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description FROM permissions WHERE name = $1`,
		shared.NormalizeName(name))
	var perm Permission
	if err := row.Scan(&perm.ID, &perm.Name, &perm.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("rbac: permission %q: %w", name, shared.ErrNotFound)
		}
		return Permission{}, fmt.Errorf("rbac: get permission: %w", err)
	}
	return perm, nil
}

func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Description); err != nil {
			return nil, fmt.Errorf("rbac: scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func (r *Repository) AttachPermission(ctx context.Context, roleName, permName string) error {
	role, err := r.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	perm, err := r.GetPermission(ctx, permName)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, role.ID, perm.ID)
	if err != nil {
		return fmt.Errorf("rbac: attach permission: %w", err)
	}
	return nil
}

func (r *Repository) DetachPermission(ctx context.Context, roleName, permName string) error {
	role, err := r.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = $1
		  AND permission_id = (SELECT id FROM permissions WHERE name = $2)`,
		role.ID, shared.NormalizeName(permName))
	if err != nil {
		return fmt.Errorf("rbac: detach permission: %w", err)
	}
	return nil
}

func (r *Repository) RolePermissions(ctx context.Context, roleName string) ([]string, error) {
	role, err := r.GetRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name`, role.ID)
	if err != nil {
		return nil, fmt.Errorf("rbac: role permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("rbac: scan role permission: %w", err)
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

func (r *Repository) AssignRole(ctx context.Context, userID, roleName string) error {
	role, err := r.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, role.ID)
	if err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	return nil
}

func (r *Repository) RemoveRole(ctx context.Context, userID, roleName string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM user_roles
		WHERE user_id = $1
		  AND role_id = (SELECT id FROM roles WHERE name_key = $2)`,
		userID, shared.NormalizeName(roleName))
	if err != nil {
		return fmt.Errorf("rbac: remove role: %w", err)
	}
	return nil
}

func (r *Repository) UserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.name_key
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.name_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: user roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("rbac: scan user role: %w", err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func (r *Repository) RoleHolderCount(ctx context.Context, roleName string) (int64, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE r.name_key = $1`, shared.NormalizeName(roleName))
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("rbac: role holder count: %w", err)
	}
	return count, nil
}

func (r *Repository) GrantPermission(ctx context.Context, userID, permName string) error {
	perm, err := r.GetPermission(ctx, permName)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_permissions (user_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, perm.ID)
	if err != nil {
		return fmt.Errorf("rbac: grant permission: %w", err)
	}
	return nil
}

func (r *Repository) RevokePermission(ctx context.Context, userID, permName string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM user_permissions
		WHERE user_id = $1
		  AND permission_id = (SELECT id FROM permissions WHERE name = $2)`,
		userID, shared.NormalizeName(permName))
	if err != nil {
		return fmt.Errorf("rbac: revoke permission: %w", err)
	}
	return nil
}

func (r *Repository) UserDirectPermissions(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.name
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1
		ORDER BY p.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: user permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("rbac: scan user permission: %w", err)
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}
