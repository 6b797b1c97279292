package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gemin-erp/gemin-erp/internal/shared"
)

// PGRepository implements Repository using PostgreSQL. Administrative writes
// rely on unique keys plus ON CONFLICT for serialization; concurrent grants of
// the same key collapse into one row.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// UserByID fetches the authorization projection of a user.
func (r *PGRepository) UserByID(ctx context.Context, id int64) (User, error) {
	const query = `
		SELECT u.id, u.company_id, u.access_level, u.role_id, r.code, u.is_active
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`
	var user User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.CompanyID, &user.AccessLevel, &user.RoleID, &user.RoleCode, &user.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("authz: user %d: %w", id, shared.ErrNotFound)
		}
		return User{}, err
	}
	return user, nil
}

// EffectiveAssignments returns active assignments whose validity window covers now.
func (r *PGRepository) EffectiveAssignments(ctx context.Context, userID int64, now time.Time) ([]RoleAssignment, error) {
	const query = `
		SELECT user_id, role_id, scope, scope_id, valid_from, valid_until, is_active
		FROM user_role_assignments
		WHERE user_id = $1
		  AND is_active
		  AND valid_from <= $2
		  AND (valid_until IS NULL OR valid_until > $2)`
	rows, err := r.pool.Query(ctx, query, userID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.Scope, &a.ScopeID, &a.ValidFrom, &a.ValidUntil, &a.IsActive); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// RoleGrants returns permission codes granted to the given roles. Rows with
// granted=false are excluded here; an explicit denial means the role simply
// does not carry the code.
func (r *PGRepository) RoleGrants(ctx context.Context, roleIDs []int64) ([]RoleGrant, error) {
	const query = `
		SELECT rp.role_id, p.code
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.granted AND rp.role_id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.RoleID, &g.Code); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// EffectiveOverrides returns unexpired overrides in creation order; the merge
// folds them left to right.
func (r *PGRepository) EffectiveOverrides(ctx context.Context, userID int64, now time.Time) ([]OverrideOp, error) {
	const query = `
		SELECT p.code, o.granted, o.scope, o.scope_id
		FROM user_permission_overrides o
		JOIN permissions p ON p.id = o.permission_id
		WHERE o.user_id = $1
		  AND (o.expires_at IS NULL OR o.expires_at > $2)
		ORDER BY o.created_at, p.code`
	rows, err := r.pool.Query(ctx, query, userID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ops []OverrideOp
	for rows.Next() {
		var op OverrideOp
		if err := rows.Scan(&op.Code, &op.Granted, &op.Scope, &op.ScopeID); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// PermissionByCode resolves a permission code to its row.
func (r *PGRepository) PermissionByCode(ctx context.Context, code string) (Permission, error) {
	const query = `SELECT id, code, module_id, action FROM permissions WHERE code = $1`
	var perm Permission
	err := r.pool.QueryRow(ctx, query, code).Scan(&perm.ID, &perm.Code, &perm.ModuleID, &perm.Action)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("authz: permission %s: %w", code, shared.ErrNotFound)
		}
		return Permission{}, err
	}
	return perm, nil
}

// ListPermissions returns the permission catalog ordered by code.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	const query = `SELECT id, code, module_id, action FROM permissions ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Code, &perm.ModuleID, &perm.Action); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// UpsertAssignment inserts or refreshes an assignment on its unique key.
// NULL scope ids normalize to '' in the key so the constraint actually bites.
func (r *PGRepository) UpsertAssignment(ctx context.Context, a RoleAssignment) error {
	const query = `
		INSERT INTO user_role_assignments (user_id, role_id, scope, scope_id, valid_from, valid_until, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (user_id, role_id, scope, COALESCE(scope_id, ''))
		DO UPDATE SET valid_from = EXCLUDED.valid_from,
		              valid_until = EXCLUDED.valid_until,
		              is_active = TRUE`
	_, err := r.pool.Exec(ctx, query, a.UserID, a.RoleID, a.Scope, a.ScopeID, a.ValidFrom.UTC(), nullableTime(a.ValidUntil))
	return mapWriteError(err)
}

// DeactivateAssignment soft-revokes an assignment.
func (r *PGRepository) DeactivateAssignment(ctx context.Context, userID, roleID int64, scope Scope, scopeID *string) error {
	const query = `
		UPDATE user_role_assignments
		SET is_active = FALSE
		WHERE user_id = $1 AND role_id = $2 AND scope = $3 AND COALESCE(scope_id, '') = COALESCE($4, '')`
	tag, err := r.pool.Exec(ctx, query, userID, roleID, scope, scopeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("authz: assignment: %w", shared.ErrNotFound)
	}
	return nil
}

// UpsertOverride inserts or replaces an override on its unique key.
func (r *PGRepository) UpsertOverride(ctx context.Context, o PermissionOverride) error {
	const query = `
		INSERT INTO user_permission_overrides (user_id, permission_id, granted, scope, scope_id, expires_at, granted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id, permission_id, scope, COALESCE(scope_id, ''))
		DO UPDATE SET granted = EXCLUDED.granted,
		              expires_at = EXCLUDED.expires_at,
		              granted_by = EXCLUDED.granted_by`
	_, err := r.pool.Exec(ctx, query, o.UserID, o.PermissionID, o.Granted, o.Scope, o.ScopeID, nullableTime(o.ExpiresAt), o.GrantedBy)
	return mapWriteError(err)
}

// DeleteOverride removes an override row.
func (r *PGRepository) DeleteOverride(ctx context.Context, userID, permissionID int64, scope Scope, scopeID *string) error {
	const query = `
		DELETE FROM user_permission_overrides
		WHERE user_id = $1 AND permission_id = $2 AND scope = $3 AND COALESCE(scope_id, '') = COALESCE($4, '')`
	tag, err := r.pool.Exec(ctx, query, userID, permissionID, scope, scopeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("authz: override: %w", shared.ErrNotFound)
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// mapWriteError surfaces unique-violation races that ON CONFLICT could not
// absorb as a conflict, and foreign-key misses as not found.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("authz: duplicate grant: %w", shared.ErrConflict)
		case "23503":
			return fmt.Errorf("authz: %s: %w", pgErr.ConstraintName, shared.ErrNotFound)
		}
	}
	return err
}
