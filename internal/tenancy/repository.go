package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gemin-erp/gemin-erp/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// UserProjection fetches the tenancy view of a user.
func (r *PGRepository) UserProjection(ctx context.Context, userID int64) (User, error) {
	const query = `SELECT id, company_id, access_level, is_active FROM users WHERE id = $1`
	var user User
	err := r.pool.QueryRow(ctx, query, userID).Scan(&user.ID, &user.CompanyID, &user.AccessLevel, &user.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("tenancy: user %d: %w", userID, shared.ErrNotFound)
		}
		return User{}, err
	}
	return user, nil
}

// CompanyFactoryIDs lists every factory of a company.
func (r *PGRepository) CompanyFactoryIDs(ctx context.Context, companyID int64) ([]string, error) {
	const query = `SELECT id FROM factories WHERE company_id = $1 ORDER BY created_at, id`
	return r.queryIDs(ctx, query, companyID)
}

// AccessibleFactoryIDs lists a user's explicitly granted factories. Ordering
// is load-bearing: the resolver picks the first id when "all" is requested.
func (r *PGRepository) AccessibleFactoryIDs(ctx context.Context, userID int64) ([]string, error) {
	const query = `SELECT factory_id FROM factory_access WHERE user_id = $1 ORDER BY granted_at, factory_id`
	return r.queryIDs(ctx, query, userID)
}

func (r *PGRepository) queryIDs(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FactoryByID fetches a factory row.
func (r *PGRepository) FactoryByID(ctx context.Context, id string) (Factory, error) {
	const query = `SELECT id, company_id, name FROM factories WHERE id = $1`
	var factory Factory
	err := r.pool.QueryRow(ctx, query, id).Scan(&factory.ID, &factory.CompanyID, &factory.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Factory{}, fmt.Errorf("tenancy: factory %s: %w", id, shared.ErrNotFound)
		}
		return Factory{}, err
	}
	return factory, nil
}

// UpsertAccess inserts or refreshes a factory grant on its (user, factory) key.
func (r *PGRepository) UpsertAccess(ctx context.Context, access FactoryAccess) error {
	const query = `
		INSERT INTO factory_access (user_id, factory_id, role, granted_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, factory_id)
		DO UPDATE SET role = EXCLUDED.role`
	_, err := r.pool.Exec(ctx, query, access.UserID, access.FactoryID, access.Role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("tenancy: %s: %w", pgErr.ConstraintName, shared.ErrNotFound)
		}
		return err
	}
	return nil
}

// DeleteAccess removes a factory grant.
func (r *PGRepository) DeleteAccess(ctx context.Context, userID int64, factoryID string) error {
	const query = `DELETE FROM factory_access WHERE user_id = $1 AND factory_id = $2`
	tag, err := r.pool.Exec(ctx, query, userID, factoryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenancy: access %d/%s: %w", userID, factoryID, shared.ErrNotFound)
	}
	return nil
}
