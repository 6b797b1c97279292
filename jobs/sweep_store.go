package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gemin-erp/gemin-erp/internal/platform/db"
)

// PGSweepStore implements SweepStore against PostgreSQL.
type PGSweepStore struct {
	pool *pgxpool.Pool
}

// NewSweepStore constructs a PGSweepStore.
func NewSweepStore(pool *pgxpool.Pool) *PGSweepStore {
	return &PGSweepStore{pool: pool}
}

var _ SweepStore = (*PGSweepStore)(nil)

// Sweep soft-revokes assignments past their valid_until and deletes overrides
// past their expires_at. Both statements commit in one transaction.
func (s *PGSweepStore) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	const deactivate = `
		UPDATE user_role_assignments
		SET is_active = FALSE
		WHERE is_active AND valid_until IS NOT NULL AND valid_until <= $1`
	const remove = `
		DELETE FROM user_permission_overrides
		WHERE expires_at IS NOT NULL AND expires_at <= $1`

	var res SweepResult
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deactivate, now)
		if err != nil {
			return err
		}
		res.AssignmentsDeactivated = tag.RowsAffected()

		tag, err = tx.Exec(ctx, remove, now)
		if err != nil {
			return err
		}
		res.OverridesDeleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}
	return res, nil
}
