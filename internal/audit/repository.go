package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
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

// Insert appends an audit entry.
func (r *PGRepository) Insert(ctx context.Context, actorID int64, action string, targetUserID int64, detail []byte) error {
	const query = `
		INSERT INTO authz_audit_log (actor_id, action, target_user_id, detail, created_at)
		VALUES ($1, $2, $3, $4, NOW())`
	var payload any
	if len(detail) > 0 {
		payload = detail
	}
	_, err := r.pool.Exec(ctx, query, actorID, action, targetUserID, payload)
	return err
}

// List returns entries newest first, optionally filtered by target user.
func (r *PGRepository) List(ctx context.Context, targetUserID int64, limit, offset int) ([]Entry, error) {
	const query = `
		SELECT id, actor_id, action, target_user_id, detail, created_at
		FROM authz_audit_log
		WHERE ($1 = 0 OR target_user_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, targetUserID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var detail []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetUserID, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
