package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// GrantExpirySweepJob deactivates role assignments whose validity window has
// closed and deletes expired permission overrides. The evaluator already
// ignores expired rows at read time; the sweep keeps the hot tables small.
type GrantExpirySweepJob struct {
	db     SweepStore
	logger *slog.Logger
	now    func() time.Time
}

// SweepStore runs both sweep statements in one transaction so a partial sweep
// never becomes visible.
type SweepStore interface {
	Sweep(ctx context.Context, now time.Time) (SweepResult, error)
}

// SweepResult counts the rows each sweep statement touched.
type SweepResult struct {
	AssignmentsDeactivated int64
	OverridesDeleted       int64
}

// NewGrantExpirySweepJob constructs the sweep job.
func NewGrantExpirySweepJob(db SweepStore, logger *slog.Logger) *GrantExpirySweepJob {
	return &GrantExpirySweepJob{db: db, logger: logger, now: time.Now}
}

// Handle runs the sweep. Counts are logged; a failure surfaces so asynq
// retries the whole task.
func (j *GrantExpirySweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	res, err := j.db.Sweep(ctx, j.now().UTC())
	if err != nil {
		if j.logger != nil {
			j.logger.Error("grant expiry sweep", slog.Any("error", err))
		}
		return err
	}

	if j.logger != nil {
		j.logger.Info("grant expiry sweep complete",
			slog.Int64("assignments_deactivated", res.AssignmentsDeactivated),
			slog.Int64("overrides_deleted", res.OverridesDeleted))
	}
	return nil
}
