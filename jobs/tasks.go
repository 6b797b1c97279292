package jobs

import "github.com/hibiken/asynq"

// Queue and task identifiers.
const (
	QueueDefault = "default"

	TaskGrantExpirySweep = "authz:grant_expiry_sweep"
)

// NewGrantExpirySweepTask builds the expiry sweep task. The task carries no
// payload; the handler derives everything from the clock.
func NewGrantExpirySweepTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskGrantExpirySweep, nil), nil
}
