package processing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docmgmt-api/internal/models"
	"github.com/noah-isme/docmgmt-api/pkg/jobs"
)

// JobTypeCallback marks queued completion callbacks.
const JobTypeCallback = "ingestion.callback"

// Notifier delivers a completion callback.
type Notifier interface {
	Notify(ctx context.Context, cb Callback) error
}

// Simulated stands in for an external processor: it assigns ids locally and reports
// every task as completed after a fixed delay.
type Simulated struct {
	ids    *IDGenerator
	queue  *jobs.Queue
	delay  time.Duration
	logger *zap.Logger
}

// NewSimulated wires the backend to a started callback queue.
func NewSimulated(ids *IDGenerator, queue *jobs.Queue, delay time.Duration, logger *zap.Logger) *Simulated {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{ids: ids, queue: queue, delay: delay, logger: logger}
}

// Submit accepts any input and returns a new task id.
func (s *Simulated) Submit(ctx context.Context, input models.IngestionInput) (int64, error) {
	return s.ids.Next(), nil
}

// ScheduleCompletion queues the completion callback and returns at once.
// Failures are logged only; callers observe them through later status reads.
func (s *Simulated) ScheduleCompletion(taskID int64) {
	job := jobs.Job{
		ID:      strconv.FormatInt(taskID, 10),
		Type:    JobTypeCallback,
		Payload: Callback{ID: taskID, Status: models.TaskStatusCompleted},
	}
	if err := s.queue.EnqueueAfter(job, s.delay); err != nil {
		s.logger.Error("failed to schedule ingestion completion", zap.Int64("task_id", taskID), zap.Error(err))
	}
}

// CallbackHandler adapts a Notifier to the job queue.
func CallbackHandler(n Notifier, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		cb, ok := job.Payload.(Callback)
		if !ok {
			return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
		}
		if err := n.Notify(ctx, cb); err != nil {
			return err
		}
		logger.Info("ingestion callback delivered", zap.Int64("task_id", cb.ID), zap.String("status", string(cb.Status)))
		return nil
	}
}
