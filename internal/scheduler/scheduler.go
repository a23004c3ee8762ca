// Package scheduler triggers recurring background work on cron schedules.
package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jlebunetel/toolbox-api/pkg/jobs"
)

// JobTypeReminderDigest marks the queued birthday digest run.
const JobTypeReminderDigest = "reminder_digest"

// Scheduler owns the cron runner and feeds due work into the job queue.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New builds a scheduler. Specs use the standard five-field cron format.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}
}

// RegisterDigest schedules the reminder digest on the given spec. Each firing
// enqueues one job; the queue handles retries.
func (s *Scheduler) RegisterDigest(spec string, queue *jobs.Queue) error {
	entryID, err := s.cron.AddFunc(spec, func() {
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: JobTypeReminderDigest,
		}
		if err := queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue reminder digest", zap.Error(err))
			return
		}
		s.logger.Info("reminder digest enqueued", zap.String("job_id", job.ID))
	})
	if err != nil {
		return fmt.Errorf("register digest schedule %q: %w", spec, err)
	}
	s.logger.Info("reminder digest scheduled", zap.String("spec", spec), zap.Int("entry", int(entryID)))
	return nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
