package queue

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"

	"docqa-platform/internal/logger"
)

// Scheduler enqueues recurring maintenance tasks.
type Scheduler struct {
	scheduler *gocron.Scheduler
	client    *asynq.Client
}

func NewScheduler(client *asynq.Client) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		client:    client,
	}
}

// ScheduleBackfill registers the periodic embedding backfill sweep. Each
// tick enqueues one task; the worker pool does the actual embedding.
func (s *Scheduler) ScheduleBackfill(interval time.Duration) error {
	_, err := s.scheduler.Every(interval).Tag("embedding-backfill").Do(func() {
		info, err := s.client.Enqueue(NewBackfillEmbeddingsTask())
		if err != nil {
			logger.Error("failed to enqueue backfill task", "error", err)
			return
		}
		logger.Debug("backfill task enqueued", "task_id", info.ID)
	})
	return err
}

// Start starts the scheduler in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
