// Package scheduler enqueues the recurring scraping and maintenance tasks.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/common"
	"github.com/koelfx/koel/internal/jobs"
)

// Enqueuer submits tasks to the queue. Satisfied by asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service owns the cron loop. All schedules evaluate in UTC.
type Service struct {
	cron    *cron.Cron
	client  Enqueuer
	cfg     common.SchedulerConfig
	logger  arbor.ILogger
	running bool
}

// NewService creates the scheduler over the given queue client.
func NewService(client Enqueuer, cfg common.SchedulerConfig, logger arbor.ILogger) *Service {
	return &Service{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Start registers the recurring entries and begins the cron loop.
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	entries := []struct {
		name     string
		schedule string
		build    func() (*asynq.Task, error)
	}{
		{
			name:     "scrape primary group",
			schedule: s.cfg.PrimaryCron,
			build:    func() (*asynq.Task, error) { return jobs.NewScrapeGroupTask(jobs.GroupPrimary) },
		},
		{
			name:     "scrape secondary group",
			schedule: s.cfg.SecondaryCron,
			build:    func() (*asynq.Task, error) { return jobs.NewScrapeGroupTask(jobs.GroupSecondary) },
		},
		{
			name:     "maintenance cleanup",
			schedule: s.cfg.CleanupCron,
			build:    func() (*asynq.Task, error) { return jobs.NewCleanupTask(), nil },
		},
		{
			name:     "partition pre-creation",
			schedule: s.cfg.PartitionCron,
			build:    func() (*asynq.Task, error) { return jobs.NewCreatePartitionTask(), nil },
		},
	}

	for _, entry := range entries {
		entry := entry
		_, err := s.cron.AddFunc(entry.schedule, func() { s.enqueue(entry.name, entry.build) })
		if err != nil {
			return fmt.Errorf("failed to register %s (%q): %w", entry.name, entry.schedule, err)
		}
		s.logger.Info().Str("job", entry.name).Str("schedule", entry.schedule).Msg("Registered scheduled job")
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for any running enqueue to finish.
func (s *Service) Stop() {
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Service) enqueue(name string, build func() (*asynq.Task, error)) {
	task, err := build()
	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("Failed to build scheduled task")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := s.client.EnqueueContext(ctx, task)
	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("Failed to enqueue scheduled task")
		return
	}
	s.logger.Info().Str("job", name).Str("task_id", info.ID).Str("queue", info.Queue).Msg("Enqueued scheduled task")
}
