package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// maintenanceSchedule runs the audit-store maintenance once a day, during
// quiet hours.
const maintenanceSchedule = "0 4 * * *"

// Scheduler manages scheduled work using the gocron library: the daily
// audit-store maintenance job and the one-shot cleanup of transient notices.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a new scheduler instance using gocron.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
	}, nil
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started")
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully")
	}
	s.running = false
	return err
}

// After schedules fn to run once after d. Best effort: a scheduling failure
// is logged and the function is simply never run, which callers must
// tolerate.
func (s *Scheduler) After(d time.Duration, fn func()) {
	_, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(d))),
		gocron.NewTask(fn),
	)
	if err != nil {
		s.logger.Warn("Failed to schedule one-shot job", "error", err)
	}
}

// Daily registers a named job on the daily maintenance schedule.
func (s *Scheduler) Daily(name string, fn func(context.Context) error) error {
	_, err := s.scheduler.NewJob(
		gocron.CronJob(maintenanceSchedule, false),
		gocron.NewTask(func(ctx context.Context) {
			s.logger.Info("Running scheduled task", "task_name", name)
			startTime := time.Now()
			if taskErr := fn(ctx); taskErr != nil {
				s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
			}
			s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
		}),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", name, err)
	}
	return nil
}
