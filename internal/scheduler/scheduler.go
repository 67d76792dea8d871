package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-collector/internal/weather"
)

// CycleRunner is the work the scheduler triggers. Implementations must not
// propagate failures; see weather.Service.RunCycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) weather.CycleReport
}

// Scheduler runs one cycle immediately and then at a fixed rate. A tick that
// arrives while the previous cycle is still running is skipped, not queued.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    CycleRunner
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(interval time.Duration, runner CycleRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.Local)
	s.SetMaxConcurrentJobs(1, gocron.RescheduleMode)

	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.runner == nil {
		return errors.New("scheduler: no cycle runner configured")
	}
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	job, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		s.logger.Debug("running collection cycle")
		report := s.runner.RunCycle(context.Background())
		s.logger.Debug("collection cycle finished", "outcome", report.Outcome, "duration", report.Duration())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval, "next_run", job.NextRun())
	return nil
}

// Stop stops the scheduler and cancels any future jobs. A cycle that is
// already running is not interrupted.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.logger.Info("scheduler stopped")
}
