package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one maintenance task. Run returns how many items it affected.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Scheduler runs maintenance jobs on a cron schedule.
type Scheduler struct {
	schedule string
	jobs     []Job
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
}

// NewScheduler creates a scheduler for jobs. A nil logger uses slog.Default().
func NewScheduler(schedule string, logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		jobs:     jobs,
		cron:     cron.New(),
		logger:   logger.With("component", "maintenance.scheduler"),
	}
}

// Start schedules the jobs. The cron expression uses the standard five-field
// syntax or a descriptor such as "@every 1h" or "@daily".
//
// If the schedule is empty, the scheduler does nothing. The scheduler stops
// when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("maintenance schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return errors.New("maintenance scheduler already running")
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	id, err := s.cron.AddFunc(s.schedule, func() {
		_ = s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	s.entry = id
	s.cron.Start()
	s.running = true

	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}
	s.logger.Info("maintenance scheduler started", "schedule", s.schedule, "jobs", names)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce runs every job in order. A failing job does not stop the rest; the
// returned error joins all failures.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		start := time.Now()
		n, err := job.Run(ctx)
		if err != nil {
			s.logger.Error("maintenance job failed", "job", job.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
			continue
		}
		s.logger.Debug("maintenance job completed",
			"job", job.Name,
			"affected", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return errors.Join(errs...)
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.cron.Remove(s.entry)
	s.running = false
	s.logger.Info("maintenance scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled pass, or nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return nil
	}
	return &next
}
