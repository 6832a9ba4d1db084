// Package scheduler runs the ingest pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/pipeline"
)

// Runner is one complete ingest run.
type Runner interface {
	Run(ctx context.Context) pipeline.Report
}

// Scheduler triggers a Runner on a cron expression. Runs never overlap: a
// trigger that fires while a run is in progress is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	spec      string
	logger    *slog.Logger
	job       *gocron.Job

	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
}

// New creates a Scheduler for a five-field cron expression, or a six-field
// one whose first field is seconds.
func New(spec string, runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		spec:      strings.TrimSpace(spec),
		logger:    logger,
	}
}

// Start registers the job and starts the scheduler. Every run receives ctx;
// cancelling it aborts the run in progress.
func (s *Scheduler) Start(ctx context.Context) error {
	var sched *gocron.Scheduler
	if len(strings.Fields(s.spec)) == 6 {
		sched = s.scheduler.CronWithSeconds(s.spec)
	} else {
		sched = s.scheduler.Cron(s.spec)
	}
	job, err := sched.SingletonMode().Do(s.run, ctx)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}
	s.job = job
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "schedule", s.spec, "next_run", job.NextRun())
	return nil
}

// Stop stops the scheduler. A run in progress is not waited for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.scheduler.Stop()
	s.logger.Info("scheduler stopped")
}

// Shutdown stops the scheduler and waits for a run in progress to return, so
// its intermediate files are cleaned up. It gives up when ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for run in progress: %w", ctx.Err())
	}
}

// NextRun reports when the job fires next, or the zero time before Start.
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

func (s *Scheduler) run(ctx context.Context) {
	s.mu.Lock()
	if s.stopped || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	start := time.Now()
	report := s.runner.Run(ctx)
	s.logger.Info("scheduled run complete",
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"duration", time.Since(start).String(),
		"next_run", s.NextRun())
}
