// Package scheduler runs the periodic pipeline jobs. Each job carries its own
// time predicate so the tick loop stays free of per-job hour conditionals.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
)

// Job is a named unit of periodic work with its own activation predicate
type Job struct {
	Name string
	When func(now time.Time) bool
	Run  func(ctx context.Context, now time.Time) error
}

// AtHour activates a job during one UTC hour of the day
func AtHour(hour int) func(time.Time) bool {
	return func(now time.Time) bool { return now.UTC().Hour() == hour }
}

// EveryTick activates a job on every scheduler tick
func EveryTick() func(time.Time) bool {
	return func(time.Time) bool { return true }
}

// Scheduler evaluates jobs on a fixed interval
type Scheduler struct {
	jobs     []Job
	interval time.Duration
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler, interval defaults to one hour
func NewScheduler(interval time.Duration, jobs ...Job) *Scheduler {
	if interval == 0 {
		interval = time.Hour
	}
	return &Scheduler{jobs: jobs, interval: interval}
}

// Start begins the tick loop, the first tick fires after one interval
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Tick(ctx, now)
			}
		}
	}()

	lgr.Printf("[INFO] scheduler started with %d jobs, interval %v", len(s.jobs), s.interval)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// Tick evaluates every job against now and runs the active ones. A failing
// job is logged and never blocks the remaining jobs. Callable on demand
// outside the tick loop.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, job := range s.jobs {
		if !job.When(now) {
			continue
		}
		lgr.Printf("[DEBUG] running job %s", job.Name)
		if err := job.Run(ctx, now); err != nil {
			lgr.Printf("[WARN] job %s failed: %v", job.Name, err)
			continue
		}
		lgr.Printf("[DEBUG] job %s completed", job.Name)
	}
}

// JobNames lists the configured job names in evaluation order
func (s *Scheduler) JobNames() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name
	}
	return names
}
