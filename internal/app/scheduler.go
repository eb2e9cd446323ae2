package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spotCycleBot/internal/ports"
)

// Scheduler runs named periodic tasks against a shared clock. Tasks are
// single-instance and never run concurrently with each other: a shared
// non-reentrant guard is try-locked per firing, and a firing that finds the
// guard held is skipped, not queued. Ticker semantics already collapse missed
// firings into at most one pending run.
type Scheduler struct {
	logger ports.Logger
	runMu  sync.Mutex // Held while any task executes
	tasks  []*task
}

type task struct {
	name     string
	interval time.Duration // Interval tasks
	daily    bool          // Daily tasks fire once per day at hour:minute UTC
	hour     int
	minute   int
	fn       func(ctx context.Context)
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger ports.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// AddInterval registers a task firing every interval.
func (s *Scheduler) AddInterval(name string, interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", name)
	}
	s.tasks = append(s.tasks, &task{name: name, interval: interval, fn: fn})
	return nil
}

// AddDailyAt registers a task firing once per day at hour:minute UTC.
func (s *Scheduler) AddDailyAt(name string, hour, minute int, fn func(ctx context.Context)) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("task %s: invalid time %02d:%02d", name, hour, minute)
	}
	s.tasks = append(s.tasks, &task{name: name, daily: true, hour: hour, minute: minute, fn: fn})
	return nil
}

// Run blocks until the context is cancelled, firing registered tasks.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range s.tasks {
		wg.Add(1)
		go func(t *task) {
			defer wg.Done()
			if t.daily {
				s.runDaily(ctx, t)
			} else {
				s.runInterval(ctx, t)
			}
		}(t)
	}
	wg.Wait()
}

func (s *Scheduler) runInterval(ctx context.Context, t *task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, t)
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context, t *task) {
	for {
		timer := time.NewTimer(time.Until(nextDailyAt(time.Now().UTC(), t.hour, t.minute)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx, t)
		}
	}
}

// fire executes the task under the shared guard, skipping the firing when
// another task is still executing.
func (s *Scheduler) fire(ctx context.Context, t *task) {
	if !s.runMu.TryLock() {
		s.logger.Debug(ctx, "Scheduler task skipped, previous run still executing", map[string]interface{}{"task": t.name})
		return
	}
	defer s.runMu.Unlock()
	t.fn(ctx)
}

// nextDailyAt returns the next occurrence of hour:minute UTC strictly after now.
func nextDailyAt(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
