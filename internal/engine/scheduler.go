package engine

import (
	"context"
	"log/slog"
	"time"
)

// CycleRunner is what the scheduler drives once per tick.
type CycleRunner interface {
	RunCycle(ctx context.Context) Outcome
}

// Scheduler fires the decision cycle at a fixed cadence on its own
// goroutine. Cycles are serialized: RunCycle executes inline in the loop, and
// time.Ticker drops ticks that arrive while a cycle is still running, so two
// cycles can never observe "not holding" at the same time and both buy.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
}

func NewScheduler(runner CycleRunner, interval time.Duration) *Scheduler {
	return &Scheduler{runner: runner, interval: interval}
}

// Run blocks until ctx is cancelled. An in-flight cycle completes; no new
// cycle starts after cancellation.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runner.RunCycle(ctx)
		}
	}
}
