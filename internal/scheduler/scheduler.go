package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultCooldown = time.Minute

// ErrUnexpectedFailure wraps a panic raised inside a poll cycle.
var ErrUnexpectedFailure = errors.New("unexpected failure")

type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// Scheduler runs poll cycles until its context is cancelled. The next cycle
// starts at the schedule's next activation, or after the cooldown when the
// previous cycle failed.
type Scheduler struct {
	runner   CycleRunner
	schedule cron.Schedule
	cooldown time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func New(
	runner CycleRunner,
	schedule cron.Schedule,
	cooldown time.Duration,
	log *slog.Logger,
) *Scheduler {
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}

	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		cooldown: cooldown,
		now:      time.Now,
		log:      log,
	}
}

// Run blocks until ctx is done. Cycle failures never end it.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		err := s.RunOnce(ctx)

		if ctx.Err() != nil {
			s.log.InfoContext(ctx, "Scheduler context is done",
				"error", ctx.Err())
			return nil
		}

		var wait time.Duration
		if err != nil {
			wait = s.cooldown
			s.log.ErrorContext(ctx, "Poll cycle failed",
				"error", err,
				"cooldown", wait.String())
		} else {
			now := s.now()
			next := s.schedule.Next(now)
			wait = next.Sub(now)
			s.log.InfoContext(ctx, "Next poll cycle is scheduled",
				"next", next,
				"wait", wait.String())
		}

		if !s.sleep(ctx, wait) {
			s.log.InfoContext(ctx, "Scheduler context is done",
				"error", ctx.Err())
			return nil
		}
	}
}

// RunOnce runs a single cycle, turning a panic into ErrUnexpectedFailure.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnexpectedFailure, r)
		}
	}()

	return s.runner.RunCycle(ctx)
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
