package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval with the tick's fire time.
type TickFunc func(ctx context.Context, firedAt time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives the recurring check loop. Ticks fire on the interval
// regardless of how long the previous tick is taking: a slow fan-out for
// one tick must never delay the next one, so each tick runs in its own
// goroutine and is responsible for bounding its own work.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, firing the tick function at each interval until ctx is
// cancelled. Cancellation emits no further ticks; in-flight ticks observe
// the cancelled context and wind down on their own timeouts.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.fire(ctx, tick, time.Now().UTC())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case firedAt := <-ticker.C:
			s.fire(ctx, tick, firedAt.UTC())
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, tick TickFunc, firedAt time.Time) {
	s.logger.Debug().Time("fired_at", firedAt).Msg("executing scheduled tick")
	go func() {
		if err := tick(ctx, firedAt); err != nil {
			s.logger.Error().Err(err).Time("fired_at", firedAt).Msg("tick execution failed")
		}
	}()
}
