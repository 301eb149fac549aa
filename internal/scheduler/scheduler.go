package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"debt-dashboard/internal/logging"
)

// Reason records why a refresh cycle fired.
type Reason string

const (
	ReasonInterval Reason = "interval"
	ReasonManual   Reason = "manual"
)

// TickFunc is invoked for every refresh cycle.
type TickFunc func(ctx context.Context, at time.Time, reason Reason) error

// Options tune scheduler behaviour. A zero Interval disables periodic
// cycles; manual triggers still run.
type Options struct {
	Interval        time.Duration
	AlignToInterval bool
	StartupDelay    time.Duration
}

// Scheduler drives periodic and on-demand refresh cycles. Manual triggers
// arriving while a cycle is pending are coalesced into one.
type Scheduler struct {
	opts    Options
	logger  zerolog.Logger
	trigger chan struct{}
	now     func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	return &Scheduler{
		opts:    opts,
		logger:  logging.Component(logger, "scheduler"),
		trigger: make(chan struct{}, 1),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Trigger requests an immediate cycle. It never blocks and reports whether
// the request was queued rather than merged into one already pending.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks, invoking tick on every cycle until ctx is cancelled. Tick
// errors are logged and never stop the loop.
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

	var next time.Time
	if s.opts.Interval > 0 {
		next = s.nextTick(s.now())
	}

	for {
		var timerC <-chan time.Time
		var timer *time.Timer
		if !next.IsZero() {
			delay := next.Sub(s.now())
			if delay < 0 {
				next = s.nextTick(s.now())
				delay = next.Sub(s.now())
			}
			timer = time.NewTimer(delay)
			timerC = timer.C
			s.logger.Debug().Time("next_refresh", next).Msg("waiting for next refresh")
		}

		var reason Reason
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-s.trigger:
			reason = ReasonManual
		case <-timerC:
			reason = ReasonInterval
		}
		if timer != nil {
			timer.Stop()
		}

		at := s.now()
		if reason == ReasonInterval {
			at = s.cycleStart(next)
			next = next.Add(s.opts.Interval)
		}

		s.logger.Debug().Time("at", at).Str("reason", string(reason)).Msg("running refresh cycle")
		if err := tick(ctx, at, reason); err != nil {
			s.logger.Error().Err(err).Time("at", at).Str("reason", string(reason)).Msg("refresh cycle failed")
		}
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToInterval {
		return now.Add(s.opts.Interval)
	}
	aligned := now.Truncate(s.opts.Interval)
	if !aligned.After(now) {
		aligned = aligned.Add(s.opts.Interval)
	}
	return aligned
}

func (s *Scheduler) cycleStart(t time.Time) time.Time {
	if !s.opts.AlignToInterval {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
