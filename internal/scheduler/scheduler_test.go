package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTickAlignment(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToInterval: true}, zerolog.Nop())
	now := time.Date(2024, 5, 1, 10, 20, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC), s.nextTick(now))

	onBoundary := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), s.nextTick(onBoundary))

	free := New(Options{Interval: time.Hour}, zerolog.Nop())
	assert.Equal(t, now.Add(time.Hour), free.nextTick(now))
	assert.Equal(t, now, free.cycleStart(now))
}

func TestTriggerCoalesces(t *testing.T) {
	s := New(Options{}, zerolog.Nop())
	assert.True(t, s.Trigger())
	assert.False(t, s.Trigger())
}

func TestRunManualOnly(t *testing.T) {
	s := New(Options{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reasons := make(chan Reason, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, at time.Time, reason Reason) error {
			reasons <- reason
			return errors.New("logged, not fatal")
		})
	}()

	s.Trigger()
	select {
	case r := <-reasons:
		assert.Equal(t, ReasonManual, r)
	case <-time.After(2 * time.Second):
		t.Fatal("manual trigger did not run")
	}

	s.Trigger()
	select {
	case <-reasons:
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after a failing tick")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRunInterval(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var count atomic.Int32
	err := s.Run(ctx, func(ctx context.Context, at time.Time, reason Reason) error {
		assert.Equal(t, ReasonInterval, reason)
		if count.Add(1) == 3 {
			cancel()
		}
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), count.Load())
}

func TestRunStartupDelayHonoursCancel(t *testing.T) {
	s := New(Options{StartupDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx, func(context.Context, time.Time, Reason) error {
		t.Fatal("tick must not run")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
