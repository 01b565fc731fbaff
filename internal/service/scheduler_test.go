package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct{ runs atomic.Int32 }

func (r *countingRunner) Run(context.Context) (RunResult, error) {
	r.runs.Add(1)
	return RunResult{}, nil
}

func TestScheduler_RejectsInvalidCron(t *testing.T) {
	_, err := NewScheduler("every day at three", &countingRunner{}, nil)
	assert.Error(t, err)
}

func TestScheduler_NextDailyTick(t *testing.T) {
	s, err := NewScheduler("0 3 * * *", &countingRunner{}, nil)
	require.NoError(t, err)

	next, err := s.Next(time.Date(2026, 3, 1, 2, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)), next.String())

	next, err = s.Next(time.Date(2026, 3, 1, 3, 0, 30, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)), next.String())
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	runner := &countingRunner{}
	s, err := NewScheduler("0 3 * * *", runner, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Zero(t, runner.runs.Load())
}

func startScheduler(t *testing.T, s *Scheduler) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func TestScheduler_FiresAtDailyTick(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 2, 59, 59, 950_000_000, time.UTC))
	runner := &countingRunner{}
	s, err := NewScheduler("0 3 * * *", runner, clock.Now)
	require.NoError(t, err)

	stop := startScheduler(t, s)
	require.Eventually(t, func() bool { return runner.runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	// 下一次是明天 03:00，不会重复触发
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, runner.runs.Load())
	stop()
}

// busyRunner 每次都报告任务已在别处运行；前几次顺便把时钟推到下一个 tick 之前
type busyRunner struct {
	clock   *fakeClock
	advance int32
	runs    atomic.Int32
}

func (r *busyRunner) Run(context.Context) (RunResult, error) {
	if r.runs.Add(1) <= r.advance {
		r.clock.Advance(time.Minute)
	}
	return RunResult{}, ErrJobRunning
}

func TestScheduler_KeepsTickingWhenJobBusy(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 2, 59, 59, 950_000_000, time.UTC))
	runner := &busyRunner{clock: clock, advance: 2}
	s, err := NewScheduler("* * * * *", runner, clock.Now)
	require.NoError(t, err)

	stop := startScheduler(t, s)
	require.Eventually(t, func() bool { return runner.runs.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 3, runner.runs.Load())
	stop()
}
