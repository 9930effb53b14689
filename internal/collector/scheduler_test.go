package collector

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/metrics"
	"github.com/speedwagon-io/wificonnector/internal/retry"
)

type cycleFunc func(ctx context.Context, phase func(State)) (*Report, error)

func (f cycleFunc) RunCycle(ctx context.Context, phase func(State)) (*Report, error) {
	return f(ctx, phase)
}

func okReport() *Report {
	return newReport("test", time.Now())
}

func TestSchedulerSkipsOverlappingTicks(t *testing.T) {
	var calls, inFlight, maxInFlight atomic.Int32
	release := make(chan struct{})

	cycle := cycleFunc(func(ctx context.Context, phase func(State)) (*Report, error) {
		calls.Add(1)
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}

		phase(StateCollecting)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return okReport(), nil
	})

	s := NewScheduler(sl.Discard(), cycle, 5*time.Millisecond, metrics.New())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Skipped() >= 3 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateCollecting, s.State())

	close(release)
	cancel()
	<-done

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, StateIdle, s.State())
}

func TestSchedulerWaitsForInFlightCycle(t *testing.T) {
	var finished atomic.Bool
	started := make(chan struct{})

	cycle := cycleFunc(func(ctx context.Context, _ func(State)) (*Report, error) {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil, ctx.Err()
	})

	s := NewScheduler(sl.Discard(), cycle, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	<-started
	cancel()
	<-done

	assert.True(t, finished.Load())
	assert.True(t, s.LastSuccess().IsZero())
}

func TestSchedulerStop(t *testing.T) {
	var calls atomic.Int32
	cycle := cycleFunc(func(context.Context, func(State)) (*Report, error) {
		calls.Add(1)
		return okReport(), nil
	})

	s := NewScheduler(sl.Discard(), cycle, time.Hour, nil)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	s.Stop()
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, s.LastSuccess().IsZero())
}

func TestRunOnceRecoversFromPanic(t *testing.T) {
	var calls atomic.Int32
	cycle := cycleFunc(func(_ context.Context, phase func(State)) (*Report, error) {
		phase(StateWriting)
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return okReport(), nil
	})

	s := NewScheduler(sl.Discard(), cycle, time.Minute, metrics.New())

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCyclePanic)
	assert.Equal(t, StateIdle, s.State())

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, ResultSuccess, report.Result())
	assert.Same(t, report, s.LastReport())
}

func TestRunOnceRejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	cycle := cycleFunc(func(context.Context, func(State)) (*Report, error) {
		close(entered)
		<-release
		return okReport(), nil
	})

	s := NewScheduler(sl.Discard(), cycle, time.Minute, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		errCh <- err
	}()
	<-entered

	_, err := s.RunOnce(context.Background())
	assert.True(t, retry.Is(err, retry.KindOverrun))

	close(release)
	assert.NoError(t, <-errCh)
}
