package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/metrics"
	"github.com/speedwagon-io/wificonnector/internal/retry"
)

var (
	ErrCycleRunning = errors.New("previous cycle still running")
	ErrCyclePanic   = errors.New("cycle panicked")
)

// Scheduler runs cycles on a fixed interval with at most one cycle in
// flight. Ticks that arrive while a cycle runs are skipped.
type Scheduler struct {
	log      *slog.Logger
	cycle    Cycle
	interval time.Duration
	metrics  *metrics.Metrics

	state   atomic.Int32
	running atomic.Bool
	skipped atomic.Int64
	wg      sync.WaitGroup

	mu          sync.Mutex
	last        *Report
	lastSuccess time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewScheduler(log *slog.Logger, cycle Cycle, interval time.Duration, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		log:      log,
		cycle:    cycle,
		interval: interval,
		metrics:  m,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the first cycle immediately and then one per tick until ctx
// is cancelled or Stop is called. It returns after the in-flight cycle
// has finished.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("starting scheduler", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.wg.Wait()

	s.trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("context cancelled, stopping scheduler")
			return
		case <-s.stopCh:
			s.log.Info("stop signal received, stopping scheduler")
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

// Stop makes Start return; Start still waits for the in-flight cycle.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// RunOnce runs a single cycle in the caller's goroutine.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, retry.New(retry.KindOverrun, "schedule", ErrCycleRunning)
	}
	defer s.running.Store(false)

	return s.run(ctx)
}

func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		if s.metrics != nil {
			s.metrics.SkippedTick()
		}
		s.log.Warn("skipping tick",
			slog.String("state", s.State().String()),
			sl.Err(retry.New(retry.KindOverrun, "schedule", ErrCycleRunning)),
		)
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		_, _ = s.run(ctx)
	}()
	return true
}

func (s *Scheduler) run(ctx context.Context) (report *Report, err error) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
			s.log.Error("collection cycle panicked", sl.Err(err))
		}
		s.state.Store(int32(StateIdle))
		s.record(report, err, time.Since(started))
	}()

	return s.cycle.RunCycle(ctx, s.setState)
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Scheduler) record(report *Report, err error, d time.Duration) {
	result := ResultFailed
	if report != nil {
		result = report.Result()
	}
	if err != nil {
		result = ResultFailed
	}

	if s.metrics != nil {
		s.metrics.ObserveCycle(result, d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = report
	if err == nil && report != nil && !report.Write.Failed() {
		s.lastSuccess = time.Now()
	}
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Skipped reports how many ticks were skipped because a cycle was running.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

func (s *Scheduler) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}
