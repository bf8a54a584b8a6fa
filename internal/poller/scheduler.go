package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

var (
	ErrSchedulerRunning = errors.New("scheduler already running")
	ErrNotRunning       = errors.New("scheduler not running")
	ErrCycleInProgress  = errors.New("cycle already in progress")
)

// CycleRunner runs one monitoring cycle.
type CycleRunner interface {
	Run(ctx context.Context) (*models.Snapshot, error)
}

// Stats are cumulative scheduler counters.
type Stats struct {
	Cycles        uint64        `json:"cycles"`
	Aborted       uint64        `json:"aborted"`
	Skipped       uint64        `json:"skipped"`
	InFlight      bool          `json:"in_flight"`
	LastDuration  time.Duration `json:"last_duration_ns"`
	LastCompleted time.Time     `json:"last_completed,omitempty"`
}

// Scheduler drives cycles on a fixed period. At most one cycle runs at a
// time; ticks that arrive while a cycle is in flight are skipped.
type Scheduler struct {
	cycle    CycleRunner
	interval time.Duration
	logger   *slog.Logger

	inFlight atomic.Bool
	trigger  chan struct{}

	cycles        atomic.Uint64
	aborted       atomic.Uint64
	skipped       atomic.Uint64
	lastDuration  atomic.Int64
	lastCompleted atomic.Int64

	// Lifecycle management
	running  bool
	runMu    sync.Mutex
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(cycle CycleRunner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cycle:    cycle,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Run starts the first cycle immediately, then one per interval, and blocks
// until ctx is cancelled or Stop is called. It returns after the in-flight
// cycle has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return ErrSchedulerRunning
	}
	s.running = true
	s.runMu.Unlock()

	s.logger.Info("starting scheduler", "cycle_interval", s.interval)

	// cycles inherit cancellation from the loop, including Stop
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.dispatch(loopCtx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled, shutting down")
			cancel()
			s.shutdown()
			return ctx.Err()
		case <-s.done:
			s.logger.Info("scheduler done signal received")
			cancel()
			s.shutdown()
			return nil
		case <-ticker.C:
			s.dispatch(loopCtx)
		case <-s.trigger:
			s.dispatch(loopCtx)
		}
	}
}

// Stop ends Run without cancelling the parent context.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Trigger requests an immediate cycle.
func (s *Scheduler) Trigger() error {
	if !s.IsRunning() {
		return ErrNotRunning
	}
	if s.inFlight.Load() {
		return ErrCycleInProgress
	}
	select {
	case s.trigger <- struct{}{}:
	default:
		// a request is already pending
	}
	return nil
}

// IsRunning returns whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// Stats returns a copy of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	st := Stats{
		Cycles:       s.cycles.Load(),
		Aborted:      s.aborted.Load(),
		Skipped:      s.skipped.Load(),
		InFlight:     s.inFlight.Load(),
		LastDuration: time.Duration(s.lastDuration.Load()),
	}
	if ns := s.lastCompleted.Load(); ns != 0 {
		st.LastCompleted = time.Unix(0, ns)
	}
	return st
}

// dispatch starts a cycle unless one is already running.
func (s *Scheduler) dispatch(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		s.logger.Warn("cycle still running, skipping tick", "skipped_total", n)
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		s.runCycle(ctx)
	}()
	return true
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.aborted.Add(1)
			s.logger.Error("cycle panicked", "panic", fmt.Sprint(r))
		}
	}()

	_, err := s.cycle.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		s.aborted.Add(1)
		if errors.Is(err, context.Canceled) {
			s.logger.Info("cycle abandoned", "duration", elapsed)
		} else {
			s.logger.Error("cycle failed", "error", err, "duration", elapsed)
		}
		return
	}

	s.cycles.Add(1)
	s.lastDuration.Store(int64(elapsed))
	s.lastCompleted.Store(time.Now().UnixNano())

	if elapsed > s.interval {
		s.logger.Warn("cycle overran interval", "duration", elapsed, "interval", s.interval)
	}
}

// shutdown waits for the in-flight cycle to finish.
func (s *Scheduler) shutdown() {
	s.logger.Info("shutting down scheduler, waiting for in-flight cycle")

	s.wg.Wait()

	s.runMu.Lock()
	s.running = false
	s.runMu.Unlock()

	s.logger.Info("scheduler shutdown complete")
}
