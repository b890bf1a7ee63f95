// Package trigger fires reminder cycles on a fixed period. Overlapping cycles
// are allowed; the dispatch gate keeps them from double-sending.
package trigger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sandeepkv93/remindd/internal/runner"
)

var ErrInvalidPeriod = errors.New("trigger: period must be positive")

// Cycler runs one reminder cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (runner.RunReport, error)
}

type CycleFunc func(ctx context.Context) (runner.RunReport, error)

func (f CycleFunc) RunCycle(ctx context.Context) (runner.RunReport, error) { return f(ctx) }

// Result is published on C after every cycle.
type Result struct {
	Report runner.RunReport
	Err    error
}

type Engine struct {
	mu       sync.Mutex
	cycler   Cycler
	period   time.Duration
	log      zerolog.Logger
	out      chan Result
	wakeup   chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	wg       sync.WaitGroup
	started  bool
	stopped  bool
	inflight int64
	fired    uint64
	overruns uint64
	dropped  uint64
}

func NewEngine(cycler Cycler, period time.Duration, bufferSize int, log zerolog.Logger) (*Engine, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if cycler == nil {
		return nil, errors.New("trigger: nil cycler")
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		cycler: cycler,
		period: period,
		log:    log,
		out:    make(chan Result, bufferSize),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// C delivers cycle results. Results are dropped when the buffer is full.
func (e *Engine) C() <-chan Result {
	return e.out
}

// Start fires one cycle immediately and then one per period until Stop is
// called or ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	go e.loop(ctx)
}

// Stop ends the schedule and waits for in-flight cycles to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

// Done is closed once the loop has exited and every cycle has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.doneCh
}

// Trigger requests an extra cycle outside the schedule.
func (e *Engine) Trigger() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) Fired() uint64 { return atomic.LoadUint64(&e.fired) }

// Overruns counts cycles that started while an earlier one was still running.
func (e *Engine) Overruns() uint64 { return atomic.LoadUint64(&e.overruns) }

func (e *Engine) Dropped() uint64 { return atomic.LoadUint64(&e.dropped) }

func (e *Engine) InFlight() int64 { return atomic.LoadInt64(&e.inflight) }

func (e *Engine) loop(ctx context.Context) {
	defer close(e.doneCh)
	defer close(e.out)
	defer e.wg.Wait()

	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	e.fire(ctx)
	for {
		select {
		case <-ticker.C:
			e.fire(ctx)
		case <-e.wakeup:
			e.fire(ctx)
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) fire(ctx context.Context) {
	atomic.AddUint64(&e.fired, 1)
	if n := atomic.AddInt64(&e.inflight, 1); n > 1 {
		atomic.AddUint64(&e.overruns, 1)
		e.log.Warn().
			Int64("in_flight", n).
			Dur("period", e.period).
			Msg("previous reminder cycle still running")
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer atomic.AddInt64(&e.inflight, -1)

		report, err := e.cycler.RunCycle(ctx)
		if report.Duration > e.period {
			e.log.Warn().
				Str("cycle_id", report.CycleID).
				Dur("duration", report.Duration).
				Dur("period", e.period).
				Msg("reminder cycle exceeded its period")
		}
		select {
		case e.out <- Result{Report: report, Err: err}:
		default:
			atomic.AddUint64(&e.dropped, 1)
		}
	}()
}
