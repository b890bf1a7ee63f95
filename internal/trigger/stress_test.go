package trigger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sandeepkv93/remindd/internal/runner"
)

func TestEngineStressConcurrentTriggers(t *testing.T) {
	var calls int64
	cycler := CycleFunc(func(context.Context) (runner.RunReport, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(time.Millisecond)
		return runner.RunReport{}, nil
	})
	engine, err := NewEngine(cycler, 2*time.Millisecond, 4096, zerolog.Nop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.Start(context.Background())

	const workers = 8
	const perWorker = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				engine.Trigger()
			}
		}()
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)
	engine.Stop()

	received := 0
	for range engine.C() {
		received++
	}
	if uint64(atomic.LoadInt64(&calls)) != engine.Fired() {
		t.Fatalf("fired=%d but ran=%d", engine.Fired(), atomic.LoadInt64(&calls))
	}
	if uint64(received)+engine.Dropped() != engine.Fired() {
		t.Fatalf("results lost: received=%d dropped=%d fired=%d", received, engine.Dropped(), engine.Fired())
	}
	if engine.InFlight() != 0 {
		t.Fatalf("expected no cycles in flight after stop, got %d", engine.InFlight())
	}
}
