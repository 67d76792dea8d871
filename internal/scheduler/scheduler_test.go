package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weather-collector/internal/weather"
)

type countingRunner struct {
	mu       sync.Mutex
	starts   []time.Time
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	fail     bool
}

func (r *countingRunner) RunCycle(ctx context.Context) weather.CycleReport {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		max := r.maxSeen.Load()
		if n <= max || r.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}

	r.mu.Lock()
	r.starts = append(r.starts, time.Now())
	r.mu.Unlock()

	time.Sleep(r.delay)
	if r.fail {
		return weather.CycleReport{Outcome: weather.OutcomeFailed, ErrorKind: weather.KindUpstream}
	}
	return weather.CycleReport{Outcome: weather.OutcomePublished}
}

func (r *countingRunner) runs() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.starts...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerRunsImmediatelyThenPeriodically(t *testing.T) {
	runner := &countingRunner{}
	s := New(100*time.Millisecond, runner, quietLogger())

	started := time.Now()
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(450 * time.Millisecond)
	s.Stop()

	runs := runner.runs()
	if len(runs) < 3 {
		t.Fatalf("expected at least 3 cycles, got %d", len(runs))
	}
	if first := runs[0].Sub(started); first > 80*time.Millisecond {
		t.Fatalf("first cycle should run at startup, ran after %v", first)
	}
}

func TestSchedulerKeepsGoingAfterFailedCycles(t *testing.T) {
	runner := &countingRunner{fail: true}
	s := New(50*time.Millisecond, runner, quietLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	s.Stop()

	if n := len(runner.runs()); n < 3 {
		t.Fatalf("failed cycles must not halt scheduling, got %d runs", n)
	}
}

func TestSchedulerSkipsTicksWhileOverrunning(t *testing.T) {
	runner := &countingRunner{delay: 250 * time.Millisecond}
	s := New(50*time.Millisecond, runner, quietLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(600 * time.Millisecond)
	s.Stop()
	time.Sleep(300 * time.Millisecond) // let an in-flight cycle drain

	if max := runner.maxSeen.Load(); max != 1 {
		t.Fatalf("cycles overlapped: %d ran concurrently", max)
	}
	runs := runner.runs()
	if len(runs) < 2 {
		t.Fatalf("expected scheduling to continue after an overrun, got %d runs", len(runs))
	}
	// With skipped ticks there can be at most one run per cycle duration.
	if len(runs) > 4 {
		t.Fatalf("expected skipped ticks not to be queued, got %d runs", len(runs))
	}
}

func TestSchedulerRejectsInvalidSetup(t *testing.T) {
	if err := New(time.Minute, nil, quietLogger()).Start(); err == nil {
		t.Fatal("expected error without a runner")
	}
	if err := New(0, &countingRunner{}, quietLogger()).Start(); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
