package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

// countingChecker counts passes and optionally panics on the first one
type countingChecker struct {
	passes     atomic.Int64
	panicFirst bool
}

func (c *countingChecker) CheckAllAlerts(ctx context.Context, userID *uuid.UUID) error {
	n := c.passes.Add(1)
	if c.panicFirst && n == 1 {
		panic("boom")
	}
	return nil
}

func waitForPasses(t *testing.T, checker *countingChecker, want int64, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if checker.passes.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d passes, saw %d", want, checker.passes.Load())
}

func TestSchedulerRunsPasses(t *testing.T) {
	checker := &countingChecker{}
	s := NewAlertScheduler(checker, 20*time.Millisecond)

	s.Start()
	defer s.Stop()

	waitForPasses(t, checker, 3, 2*time.Second)
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	checker := &countingChecker{}
	s := NewAlertScheduler(checker, 20*time.Millisecond)

	s.Start()
	s.Start()
	s.Start()
	defer s.Stop()

	if !s.IsActive() {
		t.Fatal("scheduler should be active after Start")
	}

	waitForPasses(t, checker, 2, 2*time.Second)

	// With a single ticker, pass counts grow roughly linearly; a tripled
	// ticker would blow well past this bound inside the window.
	time.Sleep(100 * time.Millisecond)
	if got := checker.passes.Load(); got > 12 {
		t.Errorf("pass count %d suggests duplicate tickers", got)
	}
}

func TestSchedulerStopPreventsFutureTicks(t *testing.T) {
	checker := &countingChecker{}
	s := NewAlertScheduler(checker, 20*time.Millisecond)

	s.Start()
	waitForPasses(t, checker, 1, 2*time.Second)

	s.Stop()
	s.Stop() // idempotent

	if s.IsActive() {
		t.Fatal("scheduler should be inactive after Stop")
	}

	settled := checker.passes.Load()
	time.Sleep(100 * time.Millisecond)
	// One in-flight tick may still land; beyond that the timer is dead
	if got := checker.passes.Load(); got > settled+1 {
		t.Errorf("passes continued after Stop: %d -> %d", settled, got)
	}
}

func TestSchedulerSurvivesPanicInPass(t *testing.T) {
	checker := &countingChecker{panicFirst: true}
	s := NewAlertScheduler(checker, 20*time.Millisecond)

	s.Start()
	defer s.Stop()

	// The first pass panics; later ticks must still run
	waitForPasses(t, checker, 3, 2*time.Second)

	if !s.IsActive() {
		t.Error("scheduler should stay active after a pass panic")
	}
}

func TestSchedulerNextCheckTime(t *testing.T) {
	checker := &countingChecker{}
	s := NewAlertScheduler(checker, 30*time.Second)

	if !s.NextCheckTime().IsZero() {
		t.Error("inactive scheduler has no next check time")
	}

	before := time.Now()
	s.Start()
	defer s.Stop()

	next := s.NextCheckTime()
	if next.Before(before.Add(29*time.Second)) || next.After(before.Add(31*time.Second)) {
		t.Errorf("next check %v not within the configured interval of now", next)
	}

	if s.IntervalSeconds() != 30 {
		t.Errorf("expected interval 30s, got %d", s.IntervalSeconds())
	}
}

func TestSchedulerRestartAfterStop(t *testing.T) {
	checker := &countingChecker{}
	s := NewAlertScheduler(checker, 20*time.Millisecond)

	s.Start()
	waitForPasses(t, checker, 1, 2*time.Second)
	s.Stop()

	s.Start()
	defer s.Stop()

	if !s.IsActive() {
		t.Fatal("scheduler should be active after restart")
	}
	waitForPasses(t, checker, 3, 2*time.Second)
}
