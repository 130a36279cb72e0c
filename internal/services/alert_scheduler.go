/**
 * @description
 * Background scheduler for the price-alert evaluation pass.
 * One instance per process, constructed at startup and passed to whatever
 * needs the control surface (no package-level singleton).
 *
 * Each tick launches the pass as a fire-and-forget goroutine with its own
 * recover boundary: the ticker never waits for a pass, a slow pass never
 * delays the next tick, and a panicking pass never stops the timer.
 * Stop() only prevents future ticks; in-flight passes run to completion.
 *
 * @dependencies
 * - standard "time", "sync"
 * - backend/internal/logger
 */

package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stockpulse/backend/internal/logger"
)

// AlertChecker runs one evaluation pass, optionally scoped to a user
type AlertChecker interface {
	CheckAllAlerts(ctx context.Context, userID *uuid.UUID) error
}

// AlertScheduler drives periodic alert evaluation
type AlertScheduler struct {
	checker  AlertChecker
	interval time.Duration

	mu        sync.Mutex
	active    bool
	stop      chan struct{}
	nextCheck time.Time
}

// NewAlertScheduler creates a scheduler that evaluates alerts every interval
func NewAlertScheduler(checker AlertChecker, interval time.Duration) *AlertScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AlertScheduler{
		checker:  checker,
		interval: interval,
	}
}

// Start arms the recurring timer. Idempotent: calling Start on a running
// scheduler is a no-op.
func (s *AlertScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return
	}

	s.active = true
	s.stop = make(chan struct{})
	s.nextCheck = time.Now().Add(s.interval)

	go s.run(s.stop)

	logger.Info("AlertScheduler: started (interval %s)", s.interval)
}

// Stop disarms the timer. Idempotent. In-flight passes are not
// interrupted; only future ticks are cancelled.
func (s *AlertScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	close(s.stop)
	s.stop = nil
	s.active = false

	logger.Info("AlertScheduler: stopped")
}

// IsActive reports whether the timer is armed
func (s *AlertScheduler) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IntervalSeconds returns the configured check interval in seconds
func (s *AlertScheduler) IntervalSeconds() int {
	return int(s.interval / time.Second)
}

// NextCheckTime estimates the next tick. Informational only; ticks can
// slip if the process pauses.
func (s *AlertScheduler) NextCheckTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return time.Time{}
	}
	return s.nextCheck
}

func (s *AlertScheduler) run(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.nextCheck = time.Now().Add(s.interval)
			s.mu.Unlock()

			// Fire-and-forget: the ticker never waits for a pass
			go s.runPass()
		}
	}
}

// runPass executes one evaluation pass behind its own error boundary
func (s *AlertScheduler) runPass() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("AlertScheduler: panic in evaluation pass: %v", r)
		}
	}()

	if err := s.checker.CheckAllAlerts(context.Background(), nil); err != nil {
		logger.Error("AlertScheduler: evaluation pass failed: %v", err)
	}
}
