package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"hawkmon/internal/metrics"
)

// Scheduler runs at most one pass at a time. A tick that arrives while a pass
// is still running is dropped, not queued.
type Scheduler struct {
	pass func(ctx context.Context)
	log  *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

func New(pass func(ctx context.Context), logger *slog.Logger) *Scheduler {
	return &Scheduler{pass: pass, log: logger}
}

// Tick starts a pass in the background and reports whether it did.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		metrics.TicksSkipped.Inc()
		s.log.Warn("previous pass still running, tick skipped")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.pass(ctx)
	}()
	return true
}

// Wait blocks until the in-flight pass, if any, returns.
func (s *Scheduler) Wait() { s.wg.Wait() }
