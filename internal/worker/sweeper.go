package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IdleSweeper evicts abandoned form sessions
type IdleSweeper interface {
	SweepIdle(maxIdle time.Duration) int
}

// ExpirySweeper drops timed-out approval requests
type ExpirySweeper interface {
	SweepExpired() int
}

// Sweeper periodically evicts idle sessions and expired approval requests.
// Both stores also expire lazily on access; the sweeper just keeps memory
// bounded when actors go quiet. It owns its own lifecycle: Start spawns the
// loop, Stop cancels it and is safe to call more than once.
type Sweeper struct {
	sessions IdleSweeper
	gate     ExpirySweeper
	logger   *zap.Logger

	interval time.Duration
	maxIdle  time.Duration

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSweeper creates a new sweeper worker
func NewSweeper(sessions IdleSweeper, gate ExpirySweeper, interval, maxIdle time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		gate:     gate,
		logger:   logger,
		interval: interval,
		maxIdle:  maxIdle,
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("sweeper is already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true

	s.logger.Info("Sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("max_idle", s.maxIdle))

	go s.sweepLoop()

	return nil
}

// Stop stops the sweep loop
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}

	s.logger.Info("Sweeper stopped")
}

func (s *Sweeper) sweepLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("Sweep loop context cancelled")
			return

		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	idle := s.sessions.SweepIdle(s.maxIdle)
	expired := s.gate.SweepExpired()

	if idle > 0 || expired > 0 {
		s.logger.Info("Sweep completed",
			zap.Int("idle_sessions", idle),
			zap.Int("expired_approvals", expired))
	}
}
