package services

import (
	"context"
	"sync"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"go.uber.org/zap"
)

// ExpiredPendingRemover deletes pending verifications past their expiry
type ExpiredPendingRemover interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PendingSweeper periodically removes expired pending verifications. The TTL
// index does the same eventually; the sweeper keeps the delay bounded.
type PendingSweeper struct {
	store    ExpiredPendingRemover
	interval time.Duration
	logger   *logging.SafeLogger

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPendingSweeper creates a sweeper; call Start to run it
func NewPendingSweeper(store ExpiredPendingRemover, interval time.Duration, logger *logging.SafeLogger) *PendingSweeper {
	return &PendingSweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start runs the sweep loop in the background. It does nothing when interval is not positive.
func (s *PendingSweeper) Start() {
	if s.interval <= 0 {
		s.logger.Info("pending verification sweeper disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep(context.Background())
			}
		}
	}()

	s.logger.Info("pending verification sweeper started", zap.Duration("interval", s.interval))
}

// Sweep removes expired entries once and returns how many were deleted
func (s *PendingSweeper) Sweep(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := s.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to sweep expired verifications", zap.Error(err))
		return 0
	}
	if removed > 0 {
		observability.PendingVerificationsSwept.Add(float64(removed))
		s.logger.Info("swept expired verifications", zap.Int64("removed", removed))
	}
	return removed
}

// Stop ends the sweep loop and waits for it to exit
func (s *PendingSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}
