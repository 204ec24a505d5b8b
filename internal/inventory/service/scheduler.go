package service

import (
	"context"
	"sync"
	"time"

	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/medflow/pharmacy-stock/pkg/logger"
)

// Sweeper periodically reconciles alerts and audits the ledger of every
// item. It repairs alerts missed by an asynchronous consumer and reports
// ledgers that no longer replay.
type Sweeper struct {
	service  *StockService
	interval time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SweepStats summarizes one cycle.
type SweepStats struct {
	Items        int
	Transitions  int
	Inconsistent int
	Failures     int
}

// NewSweeper creates a new sweeper
func NewSweeper(service *StockService, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: interval,
		logger:   log.WithComponent("sweeper"),
	}
}

// Start runs a cycle immediately and then on every tick until Stop or ctx
// is done. A non-positive interval disables the sweeper.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info().Msg("sweeper disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")

		s.RunOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("sweeper stopped")
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop stops the sweeper and waits for a running cycle to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// RunOnce sweeps every item once.
func (s *Sweeper) RunOnce(ctx context.Context) SweepStats {
	start := time.Now()
	var stats SweepStats

	ids, err := s.service.ListItemIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list items")
		return stats
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		stats.Items++

		tr, err := s.service.ReconcileItem(ctx, id)
		switch {
		case errors.Is(err, errors.ErrNotFound):
			// deleted since listing
			continue
		case err != nil:
			stats.Failures++
			s.logger.Error().Err(err).Str("item_id", id).Msg("alert reconcile failed")
			continue
		case !tr.Empty():
			stats.Transitions++
		}

		report, err := s.service.VerifyLedger(ctx, id)
		if err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				stats.Failures++
				s.logger.Error().Err(err).Str("item_id", id).Msg("ledger audit failed")
			}
			continue
		}
		if !report.Consistent {
			stats.Inconsistent++
		}
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("items", stats.Items).
		Int("transitions", stats.Transitions).
		Int("inconsistent", stats.Inconsistent).
		Int("failures", stats.Failures).
		Msg("sweep completed")
	return stats
}
