package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/openbanking-mcp/internal/metrics"
)

// Sweeper runs retention cleanup on a fixed interval as a background
// worker. Safe for a single Start; Stop waits for the in-flight pass.
type Sweeper struct {
	enforcer  *Enforcer
	interval  time.Duration
	collector metrics.Collector
	log       zerolog.Logger

	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	started   bool
	closed    bool
}

// NewSweeper creates a sweeper that runs enforcer.Cleanup every
// interval.
func NewSweeper(enforcer *Enforcer, interval time.Duration, collector metrics.Collector, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		enforcer:  enforcer,
		interval:  interval,
		collector: collector,
		log:       log.With().Str("component", "retention-sweeper").Logger(),
		closeChan: make(chan struct{}),
	}
}

// Start launches the background loop. The first pass runs immediately
// so a fresh deployment prunes leftover files without waiting a full
// interval.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sweeper is closed")
	}
	if s.started {
		return fmt.Errorf("sweeper already started")
	}
	s.started = true

	s.wg.Add(1)
	go s.run(ctx)

	s.log.Info().Dur("interval", s.interval).Msg("Retention sweeper started")
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeChan:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	report, err := s.enforcer.Cleanup(ctx, false)
	if err != nil {
		s.log.Error().Err(err).Msg("Retention sweep failed")
		return
	}

	s.collector.RecordRetentionSweep(report.FilesDeleted, report.TotalSizeFreedBytes)
	if report.FilesDeleted > 0 || len(report.Errors) > 0 {
		s.log.Info().
			Int("deleted", report.FilesDeleted).
			Int64("bytes_freed", report.TotalSizeFreedBytes).
			Int("errors", len(report.Errors)).
			Msg("Retention sweep completed")
	}
}

// Stop shuts the loop down and waits for any in-flight pass, bounded
// by ctx. Stopping twice is a no-op.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closeChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
