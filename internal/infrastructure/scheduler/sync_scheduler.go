package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/application/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// Service interfaces
// ---------------------------------------------------------------------------

// ListingReconciler runs the listing-side batch entry points. Implemented by
// reconcile.ListingService.
type ListingReconciler interface {
	ReconcileOversold(ctx context.Context) (*reconcile.RunReport, error)
	ReconcileQuantities(ctx context.Context) (*reconcile.RunReport, error)
	ReconcileContentUpdates(ctx context.Context) (*reconcile.RunReport, error)
	EndStaleListings(ctx context.Context) (*reconcile.RunReport, error)
	ReconcileNewListings(ctx context.Context) (*reconcile.RunReport, error)
}

// OrderSynchronizer runs the order-side batch entry points. Implemented by
// reconcile.OrderService.
type OrderSynchronizer interface {
	ImportOrders(ctx context.Context, since time.Time) (*reconcile.RunReport, error)
	SynchronizeOrderStatus(ctx context.Context) (*reconcile.RunReport, error)
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler drives the periodic reconciliation loops. A full listing
// cycle runs every CycleInterval; the cheaper order import/status pass runs
// every OrderInterval. Each pass runs under a CycleTimeout deadline so a
// stuck marketplace call cannot block the next tick forever.
type SyncScheduler struct {
	listings ListingReconciler
	orders   OrderSynchronizer
	logger   *zap.Logger

	cycleInterval time.Duration
	orderInterval time.Duration
	cycleTimeout  time.Duration
	orderLookback time.Duration

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSyncScheduler creates a scheduler over the two application services.
func NewSyncScheduler(
	listings ListingReconciler,
	orders OrderSynchronizer,
	schedCfg config.SchedulerConfig,
	orderLookback time.Duration,
	logger *zap.Logger,
) *SyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		listings:      listings,
		orders:        orders,
		logger:        logger,
		cycleInterval: schedCfg.CycleInterval,
		orderInterval: schedCfg.OrderInterval,
		cycleTimeout:  schedCfg.CycleTimeout,
		orderLookback: orderLookback,
	}
}

// Start launches the two loops. It is a no-op when already running.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.logger.Warn("sync scheduler already running")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.isRunning = true

	s.wg.Add(2)
	go s.runListingLoop(ctx)
	go s.runOrderLoop(ctx)

	s.logger.Info("sync scheduler started",
		zap.Duration("cycle_interval", s.cycleInterval),
		zap.Duration("order_interval", s.orderInterval),
		zap.Duration("cycle_timeout", s.cycleTimeout))

	return nil
}

// Stop cancels the loops and waits for in-flight passes to return, or for
// the provided context to expire.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loops are active.
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

func (s *SyncScheduler) runListingLoop(ctx context.Context) {
	defer s.wg.Done()

	// First cycle runs immediately so a restart does not wait a full
	// interval before repairing drift.
	s.runListingCycle(ctx)

	ticker := time.NewTicker(s.cycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("listing cycle loop stopped")
			return
		case <-ticker.C:
			s.runListingCycle(ctx)
		}
	}
}

func (s *SyncScheduler) runOrderLoop(ctx context.Context) {
	defer s.wg.Done()

	s.runOrderCycle(ctx)

	ticker := time.NewTicker(s.orderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("order cycle loop stopped")
			return
		case <-ticker.C:
			s.runOrderCycle(ctx)
		}
	}
}

// runListingCycle executes the batch entry points in priority order:
// oversold repair first, new-listing creation last.
func (s *SyncScheduler) runListingCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	started := time.Now()
	s.logger.Info("listing cycle started")

	steps := []struct {
		name string
		run  func(context.Context) (*reconcile.RunReport, error)
	}{
		{"reconcile_oversold", s.listings.ReconcileOversold},
		{"reconcile_quantities", s.listings.ReconcileQuantities},
		{"reconcile_content", s.listings.ReconcileContentUpdates},
		{"end_stale_listings", s.listings.EndStaleListings},
		{"reconcile_new_listings", s.listings.ReconcileNewListings},
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			s.logger.Warn("listing cycle aborted", zap.String("step", step.name), zap.Error(ctx.Err()))
			return
		}
		report, err := step.run(ctx)
		if err != nil {
			s.logger.Error("listing cycle step failed", zap.String("step", step.name), zap.Error(err))
			continue
		}
		s.logReport(step.name, report)
	}

	s.logger.Info("listing cycle finished", zap.Duration("elapsed", time.Since(started)))
}

func (s *SyncScheduler) runOrderCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	since := time.Now().Add(-s.orderLookback)

	report, err := s.orders.ImportOrders(ctx, since)
	if err != nil {
		s.logger.Error("order import failed", zap.Error(err))
	} else {
		s.logReport("import_orders", report)
	}

	if ctx.Err() != nil {
		s.logger.Warn("order cycle aborted", zap.Error(ctx.Err()))
		return
	}

	report, err = s.orders.SynchronizeOrderStatus(ctx)
	if err != nil {
		s.logger.Error("order status sync failed", zap.Error(err))
	} else {
		s.logReport("sync_order_status", report)
	}
}

func (s *SyncScheduler) logReport(step string, report *reconcile.RunReport) {
	if report == nil {
		return
	}
	fields := []zap.Field{
		zap.String("step", step),
		zap.String("run_id", report.RunID.String()),
		zap.Int("processed", report.Processed),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	}
	if report.Failed > 0 {
		s.logger.Warn("batch pass finished with failures", fields...)
		return
	}
	s.logger.Info("batch pass finished", fields...)
}
