package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"
	domain "github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shipping"
)

// invoicePrefix makes invoice ids derived from marketplace transactions
// recognisable in the shop system.
const invoicePrefix = "EB-"

// OrderService propagates order facts in both directions: it imports new
// marketplace orders into the shop system and pushes paid/shipped/canceled
// status changes back to the marketplace.
type OrderService struct {
	invoices     catalog.SourceInvoiceRepository
	sourceItems  catalog.SourceItemRepository
	transactions mirror.TransactionRepository
	client       domain.MarketplaceClient
	cfg          Config
	logger       *zap.Logger
	now          func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(
	invoices catalog.SourceInvoiceRepository,
	sourceItems catalog.SourceItemRepository,
	transactions mirror.TransactionRepository,
	client domain.MarketplaceClient,
	cfg Config,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		invoices:     invoices,
		sourceItems:  sourceItems,
		transactions: transactions,
		client:       client,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// ---------------------------------------------------------------------------
// Order import
// ---------------------------------------------------------------------------

// ImportOrders pulls marketplace orders created since the given time and
// records each unseen order line as a mirror transaction. Cancelled orders
// are never imported. Each line commits individually, so a crash mid-import
// loses at most the line in flight; re-running is safe because lines
// already mirrored are skipped by transaction id.
func (s *OrderService) ImportOrders(ctx context.Context, since time.Time) (*RunReport, error) {
	report := newRunReport("import_orders", s.now(), s.cfg.MaxReportErrors)

	orders, err := s.client.GetOrders(ctx, since)
	if err != nil {
		return report.finish(s.now()), fmt.Errorf("fetch orders: %w", err)
	}

	for i := range orders {
		s.importOrder(ctx, &orders[i], report)
	}

	return report.finish(s.now()), nil
}

// ImportOrder imports a single order by id, the event-driven counterpart of
// ImportOrders.
func (s *OrderService) ImportOrder(ctx context.Context, orderID string) (*RunReport, error) {
	report := newRunReport("import_order", s.now(), s.cfg.MaxReportErrors)

	order, err := s.client.GetOrder(ctx, orderID)
	if err != nil {
		return report.finish(s.now()), fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	s.importOrder(ctx, order, report)
	return report.finish(s.now()), nil
}

func (s *OrderService) importOrder(ctx context.Context, order *domain.RemoteOrder, report *RunReport) {
	if order.Status == domain.RemoteOrderStatusCancelled {
		report.skip()
		return
	}

	for _, line := range order.LineItems {
		if err := s.importLine(ctx, order, line); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				report.skip()
				continue
			}
			s.logger.Error("Failed to import order line",
				zap.String("order_id", order.OrderID),
				zap.String("transaction_id", line.TransactionID),
				zap.Error(err),
			)
			report.failure(line.TransactionID, "import_order", err)
			continue
		}
		report.success()
	}
}

// importLine records one order line: mirror transaction first, stock
// decrement second. The transaction id is the idempotency key, so a crash
// between the two steps re-runs only the decrement on the next import.
func (s *OrderService) importLine(ctx context.Context, order *domain.RemoteOrder, line domain.RemoteLineItem) error {
	if _, err := s.transactions.FindByTransactionID(ctx, line.TransactionID); err == nil {
		return shared.ErrAlreadyExists
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	tx, err := mirror.NewTransaction(line.TransactionID, order.OrderID, invoicePrefix+line.TransactionID, order.CreatedAt)
	if err != nil {
		return err
	}
	if err := s.transactions.Save(ctx, tx); err != nil {
		return fmt.Errorf("save transaction %s: %w", line.TransactionID, err)
	}

	if err := s.sourceItems.DecrementQuantity(ctx, line.SKU, line.Quantity); err != nil {
		return fmt.Errorf("decrement stock for item %s: %w", line.SKU, err)
	}

	s.logger.Info("Imported order line",
		zap.String("order_id", order.OrderID),
		zap.String("transaction_id", line.TransactionID),
		zap.String("item_id", line.SKU),
		zap.Int("quantity", line.Quantity),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Status synchronization
// ---------------------------------------------------------------------------

// SynchronizeOrderStatus evaluates the three status dimensions in order:
// payments, shipments, cancellations. Every evaluated transaction advances
// its guard timestamp even when the remote call fails, so an invoice that
// keeps failing does not wedge the scan; the row is re-selected once the
// invoice changes again.
func (s *OrderService) SynchronizeOrderStatus(ctx context.Context) (*RunReport, error) {
	report := newRunReport("synchronize_orders", s.now(), s.cfg.MaxReportErrors)

	s.runStatusScan(ctx, report, "mark_paid", s.transactions.FindUnpaid, s.syncPayment)
	s.runStatusScan(ctx, report, "mark_shipped", s.transactions.FindUnshipped, s.syncShipment)
	s.runStatusScan(ctx, report, "cancel_order", s.transactions.FindUncanceled, s.syncCancellation)

	return report.finish(s.now()), ctx.Err()
}

type statusScan func(ctx context.Context, filter shared.Filter) ([]mirror.StatusPair, error)
type statusAction func(ctx context.Context, invoice *catalog.SourceInvoice, tx *mirror.Transaction) (bool, error)

// runStatusScan drives one status dimension to convergence. The action
// returns whether remote state changed; either way the transaction's guard
// timestamp has advanced, so the row drops out of the scan and the first
// page always holds fresh work.
func (s *OrderService) runStatusScan(ctx context.Context, report *RunReport, operation string, scan statusScan, action statusAction) {
	attempted := make(map[string]bool)

	for {
		if ctx.Err() != nil {
			return
		}

		pairs, err := scan(ctx, s.scanFilter())
		if err != nil {
			s.logger.Error("Status scan failed", zap.String("operation", operation), zap.Error(err))
			report.failure("", operation, err)
			return
		}

		progressed := false
		for i := range pairs {
			pair := &pairs[i]
			if attempted[pair.Transaction.TransactionID] {
				continue
			}
			attempted[pair.Transaction.TransactionID] = true
			progressed = true

			changed, err := action(ctx, &pair.Invoice, &pair.Transaction)

			// The guard advances on every outcome. A failed save is the
			// one error that leaves the row selectable, which is exactly
			// what a retry needs.
			pair.Transaction.Touch(s.now())
			if saveErr := s.transactions.Save(ctx, &pair.Transaction); saveErr != nil && err == nil {
				err = saveErr
			}

			switch {
			case err != nil:
				s.logger.Error("Status action failed",
					zap.String("operation", operation),
					zap.String("transaction_id", pair.Transaction.TransactionID),
					zap.Error(err),
				)
				report.failure(pair.Transaction.TransactionID, operation, err)
			case changed:
				report.success()
			default:
				report.skip()
			}
		}

		if len(pairs) == 0 || !progressed {
			return
		}
	}
}

// syncPayment propagates a received payment to the marketplace.
func (s *OrderService) syncPayment(ctx context.Context, invoice *catalog.SourceInvoice, tx *mirror.Transaction) (bool, error) {
	if !invoice.Paid() || tx.Paid {
		return false, nil
	}

	if err := s.client.MarkPaid(ctx, tx.OrderID); err != nil {
		return false, fmt.Errorf("mark order %s paid: %w", tx.OrderID, err)
	}

	tx.MarkPaid(s.now())
	s.logger.Info("Marked order paid",
		zap.String("order_id", tx.OrderID),
		zap.String("invoice_id", tx.InvoiceID),
	)
	return true, nil
}

// syncShipment propagates a dispatch to the marketplace. Dispatches older
// than the freshness window are recorded locally without a remote call; a
// months-old shipment notification is worthless to the buyer and likely to
// be rejected.
func (s *OrderService) syncShipment(ctx context.Context, invoice *catalog.SourceInvoice, tx *mirror.Transaction) (bool, error) {
	if !invoice.Shippable() || (tx.Shipped && tx.Tracking == invoice.Tracking) {
		return false, nil
	}

	if !invoice.DispatchedWithin(s.now(), s.cfg.ShipmentFreshness) {
		tx.MarkShipped(invoice.Tracking, s.now())
		s.logger.Info("Recorded stale shipment without notification",
			zap.String("order_id", tx.OrderID),
			zap.String("invoice_id", tx.InvoiceID),
		)
		return false, nil
	}

	carrier := shipping.Resolve(invoice.Shipper, invoice.Tracking)
	shipment := domain.Shipment{
		Carrier:   carrier,
		Tracking:  invoice.Tracking,
		ShippedAt: *invoice.DispatchedAt,
	}
	if err := s.client.MarkShipped(ctx, tx.OrderID, shipment); err != nil {
		return false, fmt.Errorf("mark order %s shipped: %w", tx.OrderID, err)
	}

	tx.MarkShipped(invoice.Tracking, s.now())
	s.logger.Info("Marked order shipped",
		zap.String("order_id", tx.OrderID),
		zap.String("carrier", string(carrier)),
		zap.String("tracking", invoice.Tracking),
	)
	return true, nil
}

// syncCancellation propagates a closed invoice to the marketplace. Outside
// the marketplace cancellation window only the local fact is recorded. Paid
// orders are refunded in full after the cancellation.
func (s *OrderService) syncCancellation(ctx context.Context, invoice *catalog.SourceInvoice, tx *mirror.Transaction) (bool, error) {
	if !invoice.Closed || tx.Canceled {
		return false, nil
	}

	if !tx.WithinCancellationWindow(s.now(), s.cfg.CancellationWindow) {
		tx.MarkCanceled(s.now())
		s.logger.Info("Recorded cancellation outside remote window",
			zap.String("order_id", tx.OrderID),
			zap.String("invoice_id", tx.InvoiceID),
		)
		return false, nil
	}

	if err := s.client.CancelOrder(ctx, tx.OrderID); err != nil {
		return false, fmt.Errorf("cancel order %s: %w", tx.OrderID, err)
	}
	if tx.Paid {
		// Zero amount requests a full refund.
		if err := s.client.RefundOrder(ctx, tx.OrderID, decimal.Zero); err != nil {
			return false, fmt.Errorf("refund order %s: %w", tx.OrderID, err)
		}
	}

	tx.MarkCanceled(s.now())
	s.logger.Info("Canceled order",
		zap.String("order_id", tx.OrderID),
		zap.String("invoice_id", tx.InvoiceID),
		zap.Bool("refunded", tx.Paid),
	)
	return true, nil
}

// ---------------------------------------------------------------------------
// Single-invoice entry points
// ---------------------------------------------------------------------------

// SynchronizeInvoice runs all three status dimensions for a single invoice,
// the event-driven counterpart of SynchronizeOrderStatus.
func (s *OrderService) SynchronizeInvoice(ctx context.Context, invoiceID string) error {
	return s.synchronizeDimensions(ctx, invoiceID, s.syncPayment, s.syncShipment, s.syncCancellation)
}

// SynchronizePayment evaluates only the payment dimension for one invoice.
// For push notifications that already name the changed dimension, so a
// payment event does not trigger shipment or cancellation evaluation.
func (s *OrderService) SynchronizePayment(ctx context.Context, invoiceID string) error {
	return s.synchronizeDimensions(ctx, invoiceID, s.syncPayment)
}

// SynchronizeShipment evaluates only the shipment dimension for one invoice.
func (s *OrderService) SynchronizeShipment(ctx context.Context, invoiceID string) error {
	return s.synchronizeDimensions(ctx, invoiceID, s.syncShipment)
}

// SynchronizeCancellation evaluates only the cancellation dimension for one
// invoice.
func (s *OrderService) SynchronizeCancellation(ctx context.Context, invoiceID string) error {
	return s.synchronizeDimensions(ctx, invoiceID, s.syncCancellation)
}

// synchronizeDimensions loads the invoice with its mirror transaction and
// runs the given status dimensions against it. The evaluation timestamp
// advances regardless of outcome, like the batch scan.
func (s *OrderService) synchronizeDimensions(ctx context.Context, invoiceID string, actions ...statusAction) error {
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	tx, err := s.transactions.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: invoice %s has no mirror transaction", shared.ErrMissingCounterpart, invoiceID)
		}
		return err
	}

	var firstErr error
	for _, action := range actions {
		if _, err := action(ctx, invoice, tx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	tx.Touch(s.now())
	if err := s.transactions.Save(ctx, tx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *OrderService) scanFilter() shared.Filter {
	filter := shared.DefaultFilter()
	filter.PageSize = s.cfg.BatchSize
	return filter
}
