package mirror

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
)

// Pair is one joined source/mirror row produced by the drift scans.
type Pair struct {
	Source catalog.SourceItem
	Mirror Item
}

// StatusPair is one joined invoice/transaction row produced by the order
// status scans.
type StatusPair struct {
	Invoice     catalog.SourceInvoice
	Transaction Transaction
}

// DriftCounts holds the number of items currently matching each
// classification, exposed through the read-only status view.
type DriftCounts struct {
	NewCandidates    int64 `json:"new_candidates"`
	QuantityDrift    int64 `json:"quantity_drift"`
	Oversold         int64 `json:"oversold"`
	ContentStale     int64 `json:"content_stale"`
	PriceDrift       int64 `json:"price_drift"`
	StaleUnavailable int64 `json:"stale_unavailable"`
}

// ScanPolicy carries the thresholds and windows the drift scans depend on.
// The same values parameterise the pure single-item classification so batch
// scans and webhook paths cannot diverge.
type ScanPolicy struct {
	// MaxListedQuantity caps the quantity advertised remotely.
	MaxListedQuantity int
	// MinorUnitThreshold is the price delta that makes an item need sync.
	MinorUnitThreshold decimal.Decimal
	// RepriceThreshold is the larger delta marking a repricing candidate.
	RepriceThreshold decimal.Decimal
	// NewCandidateLookback bounds how far back an item may have last been
	// modified or sold and still be listed for the first time.
	NewCandidateLookback time.Duration
}

// ItemRepository persists mirror items and answers the join-based drift
// scans of the reconciliation engine. Every scan has the same semantics as
// the pure classification in the sync package.
type ItemRepository interface {
	FindByItemID(ctx context.Context, itemID string) (*Item, error)
	FindByListingID(ctx context.Context, listingID string) (*Item, error)

	// Save upserts a single mirror row. Timestamps are written exactly as
	// set on the entity; one commit per item so partial batch progress
	// survives a crash.
	Save(ctx context.Context, item *Item) error

	// FindNewCandidates returns eligible source items with no active mirror
	// row, ordered by last modification.
	FindNewCandidates(ctx context.Context, pol ScanPolicy, now time.Time, filter shared.Filter) ([]catalog.SourceItem, error)

	// FindOversold returns active pairs where the mirror advertises more
	// stock than the source target.
	FindOversold(ctx context.Context, pol ScanPolicy, filter shared.Filter) ([]Pair, error)

	// FindQuantityDrift returns pairs whose mirror quantity differs from the
	// source target quantity.
	FindQuantityDrift(ctx context.Context, pol ScanPolicy, filter shared.Filter) ([]Pair, error)

	// FindContentStale returns active pairs whose source record changed
	// after the mirror was last confirmed.
	FindContentStale(ctx context.Context, pol ScanPolicy, filter shared.Filter) ([]Pair, error)

	// FindPriceDrift returns active pairs whose price delta reaches the
	// given threshold.
	FindPriceDrift(ctx context.Context, threshold decimal.Decimal, filter shared.Filter) ([]Pair, error)

	// FindStaleUnavailable returns active pairs whose source item is no
	// longer eligible and must be ended.
	FindStaleUnavailable(ctx context.Context, now time.Time, filter shared.Filter) ([]Pair, error)

	// Counts reports how many items currently match each classification.
	Counts(ctx context.Context, pol ScanPolicy, now time.Time) (*DriftCounts, error)
}

// TransactionRepository persists mirror transactions and answers the order
// status scans. Each scan applies the idempotency guard: the dimension is
// not yet reflected and the invoice changed since the last evaluation
// (or the row was never evaluated; for shipment, a differing tracking
// number also re-selects the row).
type TransactionRepository interface {
	FindByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)
	FindByOrderID(ctx context.Context, orderID string) ([]Transaction, error)
	FindByInvoiceID(ctx context.Context, invoiceID string) (*Transaction, error)

	Save(ctx context.Context, tx *Transaction) error

	// FindUnpaid returns pairs whose invoice is paid but whose mirror is not.
	FindUnpaid(ctx context.Context, filter shared.Filter) ([]StatusPair, error)

	// FindUnshipped returns pairs whose invoice is dispatched with tracking
	// but whose mirror shipment state or tracking differs.
	FindUnshipped(ctx context.Context, filter shared.Filter) ([]StatusPair, error)

	// FindUncanceled returns pairs whose invoice is closed but whose mirror
	// is not canceled.
	FindUncanceled(ctx context.Context, filter shared.Filter) ([]StatusPair, error)
}
