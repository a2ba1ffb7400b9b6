package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shipping"
)

// ---------------------------------------------------------------------------
// Marketplace errors
// ---------------------------------------------------------------------------

var (
	// ErrMarketplaceUnavailable marks a transient failure (network, 5xx).
	// Inventory operations must not advance the mirror; the drift is
	// retried on the next cycle.
	ErrMarketplaceUnavailable = errors.New("sync: marketplace temporarily unavailable")
	// ErrMarketplaceRejected marks a permanent validation failure. Retrying
	// the same call verbatim cannot succeed; a compensating action runs
	// instead.
	ErrMarketplaceRejected = errors.New("sync: marketplace rejected request")
	// ErrInvalidQuantity is the specific rejection for a zero or negative
	// remote quantity; the compensating action is ending the listing.
	ErrInvalidQuantity = errors.New("sync: marketplace rejected quantity")
	// ErrMarketplaceRateLimited marks a throttled call.
	ErrMarketplaceRateLimited = errors.New("sync: marketplace rate limited")
	// ErrListingNotFound means the remote listing or offer does not exist.
	ErrListingNotFound = errors.New("sync: remote listing not found")
	// ErrOrderNotFound means the remote order does not exist.
	ErrOrderNotFound = errors.New("sync: remote order not found")
)

// IsTransient reports whether the error may succeed on a plain retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrMarketplaceUnavailable) || errors.Is(err, ErrMarketplaceRateLimited)
}

// IsPermanent reports whether the error is a validation rejection that a
// verbatim retry cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMarketplaceRejected) || errors.Is(err, ErrInvalidQuantity)
}

// ---------------------------------------------------------------------------
// Value objects
// ---------------------------------------------------------------------------

// InventoryItemPayload is the product half of a remote listing: the data
// published to the marketplace inventory item keyed by SKU.
type InventoryItemPayload struct {
	SKU         string
	Title       string
	Description string
	ImageURLs   []string
	Quantity    int
	// Aspects carries structured item attributes (artist, format, ...).
	Aspects map[string][]string
}

// OfferPayload is the commercial half of a remote listing: price, category
// and quantity for one SKU.
type OfferPayload struct {
	SKU        string
	CategoryID string
	Price      decimal.Decimal
	Currency   string
	Quantity   int
}

// RemoteOffer is the recovery-read view of an offer that already exists on
// the marketplace, e.g. from a previous partial run.
type RemoteOffer struct {
	OfferID   string
	SKU       string
	ListingID string
	Published bool
	Price     decimal.Decimal
	Quantity  int
}

// RemoteInventoryItem is one row of a full-catalog inventory pull.
type RemoteInventoryItem struct {
	SKU       string
	ListingID string
	OfferID   string
	Quantity  int
	Price     decimal.Decimal
}

// InventoryPage is one page of a resumable full-catalog pull.
type InventoryPage struct {
	Items      []RemoteInventoryItem
	NextCursor string
	Total      int
}

// MigrationResult reports the outcome of migrating one legacy listing into
// the inventory model.
type MigrationResult struct {
	ListingID string
	SKU       string
	OfferID   string
	Err       string
}

// Migrated returns true if the listing was migrated successfully.
func (r MigrationResult) Migrated() bool {
	return r.Err == ""
}

// RemoteOrderStatus is the order state reported by the marketplace.
type RemoteOrderStatus string

const (
	RemoteOrderStatusActive    RemoteOrderStatus = "ACTIVE"
	RemoteOrderStatusCompleted RemoteOrderStatus = "COMPLETED"
	RemoteOrderStatusCancelled RemoteOrderStatus = "CANCELLED"
)

// RemoteOrder is one marketplace order with its line items.
type RemoteOrder struct {
	OrderID   string
	Status    RemoteOrderStatus
	CreatedAt time.Time
	Total     decimal.Decimal
	Currency  string
	LineItems []RemoteLineItem
}

// RemoteLineItem is one order line; TransactionID keys the mirror
// transaction, SKU keys the catalog item.
type RemoteLineItem struct {
	TransactionID string
	SKU           string
	Quantity      int
	UnitPrice     decimal.Decimal
}

// Shipment carries everything a remote shipment notification needs.
type Shipment struct {
	Carrier   shipping.CarrierCode
	Tracking  string
	ShippedAt time.Time
}

// ---------------------------------------------------------------------------
// MarketplaceClient port
// ---------------------------------------------------------------------------

// MarketplaceClient is the port to the remote marketplace. The interface is
// defined here in the domain layer; the concrete HTTP adapter lives in the
// infrastructure layer. All mutations are "set to X", never "apply delta",
// so re-running an already-applied step is safe. Every non-success return
// is a per-item failure, never a fatal one.
type MarketplaceClient interface {
	// UpsertInventoryItem creates or replaces the inventory item for a SKU.
	UpsertInventoryItem(ctx context.Context, item InventoryItemPayload) error

	// CreateOffer creates an unpublished offer and returns its id.
	CreateOffer(ctx context.Context, offer OfferPayload) (string, error)

	// UpdateOffer replaces the offer identified by offerID.
	UpdateOffer(ctx context.Context, offerID string, offer OfferPayload) error

	// PublishOffer publishes an offer and returns the live listing id.
	PublishOffer(ctx context.Context, offerID string) (string, error)

	// WithdrawOffer ends the live listing behind an offer. Withdrawing an
	// already withdrawn offer returns ErrListingNotFound.
	WithdrawOffer(ctx context.Context, offerID string) error

	// SetQuantity sets the availability quantity for a SKU.
	SetQuantity(ctx context.Context, sku string, quantity int) error

	// FindOfferBySKU is the recovery read used before giving up on a failed
	// create: does an offer already exist for this SKU?
	FindOfferBySKU(ctx context.Context, sku string) (*RemoteOffer, error)

	// ListInventoryItems returns one page of the remote inventory. An empty
	// cursor starts from the beginning; the returned cursor resumes the
	// pull after a crash.
	ListInventoryItems(ctx context.Context, limit int, cursor string) (*InventoryPage, error)

	// BulkMigrateListings converts legacy listings to the inventory model.
	BulkMigrateListings(ctx context.Context, listingIDs []string) ([]MigrationResult, error)

	// GetOrders returns orders created since the given time.
	GetOrders(ctx context.Context, since time.Time) ([]RemoteOrder, error)

	// GetOrder returns a single order.
	GetOrder(ctx context.Context, orderID string) (*RemoteOrder, error)

	// MarkPaid records payment received for an order.
	MarkPaid(ctx context.Context, orderID string) error

	// MarkShipped records a shipment with carrier and tracking.
	MarkShipped(ctx context.Context, orderID string, shipment Shipment) error

	// CancelOrder cancels an order inside the marketplace cancellation
	// window.
	CancelOrder(ctx context.Context, orderID string) error

	// RefundOrder refunds a paid order, typically after a cancellation.
	RefundOrder(ctx context.Context, orderID string, amount decimal.Decimal) error
}
