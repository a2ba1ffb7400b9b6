package mirror

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
)

// EndedQuantity is the sentinel quantity marking a mirror row whose remote
// listing has been ended. Ended rows are never hard-deleted so history and
// idempotency survive re-runs.
const EndedQuantity = -1

// Item is the persisted shadow of one remote listing. It records the
// last-known remote state for a single catalog item (1:1 with
// catalog.SourceItem) and is used to detect drift without querying the
// marketplace for every item on every cycle.
//
// UpdatedAt advances only after a remote call that is confirmed successful;
// a failed or skipped call must leave the row unchanged so the drift is
// re-selected on the next cycle. GORM's automatic timestamp handling is
// therefore disabled on this field.
type Item struct {
	ItemID    string          `gorm:"primaryKey;size:32"`
	ListingID string          `gorm:"size:64;not null;index"`
	OfferID   string          `gorm:"size:64;not null"`
	Quantity  int             `gorm:"not null;default:0"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime:false"`
	DeletedAt *time.Time
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "mirror_items"
}

// NewItem creates the mirror row for a freshly created remote listing.
func NewItem(itemID, listingID, offerID string, quantity int, price decimal.Decimal, now time.Time) (*Item, error) {
	if itemID == "" {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if listingID == "" {
		return nil, shared.NewDomainError("INVALID_LISTING", "Listing ID cannot be empty")
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Initial mirror quantity cannot be negative")
	}
	return &Item{
		ItemID:    itemID,
		ListingID: listingID,
		OfferID:   offerID,
		Quantity:  quantity,
		Price:     price,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Active returns true if the mirror row represents a live remote listing.
func (m *Item) Active() bool {
	return m.Quantity >= 0 && m.DeletedAt == nil
}

// Ended returns true if the listing has been ended.
func (m *Item) Ended() bool {
	return !m.Active()
}

// ApplyQuantity records a confirmed remote quantity change.
func (m *Item) ApplyQuantity(quantity int, now time.Time) error {
	if quantity < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Use End to withdraw a listing")
	}
	m.Quantity = quantity
	m.UpdatedAt = now
	return nil
}

// ApplyContent records a confirmed full remote update (inventory item,
// offer and publish all succeeded).
func (m *Item) ApplyContent(quantity int, price decimal.Decimal, now time.Time) error {
	if err := m.ApplyQuantity(quantity, now); err != nil {
		return err
	}
	m.Price = price
	return nil
}

// End marks the mirror row as ended. Calling End on an already ended row is
// a no-op so the operation stays idempotent.
func (m *Item) End(now time.Time) bool {
	if m.Ended() {
		return false
	}
	m.Quantity = EndedQuantity
	m.DeletedAt = &now
	m.UpdatedAt = now
	return true
}
