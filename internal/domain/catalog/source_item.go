package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceItem is the authoritative warehouse record for a single catalog item.
// It is owned by the shop system; the sync engine only reads it, except for
// the quantity decrement applied when a marketplace order is imported.
type SourceItem struct {
	ID            string          `gorm:"primaryKey;size:32"`
	Title         string          `gorm:"size:255;not null"`
	GroupCode     string          `gorm:"size:16;not null"`
	Quantity      int             `gorm:"not null;default:0"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Listable      bool            `gorm:"not null;default:false"`
	AvailableFrom *time.Time
	AvailableTo   *time.Time
	LastSoldAt    *time.Time
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SourceItem) TableName() string {
	return "source_items"
}

// InStock returns true if the item has sellable stock
func (i *SourceItem) InStock() bool {
	return i.Quantity > 0
}

// WithinAvailabilityWindow returns true if now falls inside the item's
// availability window. An unset bound is treated as open.
func (i *SourceItem) WithinAvailabilityWindow(now time.Time) bool {
	if i.AvailableFrom != nil && now.Before(*i.AvailableFrom) {
		return false
	}
	if i.AvailableTo != nil && now.After(*i.AvailableTo) {
		return false
	}
	return true
}

// Eligible returns true if the item may be listed on the marketplace at all:
// positive stock, positive price, listable flag set, and inside the
// availability window.
func (i *SourceItem) Eligible(now time.Time) bool {
	return i.InStock() &&
		i.Price.IsPositive() &&
		i.Listable &&
		i.WithinAvailabilityWindow(now)
}

// RecentlyActive returns true if the item was modified or sold within the
// lookback window. New listings are only created for recently active items
// so long-dormant stock is not relisted by accident.
func (i *SourceItem) RecentlyActive(now time.Time, lookback time.Duration) bool {
	cutoff := now.Add(-lookback)
	if i.UpdatedAt.After(cutoff) {
		return true
	}
	return i.LastSoldAt != nil && i.LastSoldAt.After(cutoff)
}
