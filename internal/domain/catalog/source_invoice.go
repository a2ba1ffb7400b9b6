package catalog

import "time"

// SourceInvoice is the authoritative order record kept by the shop system.
// One invoice corresponds to one marketplace order line; the engine reads it
// to decide which payment/shipment/cancellation facts still have to be
// propagated to the marketplace.
type SourceInvoice struct {
	ID           string `gorm:"primaryKey;size:32"`
	PaidAt       *time.Time
	DispatchedAt *time.Time
	Closed       bool      `gorm:"not null;default:false"`
	Tracking     string    `gorm:"size:64"`
	Shipper      string    `gorm:"size:64"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SourceInvoice) TableName() string {
	return "source_invoices"
}

// Paid returns true if payment has been received
func (v *SourceInvoice) Paid() bool {
	return v.PaidAt != nil
}

// Dispatched returns true if the parcel left the warehouse
func (v *SourceInvoice) Dispatched() bool {
	return v.DispatchedAt != nil
}

// Shippable returns true if the invoice carries everything a shipment
// notification needs: a dispatch date and a non-empty tracking number.
func (v *SourceInvoice) Shippable() bool {
	return v.Dispatched() && v.Tracking != ""
}

// DispatchedWithin returns true if the dispatch date lies inside the
// freshness window ending at now. Older shipments are not backfilled.
func (v *SourceInvoice) DispatchedWithin(now time.Time, window time.Duration) bool {
	return v.DispatchedAt != nil && v.DispatchedAt.After(now.Add(-window))
}
