package catalog

import "context"

// SourceItemRepository reads warehouse items. The only write the engine is
// allowed is the stock decrement booked when a marketplace order line is
// imported.
type SourceItemRepository interface {
	FindByID(ctx context.Context, id string) (*SourceItem, error)
	FindByIDs(ctx context.Context, ids []string) ([]SourceItem, error)

	// DecrementQuantity reduces the item's stock by the given amount, never
	// below zero.
	DecrementQuantity(ctx context.Context, id string, by int) error
}

// SourceInvoiceRepository reads the shop's order ledger.
type SourceInvoiceRepository interface {
	FindByID(ctx context.Context, id string) (*SourceInvoice, error)
	FindByIDs(ctx context.Context, ids []string) ([]SourceInvoice, error)
}
