package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
)

// GormSourceInvoiceRepository implements catalog.SourceInvoiceRepository using GORM
type GormSourceInvoiceRepository struct {
	db *gorm.DB
}

// NewGormSourceInvoiceRepository creates a new GormSourceInvoiceRepository
func NewGormSourceInvoiceRepository(db *gorm.DB) *GormSourceInvoiceRepository {
	return &GormSourceInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID
func (r *GormSourceInvoiceRepository) FindByID(ctx context.Context, id string) (*catalog.SourceInvoice, error) {
	var invoice catalog.SourceInvoice
	if err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// FindByIDs loads the given invoices in one round trip
func (r *GormSourceInvoiceRepository) FindByIDs(ctx context.Context, ids []string) ([]catalog.SourceInvoice, error) {
	if len(ids) == 0 {
		return []catalog.SourceInvoice{}, nil
	}

	var invoices []catalog.SourceInvoice
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// Ensure GormSourceInvoiceRepository implements SourceInvoiceRepository
var _ catalog.SourceInvoiceRepository = (*GormSourceInvoiceRepository)(nil)
