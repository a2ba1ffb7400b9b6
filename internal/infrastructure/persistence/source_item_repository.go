package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
)

// GormSourceItemRepository implements catalog.SourceItemRepository using GORM
type GormSourceItemRepository struct {
	db *gorm.DB
}

// NewGormSourceItemRepository creates a new GormSourceItemRepository
func NewGormSourceItemRepository(db *gorm.DB) *GormSourceItemRepository {
	return &GormSourceItemRepository{db: db}
}

// FindByID finds a source item by its ID
func (r *GormSourceItemRepository) FindByID(ctx context.Context, id string) (*catalog.SourceItem, error) {
	var item catalog.SourceItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindByIDs loads the given items in one round trip. Missing ids are absent
// from the result.
func (r *GormSourceItemRepository) FindByIDs(ctx context.Context, ids []string) ([]catalog.SourceItem, error) {
	if len(ids) == 0 {
		return []catalog.SourceItem{}, nil
	}

	var items []catalog.SourceItem
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// DecrementQuantity atomically reduces stock for an imported order line.
// The quantity never goes below zero.
func (r *GormSourceItemRepository) DecrementQuantity(ctx context.Context, id string, by int) error {
	if by <= 0 {
		return fmt.Errorf("%w: decrement must be positive", shared.ErrInvalidInput)
	}

	result := r.db.WithContext(ctx).
		Model(&catalog.SourceItem{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("GREATEST(quantity - ?, 0)", by))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormSourceItemRepository implements SourceItemRepository
var _ catalog.SourceItemRepository = (*GormSourceItemRepository)(nil)
