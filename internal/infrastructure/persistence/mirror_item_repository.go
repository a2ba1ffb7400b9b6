package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
)

// targetQuantityExpr is the SQL rendition of the target quantity rule: no
// stock means the ended sentinel, otherwise stock capped at the listed
// maximum. It must stay in lockstep with the pure classification.
const targetQuantityExpr = "CASE WHEN source_items.quantity <= 0 THEN -1 ELSE LEAST(source_items.quantity, ?) END"

// eligibleExpr mirrors catalog.SourceItem.Eligible in SQL. Takes two time
// arguments (window start check, window end check).
const eligibleExpr = "source_items.quantity > 0 AND source_items.price > 0 AND source_items.listable" +
	" AND (source_items.available_from IS NULL OR source_items.available_from <= ?)" +
	" AND (source_items.available_to IS NULL OR source_items.available_to >= ?)"

// activeMirrorExpr selects mirror rows representing live listings.
const activeMirrorExpr = "mirror_items.quantity >= 0 AND mirror_items.deleted_at IS NULL"

// GormMirrorItemRepository implements mirror.ItemRepository using GORM.
// The drift scans join the authoritative catalog against the mirror so no
// scan ever needs a remote call.
type GormMirrorItemRepository struct {
	db *gorm.DB
}

// NewGormMirrorItemRepository creates a new GormMirrorItemRepository
func NewGormMirrorItemRepository(db *gorm.DB) *GormMirrorItemRepository {
	return &GormMirrorItemRepository{db: db}
}

// FindByItemID finds a mirror row by catalog item id
func (r *GormMirrorItemRepository) FindByItemID(ctx context.Context, itemID string) (*mirror.Item, error) {
	var item mirror.Item
	if err := r.db.WithContext(ctx).First(&item, "item_id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindByListingID finds a mirror row by remote listing id
func (r *GormMirrorItemRepository) FindByListingID(ctx context.Context, listingID string) (*mirror.Item, error) {
	var item mirror.Item
	if err := r.db.WithContext(ctx).First(&item, "listing_id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Save upserts a single mirror row. Timestamps are written exactly as set
// on the entity.
func (r *GormMirrorItemRepository) Save(ctx context.Context, item *mirror.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// ---------------------------------------------------------------------------
// Drift scans
// ---------------------------------------------------------------------------

// FindNewCandidates returns eligible source items with no active mirror row
func (r *GormMirrorItemRepository) FindNewCandidates(ctx context.Context, pol mirror.ScanPolicy, now time.Time, filter shared.Filter) ([]catalog.SourceItem, error) {
	cutoff := now.Add(-pol.NewCandidateLookback)

	var items []catalog.SourceItem
	err := r.db.WithContext(ctx).
		Model(&catalog.SourceItem{}).
		Joins("LEFT JOIN mirror_items ON mirror_items.item_id = source_items.id").
		Where("(mirror_items.item_id IS NULL OR mirror_items.quantity < 0)").
		Where(eligibleExpr, now, now).
		Where("(source_items.updated_at > ? OR source_items.last_sold_at > ?)", cutoff, cutoff).
		Order("source_items.updated_at " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindOversold returns active pairs where the mirror advertises more stock
// than the source target
func (r *GormMirrorItemRepository) FindOversold(ctx context.Context, pol mirror.ScanPolicy, filter shared.Filter) ([]mirror.Pair, error) {
	query := r.joined(ctx).
		Where("mirror_items.quantity > ("+targetQuantityExpr+")", pol.MaxListedQuantity)
	return r.scanPairs(ctx, query, filter)
}

// FindQuantityDrift returns active pairs whose mirror quantity differs from
// the source target quantity
func (r *GormMirrorItemRepository) FindQuantityDrift(ctx context.Context, pol mirror.ScanPolicy, filter shared.Filter) ([]mirror.Pair, error) {
	query := r.joined(ctx).
		Where("mirror_items.quantity <> ("+targetQuantityExpr+")", pol.MaxListedQuantity)
	return r.scanPairs(ctx, query, filter)
}

// FindContentStale returns active pairs whose source record changed after
// the mirror was last confirmed
func (r *GormMirrorItemRepository) FindContentStale(ctx context.Context, pol mirror.ScanPolicy, filter shared.Filter) ([]mirror.Pair, error) {
	query := r.joined(ctx).
		Where("(source_items.updated_at > mirror_items.updated_at"+
			" OR ABS(source_items.price - mirror_items.price) >= ?"+
			" OR mirror_items.quantity <> ("+targetQuantityExpr+"))",
			pol.MinorUnitThreshold, pol.MaxListedQuantity)
	return r.scanPairs(ctx, query, filter)
}

// FindPriceDrift returns active pairs whose price delta reaches the given
// threshold
func (r *GormMirrorItemRepository) FindPriceDrift(ctx context.Context, threshold decimal.Decimal, filter shared.Filter) ([]mirror.Pair, error) {
	query := r.joined(ctx).
		Where("ABS(source_items.price - mirror_items.price) >= ?", threshold)
	return r.scanPairs(ctx, query, filter)
}

// FindStaleUnavailable returns active pairs whose source item is no longer
// eligible and must be ended
func (r *GormMirrorItemRepository) FindStaleUnavailable(ctx context.Context, now time.Time, filter shared.Filter) ([]mirror.Pair, error) {
	query := r.joined(ctx).
		Where("NOT ("+eligibleExpr+")", now, now)
	return r.scanPairs(ctx, query, filter)
}

// Counts reports how many items currently match each classification
func (r *GormMirrorItemRepository) Counts(ctx context.Context, pol mirror.ScanPolicy, now time.Time) (*mirror.DriftCounts, error) {
	counts := &mirror.DriftCounts{}
	cutoff := now.Add(-pol.NewCandidateLookback)

	err := r.db.WithContext(ctx).
		Model(&catalog.SourceItem{}).
		Joins("LEFT JOIN mirror_items ON mirror_items.item_id = source_items.id").
		Where("(mirror_items.item_id IS NULL OR mirror_items.quantity < 0)").
		Where(eligibleExpr, now, now).
		Where("(source_items.updated_at > ? OR source_items.last_sold_at > ?)", cutoff, cutoff).
		Count(&counts.NewCandidates).Error
	if err != nil {
		return nil, fmt.Errorf("count new candidates: %w", err)
	}

	type scan struct {
		name  string
		dest  *int64
		query *gorm.DB
	}
	scans := []scan{
		{"oversold", &counts.Oversold,
			r.joined(ctx).Where("mirror_items.quantity > ("+targetQuantityExpr+")", pol.MaxListedQuantity)},
		{"quantity drift", &counts.QuantityDrift,
			r.joined(ctx).Where("mirror_items.quantity <> ("+targetQuantityExpr+")", pol.MaxListedQuantity)},
		{"content stale", &counts.ContentStale,
			r.joined(ctx).Where("(source_items.updated_at > mirror_items.updated_at"+
				" OR ABS(source_items.price - mirror_items.price) >= ?"+
				" OR mirror_items.quantity <> ("+targetQuantityExpr+"))",
				pol.MinorUnitThreshold, pol.MaxListedQuantity)},
		{"price drift", &counts.PriceDrift,
			r.joined(ctx).Where("ABS(source_items.price - mirror_items.price) >= ?", pol.MinorUnitThreshold)},
		{"stale unavailable", &counts.StaleUnavailable,
			r.joined(ctx).Where("NOT ("+eligibleExpr+")", now, now)},
	}
	for _, s := range scans {
		if err := s.query.Count(s.dest).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", s.name, err)
		}
	}

	return counts, nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// joined starts a query over active mirror rows joined with their source
// items.
func (r *GormMirrorItemRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&mirror.Item{}).
		Joins("INNER JOIN source_items ON source_items.id = mirror_items.item_id").
		Where(activeMirrorExpr)
}

// scanPairs runs the prepared join query, then loads the source side in one
// batched read and assembles the pairs.
func (r *GormMirrorItemRepository) scanPairs(ctx context.Context, query *gorm.DB, filter shared.Filter) ([]mirror.Pair, error) {
	var mirrors []mirror.Item
	err := query.
		Select("mirror_items.*").
		Order("mirror_items.updated_at " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&mirrors).Error
	if err != nil {
		return nil, err
	}
	if len(mirrors) == 0 {
		return []mirror.Pair{}, nil
	}

	ids := make([]string, len(mirrors))
	for i, m := range mirrors {
		ids[i] = m.ItemID
	}

	var sources []catalog.SourceItem
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&sources).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]catalog.SourceItem, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}

	pairs := make([]mirror.Pair, 0, len(mirrors))
	for _, m := range mirrors {
		source, ok := byID[m.ItemID]
		if !ok {
			// The join guarantees the source row existed; a miss here means
			// it was deleted between the two reads. Skip it this cycle.
			continue
		}
		pairs = append(pairs, mirror.Pair{Source: source, Mirror: m})
	}
	return pairs, nil
}

// Ensure GormMirrorItemRepository implements ItemRepository
var _ mirror.ItemRepository = (*GormMirrorItemRepository)(nil)
