package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog/titleparse"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"
	domain "github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
)

// ListingService drives the listing lifecycle: it turns drift
// classifications into remote create/update/end actions and advances the
// mirror only on confirmed success. One item's failure never aborts a
// batch.
type ListingService struct {
	sourceItems catalog.SourceItemRepository
	mirrorItems mirror.ItemRepository
	client      domain.MarketplaceClient
	images      domain.ImageFinder
	cfg         Config
	logger      *zap.Logger
	now         func() time.Time
}

// NewListingService creates a new listing service.
func NewListingService(
	sourceItems catalog.SourceItemRepository,
	mirrorItems mirror.ItemRepository,
	client domain.MarketplaceClient,
	images domain.ImageFinder,
	cfg Config,
	logger *zap.Logger,
) *ListingService {
	return &ListingService{
		sourceItems: sourceItems,
		mirrorItems: mirrorItems,
		client:      client,
		images:      images,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// ---------------------------------------------------------------------------
// Single-item operations
// ---------------------------------------------------------------------------

// CreateListing publishes a new remote listing for an eligible source item
// and writes the mirror row on confirmed success. Items without a
// discoverable image are skipped with domain.ErrNoImage, which the batch
// layer counts as a skip rather than a failure.
//
// When any remote step fails, a recovery read checks whether an offer for
// this SKU already exists from a previous partial run; if so, the existing
// listing is recovered instead of creating a duplicate.
func (s *ListingService) CreateListing(ctx context.Context, source *catalog.SourceItem) (*mirror.Item, error) {
	now := s.now()
	target := domain.TargetQuantity(source.Quantity, s.cfg.Policy.MaxListedQuantity)
	if target <= 0 {
		return nil, fmt.Errorf("%w: item %s has no sellable stock", shared.ErrInvalidState, source.ID)
	}

	imageURLs, err := s.images.FindImages(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("image lookup for item %s: %w", source.ID, err)
	}
	if len(imageURLs) == 0 {
		s.logger.Info("Skipping listing without image", zap.String("item_id", source.ID))
		return nil, domain.ErrNoImage
	}

	price := domain.ListingPrice(source.Price, source.GroupCode)
	itemPayload := s.buildInventoryItem(source, imageURLs, target)
	offerPayload := s.buildOffer(source, price, target)

	if err := s.client.UpsertInventoryItem(ctx, itemPayload); err != nil {
		return s.recoverListing(ctx, source, err)
	}
	offerID, err := s.client.CreateOffer(ctx, offerPayload)
	if err != nil {
		return s.recoverListing(ctx, source, err)
	}
	listingID, err := s.client.PublishOffer(ctx, offerID)
	if err != nil {
		return s.recoverListing(ctx, source, err)
	}

	// The mirror records the source price; the category surcharge exists
	// only in the remote offer. Drift scans compare source and mirror
	// prices column to column.
	m, err := mirror.NewItem(source.ID, listingID, offerID, target, source.Price, now)
	if err != nil {
		return nil, err
	}
	if err := s.mirrorItems.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save mirror for item %s: %w", source.ID, err)
	}

	s.logger.Info("Created listing",
		zap.String("item_id", source.ID),
		zap.String("listing_id", listingID),
		zap.Int("quantity", target),
		zap.String("price", price.StringFixed(2)),
	)
	return m, nil
}

// recoverListing is the recovery read after a failed create: an offer left
// behind by a previous partial run is adopted instead of giving up.
func (s *ListingService) recoverListing(ctx context.Context, source *catalog.SourceItem, cause error) (*mirror.Item, error) {
	offer, err := s.client.FindOfferBySKU(ctx, source.ID)
	if err != nil || offer == nil || !offer.Published {
		return nil, cause
	}

	m, err := mirror.NewItem(source.ID, offer.ListingID, offer.OfferID, offer.Quantity, source.Price, s.now())
	if err != nil {
		return nil, cause
	}
	if err := s.mirrorItems.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save recovered mirror for item %s: %w", source.ID, err)
	}

	s.logger.Warn("Recovered existing listing after failed create",
		zap.String("item_id", source.ID),
		zap.String("listing_id", offer.ListingID),
		zap.Error(cause),
	)
	return m, nil
}

// UpdateQuantity issues a single remote set-quantity call. The mirror is
// updated if and only if the call is confirmed successful; any error leaves
// quantity and timestamp untouched so the drift is re-selected next cycle
// instead of being silently considered resolved.
//
// A target of zero or less delegates to EndListing, and so does a remote
// invalid-quantity rejection (compensating action instead of a verbatim
// retry).
func (s *ListingService) UpdateQuantity(ctx context.Context, source *catalog.SourceItem, m *mirror.Item) error {
	target := domain.TargetQuantity(source.Quantity, s.cfg.Policy.MaxListedQuantity)
	if target <= 0 {
		return s.EndListing(ctx, m)
	}

	if err := s.client.SetQuantity(ctx, m.ItemID, target); err != nil {
		if errors.Is(err, domain.ErrInvalidQuantity) {
			s.logger.Warn("Quantity rejected, ending listing instead",
				zap.String("item_id", m.ItemID),
				zap.Int("quantity", target),
			)
			return s.EndListing(ctx, m)
		}
		return fmt.Errorf("set quantity for item %s: %w", m.ItemID, err)
	}

	if err := m.ApplyQuantity(target, s.now()); err != nil {
		return err
	}
	return s.mirrorItems.Save(ctx, m)
}

// UpdateListing runs the full remote update protocol: inventory item,
// offer, republish. All steps must succeed before the mirror advances; a
// partial failure forces a full retry next cycle. The remote calls are
// "set to X", so re-running already-applied steps is safe.
func (s *ListingService) UpdateListing(ctx context.Context, source *catalog.SourceItem, m *mirror.Item) error {
	target := domain.TargetQuantity(source.Quantity, s.cfg.Policy.MaxListedQuantity)
	if target <= 0 {
		return s.EndListing(ctx, m)
	}

	imageURLs, err := s.images.FindImages(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("image lookup for item %s: %w", source.ID, err)
	}

	price := domain.ListingPrice(source.Price, source.GroupCode)
	if err := s.client.UpsertInventoryItem(ctx, s.buildInventoryItem(source, imageURLs, target)); err != nil {
		return fmt.Errorf("update inventory item %s: %w", source.ID, err)
	}
	if err := s.client.UpdateOffer(ctx, m.OfferID, s.buildOffer(source, price, target)); err != nil {
		return fmt.Errorf("update offer for item %s: %w", source.ID, err)
	}
	listingID, err := s.client.PublishOffer(ctx, m.OfferID)
	if err != nil {
		return fmt.Errorf("republish offer for item %s: %w", source.ID, err)
	}

	if listingID != "" {
		m.ListingID = listingID
	}
	if err := m.ApplyContent(target, source.Price, s.now()); err != nil {
		return err
	}
	return s.mirrorItems.Save(ctx, m)
}

// EndListing withdraws the remote offer and marks the mirror row ended.
// It is idempotent: an already ended row issues no remote call, and a
// remote "listing not found" counts as already withdrawn.
func (s *ListingService) EndListing(ctx context.Context, m *mirror.Item) error {
	if m.Ended() {
		return nil
	}

	if err := s.client.WithdrawOffer(ctx, m.OfferID); err != nil && !errors.Is(err, domain.ErrListingNotFound) {
		return fmt.Errorf("withdraw offer for item %s: %w", m.ItemID, err)
	}

	m.End(s.now())
	if err := s.mirrorItems.Save(ctx, m); err != nil {
		return fmt.Errorf("save ended mirror for item %s: %w", m.ItemID, err)
	}

	s.logger.Info("Ended listing",
		zap.String("item_id", m.ItemID),
		zap.String("listing_id", m.ListingID),
	)
	return nil
}

// ReconcileItem is the event-driven path for a single catalog item: it
// classifies the item and runs the highest-priority corrective action.
// Polling and push delivery share this logic with the batch scans.
func (s *ListingService) ReconcileItem(ctx context.Context, itemID string) ([]domain.Classification, error) {
	source, err := s.sourceItems.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	m, err := s.mirrorItems.FindByItemID(ctx, itemID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	matched := domain.Classify(s.now(), source, m, s.cfg.Policy)
	if len(matched) == 0 {
		return matched, nil
	}

	switch matched[0] {
	case domain.ClassificationOversold, domain.ClassificationQuantityDrift:
		return matched, s.UpdateQuantity(ctx, source, m)
	case domain.ClassificationContentStale, domain.ClassificationPriceDrift:
		return matched, s.UpdateListing(ctx, source, m)
	case domain.ClassificationNewCandidate:
		_, err := s.CreateListing(ctx, source)
		if errors.Is(err, domain.ErrNoImage) {
			return matched, nil
		}
		return matched, err
	case domain.ClassificationStaleUnavailable:
		return matched, s.EndListing(ctx, m)
	default:
		return matched, nil
	}
}

// ---------------------------------------------------------------------------
// Batch entry points
// ---------------------------------------------------------------------------

// ReconcileOversold corrects every item whose remote listing advertises
// more stock than the warehouse has. Runs before all other scans.
func (s *ListingService) ReconcileOversold(ctx context.Context) (*RunReport, error) {
	return s.runPairScan(ctx, "reconcile_oversold", func(ctx context.Context, filter shared.Filter) ([]mirror.Pair, error) {
		return s.mirrorItems.FindOversold(ctx, s.cfg.Policy, filter)
	}, s.UpdateQuantity)
}

// ReconcileQuantities corrects every quantity drift.
func (s *ListingService) ReconcileQuantities(ctx context.Context) (*RunReport, error) {
	return s.runPairScan(ctx, "reconcile_quantities", func(ctx context.Context, filter shared.Filter) ([]mirror.Pair, error) {
		return s.mirrorItems.FindQuantityDrift(ctx, s.cfg.Policy, filter)
	}, s.UpdateQuantity)
}

// ReconcileContentUpdates pushes full listing updates for items whose
// source record changed after the mirror was last confirmed.
func (s *ListingService) ReconcileContentUpdates(ctx context.Context) (*RunReport, error) {
	return s.runPairScan(ctx, "reconcile_content", func(ctx context.Context, filter shared.Filter) ([]mirror.Pair, error) {
		return s.mirrorItems.FindContentStale(ctx, s.cfg.Policy, filter)
	}, s.UpdateListing)
}

// EndStaleListings ends every live listing whose source item is no longer
// eligible.
func (s *ListingService) EndStaleListings(ctx context.Context) (*RunReport, error) {
	return s.runPairScan(ctx, "end_stale", func(ctx context.Context, filter shared.Filter) ([]mirror.Pair, error) {
		return s.mirrorItems.FindStaleUnavailable(ctx, s.now(), filter)
	}, func(ctx context.Context, _ *catalog.SourceItem, m *mirror.Item) error {
		return s.EndListing(ctx, m)
	})
}

// ReconcileNewListings creates listings for eligible items that are not
// listed yet.
func (s *ListingService) ReconcileNewListings(ctx context.Context) (*RunReport, error) {
	report := newRunReport("reconcile_new", s.now(), s.cfg.MaxReportErrors)
	attempted := make(map[string]bool)
	page := 1

	for {
		if err := ctx.Err(); err != nil {
			return report.finish(s.now()), err
		}

		filter := s.scanFilter()
		filter.Page = page
		candidates, err := s.mirrorItems.FindNewCandidates(ctx, s.cfg.Policy, s.now(), filter)
		if err != nil {
			return report.finish(s.now()), err
		}
		if len(candidates) == 0 {
			break
		}

		progressed := false
		succeeded := false
		for i := range candidates {
			source := &candidates[i]
			if attempted[source.ID] {
				continue
			}
			attempted[source.ID] = true
			progressed = true

			if _, err := s.CreateListing(ctx, source); err != nil {
				if errors.Is(err, domain.ErrNoImage) {
					report.skip()
					continue
				}
				s.logger.Error("Failed to create listing",
					zap.String("item_id", source.ID),
					zap.Error(err),
				)
				report.failure(source.ID, "create_listing", err)
				continue
			}
			report.success()
			succeeded = true
		}

		// Skipped candidates stay in the scan and keep their position, so a
		// page holding nothing new means the work lies on the next page.
		if progressed {
			if succeeded {
				page = 1
			}
			continue
		}
		if len(candidates) < filter.PageSize {
			break
		}
		page++
	}

	return report.finish(s.now()), nil
}

// PullRemoteInventory walks the remote inventory with resumable pagination
// and upserts one mirror row per remote listing. Each row is committed
// individually so a crash mid-pull only requires resumption.
func (s *ListingService) PullRemoteInventory(ctx context.Context, limit int) (*RunReport, error) {
	report := newRunReport("pull_remote_inventory", s.now(), s.cfg.MaxReportErrors)
	cursor := ""

	for limit <= 0 || report.Processed < limit {
		if err := ctx.Err(); err != nil {
			return report.finish(s.now()), err
		}

		pageSize := s.cfg.BatchSize
		if limit > 0 && limit-report.Processed < pageSize {
			pageSize = limit - report.Processed
		}

		page, err := s.client.ListInventoryItems(ctx, pageSize, cursor)
		if err != nil {
			return report.finish(s.now()), fmt.Errorf("list remote inventory: %w", err)
		}

		for _, remote := range page.Items {
			if err := s.adoptRemoteItem(ctx, remote); err != nil {
				s.logger.Error("Failed to mirror remote listing",
					zap.String("sku", remote.SKU),
					zap.String("listing_id", remote.ListingID),
					zap.Error(err),
				)
				report.failure(remote.SKU, "pull_inventory", err)
				continue
			}
			report.success()
		}

		if page.NextCursor == "" || len(page.Items) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	return report.finish(s.now()), nil
}

// adoptRemoteItem records the pulled remote state as the new last-known
// mirror state. The pull reads the remote system directly, so overwriting
// the mirror cannot mask drift.
func (s *ListingService) adoptRemoteItem(ctx context.Context, remote domain.RemoteInventoryItem) error {
	now := s.now()
	m, err := s.mirrorItems.FindByItemID(ctx, remote.SKU)
	if errors.Is(err, shared.ErrNotFound) {
		m, err = mirror.NewItem(remote.SKU, remote.ListingID, remote.OfferID, remote.Quantity, remote.Price, now)
		if err != nil {
			return err
		}
		return s.mirrorItems.Save(ctx, m)
	}
	if err != nil {
		return err
	}

	m.ListingID = remote.ListingID
	m.OfferID = remote.OfferID
	m.Price = remote.Price
	m.Quantity = remote.Quantity
	m.UpdatedAt = now
	return s.mirrorItems.Save(ctx, m)
}

// MigrateLegacyListings converts legacy listings to the inventory model in
// small chunks with an inter-chunk pause, respecting the marketplace rate
// limits.
func (s *ListingService) MigrateLegacyListings(ctx context.Context, listingIDs []string) (*RunReport, error) {
	report := newRunReport("migrate_legacy", s.now(), s.cfg.MaxReportErrors)

	chunkSize := s.cfg.MigrationChunkSize
	if chunkSize <= 0 {
		chunkSize = 5
	}

	for start := 0; start < len(listingIDs); start += chunkSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				return report.finish(s.now()), ctx.Err()
			case <-time.After(s.cfg.MigrationPause):
			}
		}

		end := start + chunkSize
		if end > len(listingIDs) {
			end = len(listingIDs)
		}

		results, err := s.client.BulkMigrateListings(ctx, listingIDs[start:end])
		if err != nil {
			// The whole chunk failed; record each listing and move on.
			for _, id := range listingIDs[start:end] {
				report.failure(id, "migrate", err)
			}
			s.logger.Error("Migration chunk failed", zap.Error(err))
			continue
		}

		for _, result := range results {
			if !result.Migrated() {
				report.failure(result.ListingID, "migrate", errors.New(result.Err))
				continue
			}
			if err := s.linkMigratedListing(ctx, result); err != nil {
				report.failure(result.ListingID, "migrate", err)
				continue
			}
			report.success()
		}
	}

	return report.finish(s.now()), nil
}

// linkMigratedListing stores the offer id a migration produced on the
// matching mirror row, creating the row if the listing was never mirrored.
func (s *ListingService) linkMigratedListing(ctx context.Context, result domain.MigrationResult) error {
	now := s.now()
	m, err := s.mirrorItems.FindByItemID(ctx, result.SKU)
	if errors.Is(err, shared.ErrNotFound) {
		m, err = mirror.NewItem(result.SKU, result.ListingID, result.OfferID, 0, decimal.Zero, now)
		if err != nil {
			return err
		}
		return s.mirrorItems.Save(ctx, m)
	}
	if err != nil {
		return err
	}

	m.ListingID = result.ListingID
	m.OfferID = result.OfferID
	m.UpdatedAt = now
	return s.mirrorItems.Save(ctx, m)
}

// DriftCounts exposes the current per-classification counts for the
// read-only status view.
func (s *ListingService) DriftCounts(ctx context.Context) (*mirror.DriftCounts, error) {
	return s.mirrorItems.Counts(ctx, s.cfg.Policy, s.now())
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

type pairScan func(ctx context.Context, filter shared.Filter) ([]mirror.Pair, error)
type pairAction func(ctx context.Context, source *catalog.SourceItem, m *mirror.Item) error

// runPairScan drives one drift scan to convergence. Successful corrections
// drop out of the scan, so after any success the loop rewinds to page one
// where fresh work surfaces. Items that fail or skip stay in the scan and
// keep their position; a full page of them would otherwise shadow everything
// behind it, so a page that yields no unattempted item advances to the next
// page instead of ending the scan.
func (s *ListingService) runPairScan(ctx context.Context, operation string, scan pairScan, action pairAction) (*RunReport, error) {
	report := newRunReport(operation, s.now(), s.cfg.MaxReportErrors)
	attempted := make(map[string]bool)
	page := 1

	for {
		if err := ctx.Err(); err != nil {
			return report.finish(s.now()), err
		}

		filter := s.scanFilter()
		filter.Page = page
		pairs, err := scan(ctx, filter)
		if err != nil {
			return report.finish(s.now()), err
		}
		if len(pairs) == 0 {
			break
		}

		progressed := false
		succeeded := false
		for i := range pairs {
			pair := &pairs[i]
			if attempted[pair.Mirror.ItemID] {
				continue
			}
			attempted[pair.Mirror.ItemID] = true
			progressed = true

			if err := action(ctx, &pair.Source, &pair.Mirror); err != nil {
				s.logger.Error("Corrective action failed",
					zap.String("operation", operation),
					zap.String("item_id", pair.Mirror.ItemID),
					zap.Error(err),
				)
				report.failure(pair.Mirror.ItemID, operation, err)
				continue
			}
			report.success()
			succeeded = true
		}

		if progressed {
			if succeeded {
				page = 1
			}
			continue
		}
		if len(pairs) < filter.PageSize {
			break
		}
		page++
	}

	return report.finish(s.now()), nil
}

func (s *ListingService) scanFilter() shared.Filter {
	filter := shared.DefaultFilter()
	filter.PageSize = s.cfg.BatchSize
	return filter
}

func (s *ListingService) buildInventoryItem(source *catalog.SourceItem, imageURLs []string, quantity int) domain.InventoryItemPayload {
	parsed := titleparse.Parse(source.Title)

	aspects := make(map[string][]string)
	if parsed.Artist != "" {
		aspects["Artist"] = []string{parsed.Artist}
	}
	if parsed.Format != "" {
		aspects["Format"] = []string{parsed.Format}
	}

	return domain.InventoryItemPayload{
		SKU:         source.ID,
		Title:       source.Title,
		Description: source.Title,
		ImageURLs:   imageURLs,
		Quantity:    quantity,
		Aspects:     aspects,
	}
}

func (s *ListingService) buildOffer(source *catalog.SourceItem, price decimal.Decimal, quantity int) domain.OfferPayload {
	category := domain.CategoryFor(source.GroupCode)
	return domain.OfferPayload{
		SKU:        source.ID,
		CategoryID: category.EbayCategoryID,
		Price:      price,
		Currency:   s.cfg.Currency,
		Quantity:   quantity,
	}
}
