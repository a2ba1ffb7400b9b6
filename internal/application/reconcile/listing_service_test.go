package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"
	domain "github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
)

func testItem(id string, quantity int) *catalog.SourceItem {
	return &catalog.SourceItem{
		ID:        id,
		Title:     "MOTORHEAD - Overkill (LP)",
		GroupCode: "LP",
		Quantity:  quantity,
		Price:     decimal.NewFromFloat(19.90),
		Listable:  true,
		UpdatedAt: testNow.Add(-time.Hour),
	}
}

func testMirror(t *testing.T, itemID string, quantity int) *mirror.Item {
	t.Helper()
	m, err := mirror.NewItem(itemID, "listing-"+itemID, "offer-"+itemID, quantity, decimal.NewFromFloat(19.90), testNow.Add(-24*time.Hour))
	require.NoError(t, err)
	return m
}

func newTestListingService(sourceItems *mockSourceItems, mirrorItems *mockMirrorItems, client *mockMarketplace, images *mockImages) *ListingService {
	svc := NewListingService(sourceItems, mirrorItems, client, images, DefaultConfig(), zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestListingService_CreateListing(t *testing.T) {
	t.Run("creates and publishes a new listing", func(t *testing.T) {
		source := testItem("10001", 5)
		mirrorItems := newMockMirrorItems()
		client := newMockMarketplace()
		images := &mockImages{urls: map[string][]string{"10001": {"https://img.example/10001.jpg"}}}
		svc := newTestListingService(newMockSourceItems(source), mirrorItems, client, images)

		m, err := svc.CreateListing(context.Background(), source)
		require.NoError(t, err)

		assert.Equal(t, "10001", m.ItemID)
		assert.Equal(t, "listing-offer-10001", m.ListingID)
		assert.Equal(t, "offer-10001", m.OfferID)
		// Stock of 5 is capped at the listed maximum of 3.
		assert.Equal(t, 3, m.Quantity)
		// The mirror keeps the source price; the LP surcharge only appears
		// in the remote offer.
		assert.True(t, m.Price.Equal(decimal.NewFromFloat(19.90)), "got price %s", m.Price)
		assert.Equal(t, testNow, m.UpdatedAt)
		require.Len(t, mirrorItems.saved, 1)
	})

	t.Run("skips items without an image", func(t *testing.T) {
		source := testItem("10002", 1)
		client := newMockMarketplace()
		svc := newTestListingService(newMockSourceItems(source), newMockMirrorItems(), client, &mockImages{})

		_, err := svc.CreateListing(context.Background(), source)
		require.ErrorIs(t, err, domain.ErrNoImage)
		assert.Zero(t, client.called("UpsertInventoryItem"))
	})

	t.Run("refuses items without sellable stock", func(t *testing.T) {
		source := testItem("10003", 0)
		svc := newTestListingService(newMockSourceItems(source), newMockMirrorItems(), newMockMarketplace(), &mockImages{})

		_, err := svc.CreateListing(context.Background(), source)
		require.Error(t, err)
	})

	t.Run("recovers an existing offer after a failed publish", func(t *testing.T) {
		source := testItem("10004", 2)
		mirrorItems := newMockMirrorItems()
		client := newMockMarketplace()
		client.publishErr["offer-10004"] = domain.ErrMarketplaceRejected
		client.offers["10004"] = &domain.RemoteOffer{
			OfferID:   "offer-10004",
			SKU:       "10004",
			ListingID: "listing-prev",
			Published: true,
			Price:     decimal.NewFromFloat(20.90),
			Quantity:  2,
		}
		images := &mockImages{urls: map[string][]string{"10004": {"https://img.example/10004.jpg"}}}
		svc := newTestListingService(newMockSourceItems(source), mirrorItems, client, images)

		m, err := svc.CreateListing(context.Background(), source)
		require.NoError(t, err)
		assert.Equal(t, "listing-prev", m.ListingID)
		require.Len(t, mirrorItems.saved, 1)
	})

	t.Run("returns the original error when no offer is recoverable", func(t *testing.T) {
		source := testItem("10005", 2)
		client := newMockMarketplace()
		client.upsertErr["10005"] = domain.ErrMarketplaceUnavailable
		images := &mockImages{urls: map[string][]string{"10005": {"https://img.example/10005.jpg"}}}
		mirrorItems := newMockMirrorItems()
		svc := newTestListingService(newMockSourceItems(source), mirrorItems, client, images)

		_, err := svc.CreateListing(context.Background(), source)
		require.ErrorIs(t, err, domain.ErrMarketplaceUnavailable)
		assert.Empty(t, mirrorItems.saved)
	})
}

func TestListingService_UpdateQuantity(t *testing.T) {
	t.Run("advances the mirror only on confirmed success", func(t *testing.T) {
		source := testItem("20001", 2)
		m := testMirror(t, "20001", 3)
		mirrorItems := newMockMirrorItems(m)
		client := newMockMarketplace()
		svc := newTestListingService(newMockSourceItems(source), mirrorItems, client, &mockImages{})

		require.NoError(t, svc.UpdateQuantity(context.Background(), source, m))
		assert.Equal(t, 2, m.Quantity)
		assert.Equal(t, testNow, m.UpdatedAt)
	})

	t.Run("leaves the mirror untouched on remote failure", func(t *testing.T) {
		source := testItem("20002", 2)
		m := testMirror(t, "20002", 3)
		before := m.UpdatedAt
		client := newMockMarketplace()
		client.setQtyErr["20002"] = domain.ErrMarketplaceUnavailable
		svc := newTestListingService(newMockSourceItems(source), newMockMirrorItems(m), client, &mockImages{})

		err := svc.UpdateQuantity(context.Background(), source, m)
		require.ErrorIs(t, err, domain.ErrMarketplaceUnavailable)
		assert.Equal(t, 3, m.Quantity)
		assert.Equal(t, before, m.UpdatedAt)
	})

	t.Run("ends the listing when the target drops to zero", func(t *testing.T) {
		source := testItem("20003", 0)
		m := testMirror(t, "20003", 2)
		client := newMockMarketplace()
		svc := newTestListingService(newMockSourceItems(source), newMockMirrorItems(m), client, &mockImages{})

		require.NoError(t, svc.UpdateQuantity(context.Background(), source, m))
		assert.True(t, m.Ended())
		assert.Equal(t, 1, client.called("WithdrawOffer"))
		assert.Zero(t, client.called("SetQuantity"))
	})

	t.Run("compensates a rejected quantity by ending the listing", func(t *testing.T) {
		source := testItem("20004", 2)
		m := testMirror(t, "20004", 3)
		client := newMockMarketplace()
		client.setQtyErr["20004"] = domain.ErrInvalidQuantity
		svc := newTestListingService(newMockSourceItems(source), newMockMirrorItems(m), client, &mockImages{})

		require.NoError(t, svc.UpdateQuantity(context.Background(), source, m))
		assert.True(t, m.Ended())
		assert.Equal(t, 1, client.called("WithdrawOffer"))
	})
}

func TestListingService_UpdateListing(t *testing.T) {
	t.Run("advances the mirror after all steps succeed", func(t *testing.T) {
		source := testItem("30001", 2)
		source.Price = decimal.NewFromFloat(25.00)
		m := testMirror(t, "30001", 3)
		client := newMockMarketplace()
		images := &mockImages{urls: map[string][]string{"30001": {"https://img.example/30001.jpg"}}}
		svc := newTestListingService(newMockSourceItems(source), newMockMirrorItems(m), client, images)

		require.NoError(t, svc.UpdateListing(context.Background(), source, m))
		assert.Equal(t, 2, m.Quantity)
		assert.True(t, m.Price.Equal(decimal.NewFromFloat(25.00)), "got price %s", m.Price)
		assert.Equal(t, testNow, m.UpdatedAt)
	})

	t.Run("does not advance on partial failure", func(t *testing.T) {
		source := testItem("30002", 2)
		m := testMirror(t, "30002", 3)
		before := *m
		client := newMockMarketplace()
		client.publishErr["offer-30002"] = domain.ErrMarketplaceUnavailable
		images := &mockImages{urls: map[string][]string{"30002": {"https://img.example/30002.jpg"}}}
		svc := newTestListingService(newMockSourceItems(source), newMockMirrorItems(m), client, images)

		err := svc.UpdateListing(context.Background(), source, m)
		require.Error(t, err)
		assert.Equal(t, before.Quantity, m.Quantity)
		assert.Equal(t, before.UpdatedAt, m.UpdatedAt)
	})
}

func TestListingService_EndListing(t *testing.T) {
	t.Run("withdraws the offer and marks the row ended", func(t *testing.T) {
		m := testMirror(t, "40001", 2)
		client := newMockMarketplace()
		svc := newTestListingService(newMockSourceItems(), newMockMirrorItems(m), client, &mockImages{})

		require.NoError(t, svc.EndListing(context.Background(), m))
		assert.Equal(t, mirror.EndedQuantity, m.Quantity)
		assert.NotNil(t, m.DeletedAt)
	})

	t.Run("treats an already withdrawn offer as success", func(t *testing.T) {
		m := testMirror(t, "40002", 2)
		client := newMockMarketplace()
		client.withdrawErr["offer-40002"] = domain.ErrListingNotFound
		svc := newTestListingService(newMockSourceItems(), newMockMirrorItems(m), client, &mockImages{})

		require.NoError(t, svc.EndListing(context.Background(), m))
		assert.True(t, m.Ended())
	})

	t.Run("is a no-op for an ended row", func(t *testing.T) {
		m := testMirror(t, "40003", 2)
		m.End(testNow.Add(-time.Hour))
		client := newMockMarketplace()
		svc := newTestListingService(newMockSourceItems(), newMockMirrorItems(m), client, &mockImages{})

		require.NoError(t, svc.EndListing(context.Background(), m))
		assert.Zero(t, client.called("WithdrawOffer"))
	})
}

func TestListingService_BatchScans(t *testing.T) {
	t.Run("oversold scan corrects every pair and reports failures per item", func(t *testing.T) {
		good := testItem("50001", 1)
		bad := testItem("50002", 1)
		mirrorItems := newMockMirrorItems()
		mirrorItems.pairs = []mirror.Pair{
			{Source: *good, Mirror: *testMirror(t, "50001", 3)},
			{Source: *bad, Mirror: *testMirror(t, "50002", 3)},
		}
		client := newMockMarketplace()
		client.setQtyErr["50002"] = domain.ErrMarketplaceUnavailable
		svc := newTestListingService(newMockSourceItems(good, bad), mirrorItems, client, &mockImages{})

		report, err := svc.ReconcileOversold(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, report.Processed)
		assert.Equal(t, 1, report.Succeeded)
		assert.Equal(t, 1, report.Failed)
		require.Len(t, report.Errors, 1)
		assert.Equal(t, "50002", report.Errors[0].ID)
	})

	t.Run("new listing scan counts missing images as skips", func(t *testing.T) {
		withImage := testItem("50003", 1)
		noImage := testItem("50004", 1)
		mirrorItems := newMockMirrorItems()
		mirrorItems.candidates = []catalog.SourceItem{*withImage, *noImage}
		client := newMockMarketplace()
		images := &mockImages{urls: map[string][]string{"50003": {"https://img.example/50003.jpg"}}}
		svc := newTestListingService(newMockSourceItems(withImage, noImage), mirrorItems, client, images)

		report, err := svc.ReconcileNewListings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, report.Processed)
		assert.Equal(t, 1, report.Succeeded)
		assert.Equal(t, 1, report.Skipped)
		assert.Zero(t, report.Failed)
	})

	t.Run("image-less candidates do not starve later pages", func(t *testing.T) {
		// Skipped candidates stay in the scan and hold their position, so
		// a first page full of them must not hide the work behind it.
		var candidates []catalog.SourceItem
		var sources []*catalog.SourceItem
		for i := 0; i < 12; i++ {
			item := testItem(fmt.Sprintf("51%03d", i), 1)
			sources = append(sources, item)
			candidates = append(candidates, *item)
		}
		listable := testItem("51999", 1)
		sources = append(sources, listable)
		candidates = append(candidates, *listable)

		mirrorItems := newMockMirrorItems()
		mirrorItems.candidates = candidates
		client := newMockMarketplace()
		images := &mockImages{urls: map[string][]string{"51999": {"https://img.example/51999.jpg"}}}
		svc := newTestListingService(newMockSourceItems(sources...), mirrorItems, client, images)
		svc.cfg.BatchSize = 5

		report, err := svc.ReconcileNewListings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 13, report.Processed)
		assert.Equal(t, 1, report.Succeeded)
		assert.Equal(t, 12, report.Skipped)
		assert.Equal(t, 1, client.called("PublishOffer"))
		assert.Contains(t, mirrorItems.items, "51999")
	})

	t.Run("persistent failures do not end the scan at the first page", func(t *testing.T) {
		mirrorItems := newMockMirrorItems()
		client := newMockMarketplace()
		var sources []*catalog.SourceItem
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("52%03d", i)
			item := testItem(id, 1)
			sources = append(sources, item)
			mirrorItems.pairs = append(mirrorItems.pairs, mirror.Pair{Source: *item, Mirror: *testMirror(t, id, 3)})
			client.setQtyErr[id] = domain.ErrMarketplaceUnavailable
		}
		svc := newTestListingService(newMockSourceItems(sources...), mirrorItems, client, &mockImages{})
		svc.cfg.BatchSize = 2

		report, err := svc.ReconcileOversold(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 5, report.Processed)
		assert.Equal(t, 5, report.Failed)
	})

	t.Run("stale scan ends listings without a quantity call", func(t *testing.T) {
		source := testItem("50005", 0)
		mirrorItems := newMockMirrorItems()
		mirrorItems.pairs = []mirror.Pair{{Source: *source, Mirror: *testMirror(t, "50005", 2)}}
		client := newMockMarketplace()
		svc := newTestListingService(newMockSourceItems(source), mirrorItems, client, &mockImages{})

		report, err := svc.EndStaleListings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Succeeded)
		assert.Equal(t, 1, client.called("WithdrawOffer"))
		assert.Zero(t, client.called("SetQuantity"))
	})
}

func TestListingService_PullRemoteInventory(t *testing.T) {
	t.Run("walks all pages and mirrors every remote listing", func(t *testing.T) {
		mirrorItems := newMockMirrorItems()
		client := newMockMarketplace()
		client.pages = []domain.InventoryPage{
			{
				Items: []domain.RemoteInventoryItem{
					{SKU: "60001", ListingID: "l-1", OfferID: "o-1", Quantity: 1, Price: decimal.NewFromFloat(9.90)},
					{SKU: "60002", ListingID: "l-2", OfferID: "o-2", Quantity: 2, Price: decimal.NewFromFloat(14.90)},
				},
				NextCursor: "page-2",
			},
			{
				Items: []domain.RemoteInventoryItem{
					{SKU: "60003", ListingID: "l-3", OfferID: "o-3", Quantity: 3, Price: decimal.NewFromFloat(24.90)},
				},
			},
		}
		svc := newTestListingService(newMockSourceItems(), mirrorItems, client, &mockImages{})

		report, err := svc.PullRemoteInventory(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Succeeded)
		assert.Len(t, mirrorItems.items, 3)
	})

	t.Run("overwrites an existing mirror with the pulled state", func(t *testing.T) {
		existing := testMirror(t, "60004", 1)
		mirrorItems := newMockMirrorItems(existing)
		client := newMockMarketplace()
		client.pages = []domain.InventoryPage{
			{Items: []domain.RemoteInventoryItem{
				{SKU: "60004", ListingID: "l-new", OfferID: "o-new", Quantity: 2, Price: decimal.NewFromFloat(12.00)},
			}},
		}
		svc := newTestListingService(newMockSourceItems(), mirrorItems, client, &mockImages{})

		_, err := svc.PullRemoteInventory(context.Background(), 0)
		require.NoError(t, err)
		got := mirrorItems.items["60004"]
		assert.Equal(t, "l-new", got.ListingID)
		assert.Equal(t, 2, got.Quantity)
		assert.Equal(t, testNow, got.UpdatedAt)
	})
}

func TestListingService_MigrateLegacyListings(t *testing.T) {
	t.Run("links migrated listings and reports per-listing failures", func(t *testing.T) {
		mirrorItems := newMockMirrorItems()
		client := newMockMarketplace()
		client.migration = []domain.MigrationResult{
			{ListingID: "l-1", SKU: "70001", OfferID: "o-1"},
			{ListingID: "l-2", SKU: "70002", Err: "listing not eligible"},
		}
		svc := newTestListingService(newMockSourceItems(), mirrorItems, client, &mockImages{})
		svc.cfg.MigrationPause = 0

		report, err := svc.MigrateLegacyListings(context.Background(), []string{"l-1", "l-2"})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Succeeded)
		assert.Equal(t, 1, report.Failed)
		assert.Contains(t, mirrorItems.items, "70001")
	})
}

func TestListingService_ReconcileItem(t *testing.T) {
	t.Run("runs the highest priority corrective action", func(t *testing.T) {
		source := testItem("80001", 1)
		m := testMirror(t, "80001", 3)
		client := newMockMarketplace()
		svc := newTestListingService(newMockSourceItems(source), newMockMirrorItems(m), client, &mockImages{})

		matched, err := svc.ReconcileItem(context.Background(), "80001")
		require.NoError(t, err)
		require.NotEmpty(t, matched)
		assert.Equal(t, domain.ClassificationOversold, matched[0])
		assert.Equal(t, 1, client.called("SetQuantity"))
	})

	t.Run("creates a listing for an unlisted eligible item", func(t *testing.T) {
		source := testItem("80002", 2)
		lastSold := testNow.Add(-time.Hour)
		source.LastSoldAt = &lastSold
		client := newMockMarketplace()
		images := &mockImages{urls: map[string][]string{"80002": {"https://img.example/80002.jpg"}}}
		svc := newTestListingService(newMockSourceItems(source), newMockMirrorItems(), client, images)

		matched, err := svc.ReconcileItem(context.Background(), "80002")
		require.NoError(t, err)
		require.NotEmpty(t, matched)
		assert.Equal(t, domain.ClassificationNewCandidate, matched[0])
		assert.Equal(t, 1, client.called("PublishOffer"))
	})

	t.Run("reports nothing for an item in sync", func(t *testing.T) {
		source := testItem("80003", 2)
		m := testMirror(t, "80003", 2)
		m.UpdatedAt = testNow
		client := newMockMarketplace()
		svc := newTestListingService(newMockSourceItems(source), newMockMirrorItems(m), client, &mockImages{})

		matched, err := svc.ReconcileItem(context.Background(), "80003")
		require.NoError(t, err)
		assert.Empty(t, matched)
		assert.Empty(t, client.calls)
	})
}
