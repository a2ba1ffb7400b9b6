package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"
	domain "github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// mockSourceItems is an in-memory SourceItemRepository.
type mockSourceItems struct {
	items      map[string]*catalog.SourceItem
	decrements map[string]int
}

func newMockSourceItems(items ...*catalog.SourceItem) *mockSourceItems {
	m := &mockSourceItems{
		items:      make(map[string]*catalog.SourceItem),
		decrements: make(map[string]int),
	}
	for _, item := range items {
		m.items[item.ID] = item
	}
	return m
}

func (m *mockSourceItems) FindByID(_ context.Context, id string) (*catalog.SourceItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return item, nil
}

func (m *mockSourceItems) FindByIDs(_ context.Context, ids []string) ([]catalog.SourceItem, error) {
	var out []catalog.SourceItem
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *mockSourceItems) DecrementQuantity(_ context.Context, id string, by int) error {
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	m.decrements[id] += by
	return nil
}

// mockInvoices is an in-memory SourceInvoiceRepository.
type mockInvoices struct {
	invoices map[string]*catalog.SourceInvoice
}

func newMockInvoices(invoices ...*catalog.SourceInvoice) *mockInvoices {
	m := &mockInvoices{invoices: make(map[string]*catalog.SourceInvoice)}
	for _, inv := range invoices {
		m.invoices[inv.ID] = inv
	}
	return m
}

func (m *mockInvoices) FindByID(_ context.Context, id string) (*catalog.SourceInvoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

func (m *mockInvoices) FindByIDs(_ context.Context, ids []string) ([]catalog.SourceInvoice, error) {
	var out []catalog.SourceInvoice
	for _, id := range ids {
		if inv, ok := m.invoices[id]; ok {
			out = append(out, *inv)
		}
	}
	return out, nil
}

// mockMirrorItems is an in-memory mirror.ItemRepository with scripted scan
// results. Corrected items drop out of subsequent scans because the batch
// loop's attempted-set already covers convergence; scans may return the
// same slice on every call.
type mockMirrorItems struct {
	items      map[string]*mirror.Item
	saveErr    error
	saved      []mirror.Item
	candidates []catalog.SourceItem
	pairs      []mirror.Pair
}

func newMockMirrorItems(items ...*mirror.Item) *mockMirrorItems {
	m := &mockMirrorItems{items: make(map[string]*mirror.Item)}
	for _, item := range items {
		m.items[item.ItemID] = item
	}
	return m
}

func (m *mockMirrorItems) FindByItemID(_ context.Context, itemID string) (*mirror.Item, error) {
	item, ok := m.items[itemID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return item, nil
}

func (m *mockMirrorItems) FindByListingID(_ context.Context, listingID string) (*mirror.Item, error) {
	for _, item := range m.items {
		if item.ListingID == listingID {
			return item, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockMirrorItems) Save(_ context.Context, item *mirror.Item) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *item
	m.items[item.ItemID] = &copied
	m.saved = append(m.saved, copied)
	return nil
}

// FindNewCandidates pages over the scripted candidates the way the SQL scan
// does: items that gained an active mirror row drop out, everything else
// keeps its position.
func (m *mockMirrorItems) FindNewCandidates(_ context.Context, _ mirror.ScanPolicy, _ time.Time, filter shared.Filter) ([]catalog.SourceItem, error) {
	unlisted := make([]catalog.SourceItem, 0, len(m.candidates))
	for _, c := range m.candidates {
		if row, ok := m.items[c.ID]; ok && row.Active() {
			continue
		}
		unlisted = append(unlisted, c)
	}
	return page(unlisted, filter), nil
}

func (m *mockMirrorItems) FindOversold(_ context.Context, _ mirror.ScanPolicy, filter shared.Filter) ([]mirror.Pair, error) {
	return page(m.pairs, filter), nil
}

func (m *mockMirrorItems) FindQuantityDrift(_ context.Context, _ mirror.ScanPolicy, filter shared.Filter) ([]mirror.Pair, error) {
	return page(m.pairs, filter), nil
}

func (m *mockMirrorItems) FindContentStale(_ context.Context, _ mirror.ScanPolicy, filter shared.Filter) ([]mirror.Pair, error) {
	return page(m.pairs, filter), nil
}

func (m *mockMirrorItems) FindPriceDrift(_ context.Context, _ decimal.Decimal, filter shared.Filter) ([]mirror.Pair, error) {
	return page(m.pairs, filter), nil
}

func (m *mockMirrorItems) FindStaleUnavailable(_ context.Context, _ time.Time, filter shared.Filter) ([]mirror.Pair, error) {
	return page(m.pairs, filter), nil
}

// page slices one filter page out of a scripted result set.
func page[T any](list []T, filter shared.Filter) []T {
	start := filter.Offset()
	if start >= len(list) {
		return nil
	}
	end := len(list)
	if filter.PageSize > 0 && start+filter.PageSize < end {
		end = start + filter.PageSize
	}
	return list[start:end]
}

func (m *mockMirrorItems) Counts(_ context.Context, _ mirror.ScanPolicy, _ time.Time) (*mirror.DriftCounts, error) {
	return &mirror.DriftCounts{}, nil
}

// mockTransactions is an in-memory mirror.TransactionRepository with
// scripted status scan results.
type mockTransactions struct {
	transactions map[string]*mirror.Transaction
	unpaid       []mirror.StatusPair
	unshipped    []mirror.StatusPair
	uncanceled   []mirror.StatusPair
}

func newMockTransactions(transactions ...*mirror.Transaction) *mockTransactions {
	m := &mockTransactions{transactions: make(map[string]*mirror.Transaction)}
	for _, tx := range transactions {
		m.transactions[tx.TransactionID] = tx
	}
	return m
}

func (m *mockTransactions) FindByTransactionID(_ context.Context, transactionID string) (*mirror.Transaction, error) {
	tx, ok := m.transactions[transactionID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return tx, nil
}

func (m *mockTransactions) FindByOrderID(_ context.Context, orderID string) ([]mirror.Transaction, error) {
	var out []mirror.Transaction
	for _, tx := range m.transactions {
		if tx.OrderID == orderID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (m *mockTransactions) FindByInvoiceID(_ context.Context, invoiceID string) (*mirror.Transaction, error) {
	for _, tx := range m.transactions {
		if tx.InvoiceID == invoiceID {
			return tx, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockTransactions) Save(_ context.Context, tx *mirror.Transaction) error {
	copied := *tx
	m.transactions[tx.TransactionID] = &copied
	return nil
}

func (m *mockTransactions) FindUnpaid(_ context.Context, _ shared.Filter) ([]mirror.StatusPair, error) {
	return m.unpaid, nil
}

func (m *mockTransactions) FindUnshipped(_ context.Context, _ shared.Filter) ([]mirror.StatusPair, error) {
	return m.unshipped, nil
}

func (m *mockTransactions) FindUncanceled(_ context.Context, _ shared.Filter) ([]mirror.StatusPair, error) {
	return m.uncanceled, nil
}

// call records one marketplace invocation for assertion.
type call struct {
	method string
	id     string
}

// mockMarketplace is a scripted MarketplaceClient. Per-method error maps
// inject failures keyed by SKU, offer id or order id.
type mockMarketplace struct {
	calls []call

	upsertErr   map[string]error
	createErr   map[string]error
	updateErr   map[string]error
	publishErr  map[string]error
	withdrawErr map[string]error
	setQtyErr   map[string]error
	markErr     map[string]error

	offers    map[string]*domain.RemoteOffer
	pages     []domain.InventoryPage
	pageIndex int
	migration []domain.MigrationResult
	orders    []domain.RemoteOrder
}

func newMockMarketplace() *mockMarketplace {
	return &mockMarketplace{
		upsertErr:   make(map[string]error),
		createErr:   make(map[string]error),
		updateErr:   make(map[string]error),
		publishErr:  make(map[string]error),
		withdrawErr: make(map[string]error),
		setQtyErr:   make(map[string]error),
		markErr:     make(map[string]error),
		offers:      make(map[string]*domain.RemoteOffer),
	}
}

func (m *mockMarketplace) record(method, id string) {
	m.calls = append(m.calls, call{method: method, id: id})
}

func (m *mockMarketplace) called(method string) int {
	n := 0
	for _, c := range m.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func (m *mockMarketplace) UpsertInventoryItem(_ context.Context, item domain.InventoryItemPayload) error {
	m.record("UpsertInventoryItem", item.SKU)
	return m.upsertErr[item.SKU]
}

func (m *mockMarketplace) CreateOffer(_ context.Context, offer domain.OfferPayload) (string, error) {
	m.record("CreateOffer", offer.SKU)
	if err := m.createErr[offer.SKU]; err != nil {
		return "", err
	}
	return "offer-" + offer.SKU, nil
}

func (m *mockMarketplace) UpdateOffer(_ context.Context, offerID string, _ domain.OfferPayload) error {
	m.record("UpdateOffer", offerID)
	return m.updateErr[offerID]
}

func (m *mockMarketplace) PublishOffer(_ context.Context, offerID string) (string, error) {
	m.record("PublishOffer", offerID)
	if err := m.publishErr[offerID]; err != nil {
		return "", err
	}
	return "listing-" + offerID, nil
}

func (m *mockMarketplace) WithdrawOffer(_ context.Context, offerID string) error {
	m.record("WithdrawOffer", offerID)
	return m.withdrawErr[offerID]
}

func (m *mockMarketplace) SetQuantity(_ context.Context, sku string, _ int) error {
	m.record("SetQuantity", sku)
	return m.setQtyErr[sku]
}

func (m *mockMarketplace) FindOfferBySKU(_ context.Context, sku string) (*domain.RemoteOffer, error) {
	m.record("FindOfferBySKU", sku)
	offer, ok := m.offers[sku]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return offer, nil
}

func (m *mockMarketplace) ListInventoryItems(_ context.Context, _ int, cursor string) (*domain.InventoryPage, error) {
	m.record("ListInventoryItems", cursor)
	if m.pageIndex >= len(m.pages) {
		return &domain.InventoryPage{}, nil
	}
	page := m.pages[m.pageIndex]
	m.pageIndex++
	return &page, nil
}

func (m *mockMarketplace) BulkMigrateListings(_ context.Context, listingIDs []string) ([]domain.MigrationResult, error) {
	for _, id := range listingIDs {
		m.record("BulkMigrateListings", id)
	}
	var out []domain.MigrationResult
	for _, result := range m.migration {
		for _, id := range listingIDs {
			if result.ListingID == id {
				out = append(out, result)
			}
		}
	}
	return out, nil
}

func (m *mockMarketplace) GetOrders(_ context.Context, _ time.Time) ([]domain.RemoteOrder, error) {
	m.record("GetOrders", "")
	return m.orders, nil
}

func (m *mockMarketplace) GetOrder(_ context.Context, orderID string) (*domain.RemoteOrder, error) {
	m.record("GetOrder", orderID)
	for i := range m.orders {
		if m.orders[i].OrderID == orderID {
			return &m.orders[i], nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *mockMarketplace) MarkPaid(_ context.Context, orderID string) error {
	m.record("MarkPaid", orderID)
	return m.markErr[orderID]
}

func (m *mockMarketplace) MarkShipped(_ context.Context, orderID string, _ domain.Shipment) error {
	m.record("MarkShipped", orderID)
	return m.markErr[orderID]
}

func (m *mockMarketplace) CancelOrder(_ context.Context, orderID string) error {
	m.record("CancelOrder", orderID)
	return m.markErr[orderID]
}

func (m *mockMarketplace) RefundOrder(_ context.Context, orderID string, _ decimal.Decimal) error {
	m.record("RefundOrder", orderID)
	return nil
}

// mockImages is a scripted ImageFinder.
type mockImages struct {
	urls map[string][]string
	err  error
}

func (m *mockImages) FindImages(_ context.Context, itemID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.urls[itemID], nil
}
