package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/application/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"
	domain "github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/shared"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/interfaces/http/dto"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/interfaces/http/middleware"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

type mockListingEndpoints struct {
	classes      []domain.Classification
	reconcileErr error
	counts       *mirror.DriftCounts
	countsErr    error
	lastItemID   string
}

func (m *mockListingEndpoints) ReconcileItem(ctx context.Context, itemID string) ([]domain.Classification, error) {
	m.lastItemID = itemID
	if m.reconcileErr != nil {
		return nil, m.reconcileErr
	}
	return m.classes, nil
}

func (m *mockListingEndpoints) DriftCounts(ctx context.Context) (*mirror.DriftCounts, error) {
	if m.countsErr != nil {
		return nil, m.countsErr
	}
	return m.counts, nil
}

type mockOrderEndpoints struct {
	report        *reconcile.RunReport
	importErr     error
	syncErr       error
	lastOrderID   string
	lastInvoiceID string
	syncCalls     []string
}

func (m *mockOrderEndpoints) ImportOrder(ctx context.Context, orderID string) (*reconcile.RunReport, error) {
	m.lastOrderID = orderID
	if m.importErr != nil {
		return nil, m.importErr
	}
	return m.report, nil
}

func (m *mockOrderEndpoints) SynchronizeInvoice(ctx context.Context, invoiceID string) error {
	return m.recordSync("invoice", invoiceID)
}

func (m *mockOrderEndpoints) SynchronizePayment(ctx context.Context, invoiceID string) error {
	return m.recordSync("payment", invoiceID)
}

func (m *mockOrderEndpoints) SynchronizeShipment(ctx context.Context, invoiceID string) error {
	return m.recordSync("shipment", invoiceID)
}

func (m *mockOrderEndpoints) SynchronizeCancellation(ctx context.Context, invoiceID string) error {
	return m.recordSync("cancellation", invoiceID)
}

func (m *mockOrderEndpoints) recordSync(dimension, invoiceID string) error {
	m.lastInvoiceID = invoiceID
	m.syncCalls = append(m.syncCalls, dimension)
	return m.syncErr
}

const testSecret = "test-secret"

func newTestRouter(listings ListingEndpoints, orders OrderEndpoints) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := NewSyncHandler(listings, orders, testSecret, zap.NewNop())
	api := engine.Group("/api/v1")
	h.RegisterRoutes(api)
	return engine
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string, withSecret bool) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if withSecret {
		req.Header.Set(middleware.WebhookSecretHeader, testSecret)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var resp dto.Response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

// ---------------------------------------------------------------------------
// ReconcileItem
// ---------------------------------------------------------------------------

func TestSyncHandler_ReconcileItem(t *testing.T) {
	t.Run("reports classifications", func(t *testing.T) {
		listings := &mockListingEndpoints{
			classes: []domain.Classification{
				domain.ClassificationOversold,
				domain.ClassificationQuantityDrift,
			},
		}
		engine := newTestRouter(listings, &mockOrderEndpoints{})

		rec, resp := doRequest(t, engine, http.MethodPost, "/api/v1/webhooks/items/10001", true)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, "10001", listings.lastItemID)

		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "10001", data["item_id"])
		assert.Equal(t, []interface{}{"OVERSOLD", "QUANTITY_DRIFT"}, data["classifications"])
	})

	t.Run("clean item yields empty classifications", func(t *testing.T) {
		engine := newTestRouter(&mockListingEndpoints{}, &mockOrderEndpoints{})

		rec, resp := doRequest(t, engine, http.MethodPost, "/api/v1/webhooks/items/10001", true)

		assert.Equal(t, http.StatusOK, rec.Code)
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, []interface{}{}, data["classifications"])
	})

	t.Run("unknown item returns 404", func(t *testing.T) {
		listings := &mockListingEndpoints{reconcileErr: shared.ErrNotFound}
		engine := newTestRouter(listings, &mockOrderEndpoints{})

		rec, resp := doRequest(t, engine, http.MethodPost, "/api/v1/webhooks/items/99999", true)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("marketplace outage returns 502", func(t *testing.T) {
		listings := &mockListingEndpoints{reconcileErr: domain.ErrMarketplaceUnavailable}
		engine := newTestRouter(listings, &mockOrderEndpoints{})

		rec, resp := doRequest(t, engine, http.MethodPost, "/api/v1/webhooks/items/10001", true)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeMarketplaceUnavailable, resp.Error.Code)
	})

	t.Run("missing secret returns 401", func(t *testing.T) {
		engine := newTestRouter(&mockListingEndpoints{}, &mockOrderEndpoints{})

		rec, resp := doRequest(t, engine, http.MethodPost, "/api/v1/webhooks/items/10001", false)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
	})
}

// ---------------------------------------------------------------------------
// SynchronizeInvoice
// ---------------------------------------------------------------------------

func TestSyncHandler_SynchronizeInvoice(t *testing.T) {
	t.Run("acknowledges synchronized invoice", func(t *testing.T) {
		orders := &mockOrderEndpoints{}
		engine := newTestRouter(&mockListingEndpoints{}, orders)

		rec, resp := doRequest(t, engine, http.MethodPost, "/api/v1/webhooks/invoices/EB-TX-1", true)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, "EB-TX-1", orders.lastInvoiceID)
	})

	t.Run("unknown invoice returns 404", func(t *testing.T) {
		orders := &mockOrderEndpoints{syncErr: shared.ErrNotFound}
		engine := newTestRouter(&mockListingEndpoints{}, orders)

		rec, _ := doRequest(t, engine, http.MethodPost, "/api/v1/webhooks/invoices/EB-TX-404", true)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("dimension routes hit only the named dimension", func(t *testing.T) {
		for _, dimension := range []string{"payment", "shipment", "cancellation"} {
			orders := &mockOrderEndpoints{}
			engine := newTestRouter(&mockListingEndpoints{}, orders)

			rec, resp := doRequest(t, engine, http.MethodPost, "/api/v1/webhooks/invoices/EB-TX-1/"+dimension, true)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, resp.Success)
			assert.Equal(t, "EB-TX-1", orders.lastInvoiceID)
			assert.Equal(t, []string{dimension}, orders.syncCalls)
		}
	})
}

// ---------------------------------------------------------------------------
// ImportOrder
// ---------------------------------------------------------------------------

func TestSyncHandler_ImportOrder(t *testing.T) {
	t.Run("returns import counts", func(t *testing.T) {
		orders := &mockOrderEndpoints{
			report: &reconcile.RunReport{Processed: 2, Succeeded: 1, Skipped: 1},
		}
		engine := newTestRouter(&mockListingEndpoints{}, orders)

		rec, resp := doRequest(t, engine, http.MethodPost, "/api/v1/webhooks/orders/11-22222-33333", true)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "11-22222-33333", orders.lastOrderID)

		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "11-22222-33333", data["order_id"])
		assert.Equal(t, float64(2), data["processed"])
		assert.Equal(t, float64(1), data["succeeded"])
		assert.Equal(t, float64(1), data["skipped"])
	})

	t.Run("unknown remote order returns 404", func(t *testing.T) {
		orders := &mockOrderEndpoints{importErr: domain.ErrOrderNotFound}
		engine := newTestRouter(&mockListingEndpoints{}, orders)

		rec, resp := doRequest(t, engine, http.MethodPost, "/api/v1/webhooks/orders/11-00000-00000", true)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})
}

// ---------------------------------------------------------------------------
// DriftStatus
// ---------------------------------------------------------------------------

func TestSyncHandler_DriftStatus(t *testing.T) {
	t.Run("reports drift backlog", func(t *testing.T) {
		listings := &mockListingEndpoints{
			counts: &mirror.DriftCounts{
				NewCandidates: 12,
				QuantityDrift: 3,
				Oversold:      1,
			},
		}
		engine := newTestRouter(listings, &mockOrderEndpoints{})

		rec, resp := doRequest(t, engine, http.MethodGet, "/api/v1/status/drift", false)

		assert.Equal(t, http.StatusOK, rec.Code)
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(12), data["new_candidates"])
		assert.Equal(t, float64(3), data["quantity_drift"])
		assert.Equal(t, float64(1), data["oversold"])
		assert.Equal(t, float64(0), data["content_stale"])
	})

	t.Run("repository failure returns 500", func(t *testing.T) {
		listings := &mockListingEndpoints{countsErr: assert.AnError}
		engine := newTestRouter(listings, &mockOrderEndpoints{})

		rec, resp := doRequest(t, engine, http.MethodGet, "/api/v1/status/drift", false)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	})
}
