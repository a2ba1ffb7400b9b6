package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/application/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"
	domain "github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/interfaces/http/dto"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/interfaces/http/middleware"
)

// ListingEndpoints is the listing-side surface the webhook handlers need.
// Implemented by reconcile.ListingService.
type ListingEndpoints interface {
	ReconcileItem(ctx context.Context, itemID string) ([]domain.Classification, error)
	DriftCounts(ctx context.Context) (*mirror.DriftCounts, error)
}

// OrderEndpoints is the order-side surface the webhook handlers need.
// Implemented by reconcile.OrderService.
type OrderEndpoints interface {
	ImportOrder(ctx context.Context, orderID string) (*reconcile.RunReport, error)
	SynchronizeInvoice(ctx context.Context, invoiceID string) error
	SynchronizePayment(ctx context.Context, invoiceID string) error
	SynchronizeShipment(ctx context.Context, invoiceID string) error
	SynchronizeCancellation(ctx context.Context, invoiceID string) error
}

// SyncHandler serves the warehouse-side webhooks and the drift status
// endpoint. Webhooks shortcut the periodic cycle: a stock or invoice change
// in the warehouse system is pushed here and repaired immediately instead of
// waiting for the next scan.
type SyncHandler struct {
	BaseHandler
	listings      ListingEndpoints
	orders        OrderEndpoints
	webhookSecret string
	logger        *zap.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(listings ListingEndpoints, orders OrderEndpoints, webhookSecret string, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if webhookSecret == "" {
		logger.Warn("webhook secret is empty, inbound webhooks are unauthenticated")
	}
	return &SyncHandler{
		listings:      listings,
		orders:        orders,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// RegisterRoutes registers sync routes on the given router group
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhooks := rg.Group("/webhooks", middleware.WebhookAuth(h.webhookSecret))
	{
		webhooks.POST("/items/:id", h.ReconcileItem)
		webhooks.POST("/invoices/:id", h.SynchronizeInvoice)
		webhooks.POST("/invoices/:id/payment", h.SynchronizePayment)
		webhooks.POST("/invoices/:id/shipment", h.SynchronizeShipment)
		webhooks.POST("/invoices/:id/cancellation", h.SynchronizeCancellation)
		webhooks.POST("/orders/:id", h.ImportOrder)
	}

	status := rg.Group("/status")
	{
		status.GET("/drift", h.DriftStatus)
	}
}

// ReconcileItem handles POST /webhooks/items/:id
// It classifies the item against its mirror and runs the corrective actions.
func (h *SyncHandler) ReconcileItem(c *gin.Context) {
	itemID := c.Param("id")
	if itemID == "" {
		h.BadRequest(c, "item ID is required")
		return
	}

	classes, err := h.listings.ReconcileItem(c.Request.Context(), itemID)
	if err != nil {
		h.logger.Warn("item reconciliation failed",
			zap.String("item_id", itemID),
			zap.Error(err))
		h.HandleError(c, err)
		return
	}

	resp := dto.ItemReconcileResponse{
		ItemID:          itemID,
		Classifications: make([]string, 0, len(classes)),
	}
	for _, class := range classes {
		resp.Classifications = append(resp.Classifications, string(class))
	}

	h.Success(c, resp)
}

// SynchronizeInvoice handles POST /webhooks/invoices/:id
// It pushes the invoice's payment, shipping and cancellation state to the
// marketplace order.
func (h *SyncHandler) SynchronizeInvoice(c *gin.Context) {
	h.syncInvoice(c, h.orders.SynchronizeInvoice)
}

// SynchronizePayment handles POST /webhooks/invoices/:id/payment
// For push notifications that already name the changed dimension. Only the
// payment state is evaluated.
func (h *SyncHandler) SynchronizePayment(c *gin.Context) {
	h.syncInvoice(c, h.orders.SynchronizePayment)
}

// SynchronizeShipment handles POST /webhooks/invoices/:id/shipment
func (h *SyncHandler) SynchronizeShipment(c *gin.Context) {
	h.syncInvoice(c, h.orders.SynchronizeShipment)
}

// SynchronizeCancellation handles POST /webhooks/invoices/:id/cancellation
func (h *SyncHandler) SynchronizeCancellation(c *gin.Context) {
	h.syncInvoice(c, h.orders.SynchronizeCancellation)
}

func (h *SyncHandler) syncInvoice(c *gin.Context, sync func(context.Context, string) error) {
	invoiceID := c.Param("id")
	if invoiceID == "" {
		h.BadRequest(c, "invoice ID is required")
		return
	}

	if err := sync(c.Request.Context(), invoiceID); err != nil {
		h.logger.Warn("invoice synchronization failed",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.InvoiceSyncResponse{InvoiceID: invoiceID})
}

// ImportOrder handles POST /webhooks/orders/:id
// It fetches a single marketplace order and books it into the ledger.
func (h *SyncHandler) ImportOrder(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		h.BadRequest(c, "order ID is required")
		return
	}

	report, err := h.orders.ImportOrder(c.Request.Context(), orderID)
	if err != nil {
		h.logger.Warn("order import failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.OrderImportResponse{
		OrderID:   orderID,
		Processed: report.Processed,
		Succeeded: report.Succeeded,
		Skipped:   report.Skipped,
		Failed:    report.Failed,
	})
}

// DriftStatus handles GET /status/drift
// It reports the current drift backlog per category without repairing it.
func (h *SyncHandler) DriftStatus(c *gin.Context) {
	counts, err := h.listings.DriftCounts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.DriftStatusResponse{
		NewCandidates:    counts.NewCandidates,
		QuantityDrift:    counts.QuantityDrift,
		Oversold:         counts.Oversold,
		ContentStale:     counts.ContentStale,
		PriceDrift:       counts.PriceDrift,
		StaleUnavailable: counts.StaleUnavailable,
	})
}
