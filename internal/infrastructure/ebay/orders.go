package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
)

// GetOrders returns orders created since the given time
func (c *Client) GetOrders(ctx context.Context, since time.Time) ([]reconcile.RemoteOrder, error) {
	query := url.Values{}
	query.Set("filter", fmt.Sprintf("creationdate:[%s..]", since.UTC().Format(time.RFC3339)))

	respBody, err := c.doRequest(ctx, http.MethodGet, "/sell/fulfillment/v1/order", query, nil)
	if err != nil {
		return nil, mapOrderError(err)
	}

	var resp ordersResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("ebay: failed to parse orders response: %w", err)
	}

	orders := make([]reconcile.RemoteOrder, 0, len(resp.Orders))
	for i := range resp.Orders {
		orders = append(orders, convertOrder(&resp.Orders[i]))
	}
	return orders, nil
}

// GetOrder returns a single order
func (c *Client) GetOrder(ctx context.Context, orderID string) (*reconcile.RemoteOrder, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/sell/fulfillment/v1/order/"+url.PathEscape(orderID), nil, nil)
	if err != nil {
		return nil, mapOrderError(err)
	}

	var row orderRow
	if err := json.Unmarshal(respBody, &row); err != nil {
		return nil, fmt.Errorf("ebay: failed to parse order response: %w", err)
	}

	order := convertOrder(&row)
	return &order, nil
}

// MarkPaid records payment received for an order
func (c *Client) MarkPaid(ctx context.Context, orderID string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/sell/fulfillment/v1/order/"+url.PathEscape(orderID)+"/mark_as_paid", nil, nil)
	if err != nil {
		return mapOrderError(err)
	}
	return nil
}

// MarkShipped records a shipment with carrier and tracking
func (c *Client) MarkShipped(ctx context.Context, orderID string, shipment reconcile.Shipment) error {
	payload := shippingFulfillmentPayload{
		TrackingNumber:      shipment.Tracking,
		ShippingCarrierCode: string(shipment.Carrier),
		ShippedDate:         shipment.ShippedAt.UTC().Format(time.RFC3339),
	}

	_, err := c.doRequest(ctx, http.MethodPost, "/sell/fulfillment/v1/order/"+url.PathEscape(orderID)+"/shipping_fulfillment", nil, payload)
	if err != nil {
		return mapOrderError(err)
	}
	return nil
}

// CancelOrder cancels an order inside the marketplace cancellation window
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/sell/fulfillment/v1/order/"+url.PathEscape(orderID)+"/cancel", nil, nil)
	if err != nil {
		return mapOrderError(err)
	}
	return nil
}

// RefundOrder refunds a paid order. A zero amount requests a full refund.
func (c *Client) RefundOrder(ctx context.Context, orderID string, amount decimal.Decimal) error {
	payload := refundPayload{ReasonForRefund: "BUYER_CANCEL"}
	if amount.IsPositive() {
		payload.RefundAmount = &refundAmount{
			Value:    amount.StringFixed(2),
			Currency: c.config.Currency,
		}
	}

	_, err := c.doRequest(ctx, http.MethodPost, "/sell/fulfillment/v1/order/"+url.PathEscape(orderID)+"/issue_refund", nil, payload)
	if err != nil {
		return mapOrderError(err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Conversion helpers
// ---------------------------------------------------------------------------

func convertOrder(row *orderRow) reconcile.RemoteOrder {
	order := reconcile.RemoteOrder{
		OrderID:   row.OrderID,
		Status:    mapOrderStatus(row),
		Total:     parseDecimal(row.PricingSummary.Total.Value),
		Currency:  row.PricingSummary.Total.Currency,
		LineItems: make([]reconcile.RemoteLineItem, 0, len(row.LineItems)),
	}
	if t, err := time.Parse(time.RFC3339, row.CreationDate); err == nil {
		order.CreatedAt = t
	}
	for _, line := range row.LineItems {
		order.LineItems = append(order.LineItems, reconcile.RemoteLineItem{
			TransactionID: line.LineItemID,
			SKU:           line.SKU,
			Quantity:      line.Quantity,
			UnitPrice:     parseDecimal(line.LineItemCost.Value),
		})
	}
	return order
}

func mapOrderStatus(row *orderRow) reconcile.RemoteOrderStatus {
	if row.CancelState == cancelStateCanceled {
		return reconcile.RemoteOrderStatusCancelled
	}
	if row.OrderFulfillmentStatus == fulfillmentStatusFulfilled {
		return reconcile.RemoteOrderStatusCompleted
	}
	return reconcile.RemoteOrderStatusActive
}
