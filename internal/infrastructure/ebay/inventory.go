package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
)

// conditionUsedExcellent is the item condition published for second-hand
// records.
const conditionUsedExcellent = "USED_EXCELLENT"

// UpsertInventoryItem creates or replaces the inventory item for a SKU
func (c *Client) UpsertInventoryItem(ctx context.Context, item reconcile.InventoryItemPayload) error {
	payload := inventoryItemPayload{
		Product: productPayload{
			Title:       item.Title,
			Description: item.Description,
			ImageURLs:   item.ImageURLs,
			Aspects:     item.Aspects,
		},
		Availability: availabilityPayload{
			ShipToLocationAvailability: shipToLocationAvailability{Quantity: item.Quantity},
		},
		Condition: conditionUsedExcellent,
	}

	_, err := c.doRequest(ctx, http.MethodPut, "/sell/inventory/v1/inventory_item/"+url.PathEscape(item.SKU), nil, payload)
	if err != nil {
		return mapListingError(err)
	}
	return nil
}

// CreateOffer creates an unpublished offer and returns its id
func (c *Client) CreateOffer(ctx context.Context, offer reconcile.OfferPayload) (string, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/sell/inventory/v1/offer", nil, c.offerPayload(offer))
	if err != nil {
		return "", mapListingError(err)
	}

	var resp createOfferResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("ebay: failed to parse create offer response: %w", err)
	}
	if resp.OfferID == "" {
		return "", fmt.Errorf("%w: create offer response carried no offer id", reconcile.ErrMarketplaceRejected)
	}
	return resp.OfferID, nil
}

// UpdateOffer replaces the offer identified by offerID
func (c *Client) UpdateOffer(ctx context.Context, offerID string, offer reconcile.OfferPayload) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/sell/inventory/v1/offer/"+url.PathEscape(offerID), nil, c.offerPayload(offer))
	if err != nil {
		return mapListingError(err)
	}
	return nil
}

// PublishOffer publishes an offer and returns the live listing id
func (c *Client) PublishOffer(ctx context.Context, offerID string) (string, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/sell/inventory/v1/offer/"+url.PathEscape(offerID)+"/publish", nil, nil)
	if err != nil {
		return "", mapListingError(err)
	}

	var resp publishOfferResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("ebay: failed to parse publish response: %w", err)
	}
	if resp.ListingID == "" {
		return "", fmt.Errorf("%w: publish response carried no listing id", reconcile.ErrMarketplaceRejected)
	}
	return resp.ListingID, nil
}

// WithdrawOffer ends the live listing behind an offer
func (c *Client) WithdrawOffer(ctx context.Context, offerID string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/sell/inventory/v1/offer/"+url.PathEscape(offerID)+"/withdraw", nil, nil)
	if err != nil {
		return mapListingError(err)
	}
	return nil
}

// SetQuantity sets the availability quantity for a SKU
func (c *Client) SetQuantity(ctx context.Context, sku string, quantity int) error {
	payload := bulkQuantityRequest{
		Requests: []quantityRequest{{
			SKU:                        sku,
			ShipToLocationAvailability: shipToLocationAvailability{Quantity: quantity},
		}},
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/sell/inventory/v1/bulk_update_price_quantity", nil, payload)
	if err != nil {
		return mapListingError(err)
	}

	var resp bulkQuantityResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("ebay: failed to parse quantity response: %w", err)
	}
	for _, result := range resp.Responses {
		if result.StatusCode >= 400 {
			return mapListingError(&apiError{Status: result.StatusCode, Errors: result.Errors})
		}
	}
	return nil
}

// FindOfferBySKU returns the offer for a SKU, or nil when none exists
func (c *Client) FindOfferBySKU(ctx context.Context, sku string) (*reconcile.RemoteOffer, error) {
	query := url.Values{}
	query.Set("sku", sku)
	query.Set("marketplace_id", c.config.MarketplaceID)

	respBody, err := c.doRequest(ctx, http.MethodGet, "/sell/inventory/v1/offer", query, nil)
	if err != nil {
		mapped := mapListingError(err)
		// No offer for the SKU is a regular outcome of the recovery read.
		if isNotFound(mapped) {
			return nil, nil
		}
		return nil, mapped
	}

	var resp offersResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("ebay: failed to parse offers response: %w", err)
	}
	if len(resp.Offers) == 0 {
		return nil, nil
	}
	return convertOffer(&resp.Offers[0]), nil
}

// ListInventoryItems returns one page of the remote inventory. The cursor
// is the numeric offset of the next page; the offer behind every SKU is
// resolved to recover listing id and price.
func (c *Client) ListInventoryItems(ctx context.Context, limit int, cursor string) (*reconcile.InventoryPage, error) {
	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("ebay: invalid inventory cursor %q", cursor)
		}
		offset = parsed
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	respBody, err := c.doRequest(ctx, http.MethodGet, "/sell/inventory/v1/inventory_item", query, nil)
	if err != nil {
		return nil, mapListingError(err)
	}

	var resp inventoryItemsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("ebay: failed to parse inventory response: %w", err)
	}

	page := &reconcile.InventoryPage{
		Items: make([]reconcile.RemoteInventoryItem, 0, len(resp.InventoryItems)),
		Total: resp.Total,
	}
	for _, row := range resp.InventoryItems {
		offer, err := c.FindOfferBySKU(ctx, row.SKU)
		if err != nil {
			return nil, err
		}
		if offer == nil {
			// Inventory item without an offer is not a managed listing.
			continue
		}
		item := reconcile.RemoteInventoryItem{
			SKU:       row.SKU,
			ListingID: offer.ListingID,
			OfferID:   offer.OfferID,
			Quantity:  offer.Quantity,
			Price:     offer.Price,
		}
		if row.Availability != nil {
			item.Quantity = row.Availability.ShipToLocationAvailability.Quantity
		}
		page.Items = append(page.Items, item)
	}

	next := offset + len(resp.InventoryItems)
	if len(resp.InventoryItems) > 0 && next < resp.Total {
		page.NextCursor = strconv.Itoa(next)
	}
	return page, nil
}

// BulkMigrateListings converts legacy listings to the inventory model
func (c *Client) BulkMigrateListings(ctx context.Context, listingIDs []string) ([]reconcile.MigrationResult, error) {
	payload := migrateRequest{Requests: make([]migrateListingRef, 0, len(listingIDs))}
	for _, id := range listingIDs {
		payload.Requests = append(payload.Requests, migrateListingRef{ListingID: id})
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/sell/inventory/v1/bulk_migrate_listing", nil, payload)
	if err != nil {
		return nil, mapListingError(err)
	}

	var resp migrateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("ebay: failed to parse migration response: %w", err)
	}

	results := make([]reconcile.MigrationResult, 0, len(resp.Responses))
	for _, row := range resp.Responses {
		result := reconcile.MigrationResult{ListingID: row.ListingID}
		if row.StatusCode >= 400 {
			if len(row.Errors) > 0 {
				result.Err = row.Errors[0].Message
			} else {
				result.Err = fmt.Sprintf("HTTP %d", row.StatusCode)
			}
		} else if len(row.InventoryItems) > 0 {
			result.SKU = row.InventoryItems[0].SKU
			result.OfferID = row.InventoryItems[0].OfferID
		}
		results = append(results, result)
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// Conversion helpers
// ---------------------------------------------------------------------------

func (c *Client) offerPayload(offer reconcile.OfferPayload) offerPayload {
	return offerPayload{
		SKU:               offer.SKU,
		MarketplaceID:     c.config.MarketplaceID,
		Format:            "FIXED_PRICE",
		CategoryID:        offer.CategoryID,
		AvailableQuantity: offer.Quantity,
		PricingSummary: pricingSummary{
			Price: priceAmount{
				Value:    offer.Price.StringFixed(2),
				Currency: offer.Currency,
			},
		},
		MerchantLocation: c.config.MerchantLocation,
		ListingPolicies: listingPolicies{
			FulfillmentPolicyID: c.config.FulfillmentPolicy,
			PaymentPolicyID:     c.config.PaymentPolicy,
			ReturnPolicyID:      c.config.ReturnPolicy,
		},
	}
}

func convertOffer(row *offerRow) *reconcile.RemoteOffer {
	offer := &reconcile.RemoteOffer{
		OfferID:   row.OfferID,
		SKU:       row.SKU,
		Published: row.Status == offerStatusPublished,
		Quantity:  row.AvailableQuantity,
	}
	if row.PricingSummary != nil {
		offer.Price = parseDecimal(row.PricingSummary.Price.Value)
	}
	if row.Listing != nil {
		offer.ListingID = row.Listing.ListingID
	}
	return offer
}

// parseDecimal parses a wire amount, falling back to zero on malformed input
func parseDecimal(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return parsed
}

func isNotFound(err error) bool {
	return errors.Is(err, reconcile.ErrListingNotFound)
}
