package ebay

// Wire types for the eBay Sell Inventory and Fulfillment APIs. Only the
// fields the synchronizer reads or writes are modeled.

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

type errorDetail struct {
	ErrorID  int    `json:"errorId"`
	Domain   string `json:"domain"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

type errorResponse struct {
	Errors []errorDetail `json:"errors"`
}

// ---------------------------------------------------------------------------
// Inventory
// ---------------------------------------------------------------------------

type productPayload struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	ImageURLs   []string            `json:"imageUrls,omitempty"`
	Aspects     map[string][]string `json:"aspects,omitempty"`
}

type shipToLocationAvailability struct {
	Quantity int `json:"quantity"`
}

type availabilityPayload struct {
	ShipToLocationAvailability shipToLocationAvailability `json:"shipToLocationAvailability"`
}

type inventoryItemPayload struct {
	Product      productPayload      `json:"product"`
	Availability availabilityPayload `json:"availability"`
	Condition    string              `json:"condition,omitempty"`
}

type inventoryItemRow struct {
	SKU          string               `json:"sku"`
	Availability *availabilityPayload `json:"availability,omitempty"`
}

type inventoryItemsResponse struct {
	Total          int                `json:"total"`
	Size           int                `json:"size"`
	InventoryItems []inventoryItemRow `json:"inventoryItems"`
}

type priceAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type pricingSummary struct {
	Price priceAmount `json:"price"`
}

type offerPayload struct {
	SKU               string          `json:"sku"`
	MarketplaceID     string          `json:"marketplaceId"`
	Format            string          `json:"format"`
	CategoryID        string          `json:"categoryId"`
	AvailableQuantity int             `json:"availableQuantity"`
	PricingSummary    pricingSummary  `json:"pricingSummary"`
	MerchantLocation  string          `json:"merchantLocationKey,omitempty"`
	ListingPolicies   listingPolicies `json:"listingPolicies"`
}

type listingPolicies struct {
	FulfillmentPolicyID string `json:"fulfillmentPolicyId,omitempty"`
	PaymentPolicyID     string `json:"paymentPolicyId,omitempty"`
	ReturnPolicyID      string `json:"returnPolicyId,omitempty"`
}

type createOfferResponse struct {
	OfferID string `json:"offerId"`
}

type publishOfferResponse struct {
	ListingID string `json:"listingId"`
}

type offerListing struct {
	ListingID string `json:"listingId"`
}

type offerRow struct {
	OfferID           string          `json:"offerId"`
	SKU               string          `json:"sku"`
	Status            string          `json:"status"`
	AvailableQuantity int             `json:"availableQuantity"`
	PricingSummary    *pricingSummary `json:"pricingSummary,omitempty"`
	Listing           *offerListing   `json:"listing,omitempty"`
}

type offersResponse struct {
	Offers []offerRow `json:"offers"`
}

// offerStatusPublished is the status of a live offer
const offerStatusPublished = "PUBLISHED"

type quantityRequest struct {
	SKU                        string                     `json:"sku"`
	ShipToLocationAvailability shipToLocationAvailability `json:"shipToLocationAvailability"`
}

type bulkQuantityRequest struct {
	Requests []quantityRequest `json:"requests"`
}

type bulkQuantityResult struct {
	SKU        string        `json:"sku"`
	StatusCode int           `json:"statusCode"`
	Errors     []errorDetail `json:"errors,omitempty"`
}

type bulkQuantityResponse struct {
	Responses []bulkQuantityResult `json:"responses"`
}

type migrateRequest struct {
	Requests []migrateListingRef `json:"requests"`
}

type migrateListingRef struct {
	ListingID string `json:"listingId"`
}

type migratedInventoryItem struct {
	SKU     string `json:"sku"`
	OfferID string `json:"offerId"`
}

type migrateResult struct {
	ListingID      string                  `json:"listingId"`
	StatusCode     int                     `json:"statusCode"`
	InventoryItems []migratedInventoryItem `json:"inventoryItems,omitempty"`
	Errors         []errorDetail           `json:"errors,omitempty"`
}

type migrateResponse struct {
	Responses []migrateResult `json:"responses"`
}

// ---------------------------------------------------------------------------
// Fulfillment
// ---------------------------------------------------------------------------

type lineItemCost struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type orderLineItem struct {
	LineItemID   string       `json:"lineItemId"`
	SKU          string       `json:"sku"`
	Quantity     int          `json:"quantity"`
	LineItemCost lineItemCost `json:"lineItemCost"`
}

type orderPricingSummary struct {
	Total priceAmount `json:"total"`
}

type orderRow struct {
	OrderID                string              `json:"orderId"`
	CreationDate           string              `json:"creationDate"`
	OrderFulfillmentStatus string              `json:"orderFulfillmentStatus"`
	CancelState            string              `json:"cancelState,omitempty"`
	PricingSummary         orderPricingSummary `json:"pricingSummary"`
	LineItems              []orderLineItem     `json:"lineItems"`
}

type ordersResponse struct {
	Orders []orderRow `json:"orders"`
	Total  int        `json:"total"`
}

// cancelStateCanceled marks a fully cancelled order
const cancelStateCanceled = "CANCELED"

// fulfillmentStatusFulfilled marks a fully shipped order
const fulfillmentStatusFulfilled = "FULFILLED"

type shippingFulfillmentPayload struct {
	TrackingNumber      string `json:"trackingNumber"`
	ShippingCarrierCode string `json:"shippingCarrierCode"`
	ShippedDate         string `json:"shippedDate"`
}

type refundAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type refundPayload struct {
	ReasonForRefund string        `json:"reasonForRefund"`
	RefundAmount    *refundAmount `json:"orderLevelRefundAmount,omitempty"`
}
