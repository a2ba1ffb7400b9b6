package dto

// ItemReconcileResponse reports the drift classes found and repaired for a
// single item after a webhook-triggered reconciliation.
type ItemReconcileResponse struct {
	ItemID          string   `json:"item_id"`
	Classifications []string `json:"classifications"`
}

// OrderImportResponse summarizes a single-order import.
type OrderImportResponse struct {
	OrderID   string `json:"order_id"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// InvoiceSyncResponse acknowledges a webhook-triggered invoice status push.
type InvoiceSyncResponse struct {
	InvoiceID string `json:"invoice_id"`
}

// DriftStatusResponse reports current drift backlog per category.
type DriftStatusResponse struct {
	NewCandidates    int64 `json:"new_candidates"`
	QuantityDrift    int64 `json:"quantity_drift"`
	Oversold         int64 `json:"oversold"`
	ContentStale     int64 `json:"content_stale"`
	PriceDrift       int64 `json:"price_drift"`
	StaleUnavailable int64 `json:"stale_unavailable"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
