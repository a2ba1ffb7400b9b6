package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "ASC" as the default if the input is invalid or empty; the drift
// scans rely on oldest-first ordering to repair the longest-standing drift
// first.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "DESC" {
		return "DESC"
	}
	return "ASC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// SourceItemSortFields contains allowed sort fields for source items
var SourceItemSortFields = map[string]bool{
	"id":           true,
	"title":        true,
	"group_code":   true,
	"quantity":     true,
	"price":        true,
	"last_sold_at": true,
	"updated_at":   true,
}

// MirrorItemSortFields contains allowed sort fields for mirror items
var MirrorItemSortFields = map[string]bool{
	"item_id":    true,
	"listing_id": true,
	"quantity":   true,
	"price":      true,
	"created_at": true,
	"updated_at": true,
}

// MirrorTransactionSortFields contains allowed sort fields for mirror transactions
var MirrorTransactionSortFields = map[string]bool{
	"transaction_id": true,
	"order_id":       true,
	"invoice_id":     true,
	"created_at":     true,
	"updated_at":     true,
}
