package reconcile

import "github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"

// DefaultMaxListedQuantity caps how many units of an item are advertised on
// the marketplace, independent of actual warehouse stock.
const DefaultMaxListedQuantity = 3

// TargetQuantity maps a source quantity to the quantity the remote listing
// must advertise. It is total and deterministic:
//
//	q <= 0          -> EndedQuantity (-1), the listing must not exist
//	1 <= q <= max   -> q
//	q > max         -> max
//
// This is the single canonical quantity formula in the repository; every
// call site goes through it.
func TargetQuantity(quantity, maxListed int) int {
	if maxListed <= 0 {
		maxListed = DefaultMaxListedQuantity
	}
	if quantity <= 0 {
		return mirror.EndedQuantity
	}
	if quantity > maxListed {
		return maxListed
	}
	return quantity
}
