package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/catalog"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/mirror"
)

// Classification names one reason why an item needs a corrective remote
// action. An item may match several classifications at once; the priority
// order decides which corrective action runs first.
type Classification string

const (
	// ClassificationOversold means the remote listing advertises more stock
	// than the source actually has. Highest priority: it risks selling
	// stock that does not exist.
	ClassificationOversold Classification = "OVERSOLD"
	// ClassificationQuantityDrift means the mirrored quantity differs from
	// the target quantity.
	ClassificationQuantityDrift Classification = "QUANTITY_DRIFT"
	// ClassificationContentStale means the source record changed after the
	// mirror was last confirmed, or a mismatch slipped past narrower rules.
	ClassificationContentStale Classification = "CONTENT_STALE"
	// ClassificationPriceDrift means the price delta reaches the minor-unit
	// threshold.
	ClassificationPriceDrift Classification = "PRICE_DRIFT"
	// ClassificationNewCandidate means the item is not listed and eligible.
	ClassificationNewCandidate Classification = "NEW_CANDIDATE"
	// ClassificationStaleUnavailable means the listing is live but the
	// source item is no longer eligible, so the listing must be ended.
	ClassificationStaleUnavailable Classification = "STALE_UNAVAILABLE"
)

// String returns the string representation of the classification
func (c Classification) String() string {
	return string(c)
}

// Priority returns the corrective-action priority; lower runs first.
func (c Classification) Priority() int {
	switch c {
	case ClassificationOversold:
		return 1
	case ClassificationQuantityDrift:
		return 2
	case ClassificationContentStale:
		return 3
	case ClassificationPriceDrift:
		return 4
	case ClassificationNewCandidate:
		return 5
	case ClassificationStaleUnavailable:
		return 6
	default:
		return 99
	}
}

// Classify evaluates one source/mirror join against the scan policy and
// returns every matching classification in priority order. A nil mirror
// means the item has never been listed. The batch scans in the persistence
// layer express exactly these predicates in SQL; webhook paths call this
// function directly so polling and push share one definition.
func Classify(now time.Time, source *catalog.SourceItem, m *mirror.Item, pol mirror.ScanPolicy) []Classification {
	if source == nil {
		return nil
	}

	var matched []Classification
	target := TargetQuantity(source.Quantity, pol.MaxListedQuantity)

	if m != nil && m.Active() {
		if m.Quantity > target {
			matched = append(matched, ClassificationOversold)
		}
		if m.Quantity != target {
			matched = append(matched, ClassificationQuantityDrift)
		}
		priceDelta := source.Price.Sub(m.Price).Abs()
		if source.UpdatedAt.After(m.UpdatedAt) ||
			priceDelta.GreaterThanOrEqual(pol.MinorUnitThreshold) ||
			m.Quantity != target {
			matched = append(matched, ClassificationContentStale)
		}
		if priceDelta.GreaterThanOrEqual(pol.MinorUnitThreshold) {
			matched = append(matched, ClassificationPriceDrift)
		}
		if !source.Eligible(now) {
			matched = append(matched, ClassificationStaleUnavailable)
		}
	}

	if (m == nil || m.Quantity < 0) &&
		source.Eligible(now) &&
		source.RecentlyActive(now, pol.NewCandidateLookback) {
		matched = append(matched, ClassificationNewCandidate)
	}

	return matched
}

// NeedsReprice reports whether the price delta between source and mirror
// reaches the repricing threshold.
func NeedsReprice(source *catalog.SourceItem, m *mirror.Item, pol mirror.ScanPolicy) bool {
	if source == nil || m == nil {
		return false
	}
	return source.Price.Sub(m.Price).Abs().GreaterThanOrEqual(pol.RepriceThreshold)
}

// DefaultScanPolicy returns the thresholds and windows used when nothing is
// configured.
func DefaultScanPolicy() mirror.ScanPolicy {
	return mirror.ScanPolicy{
		MaxListedQuantity:    DefaultMaxListedQuantity,
		MinorUnitThreshold:   decimal.NewFromFloat(0.01),
		RepriceThreshold:     decimal.NewFromFloat(0.50),
		NewCandidateLookback: 365 * 24 * time.Hour,
	}
}
