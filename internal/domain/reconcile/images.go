package reconcile

import (
	"context"
	"errors"
)

// ErrNoImage means no image could be discovered for an item. A listing is
// never created without at least one image; the item is skipped, not failed.
var ErrNoImage = errors.New("reconcile: no image found for item")

// ImageFinder discovers cover image URLs for a catalog item. The concrete
// implementation probes the shop's image hosting and caches results with a
// bounded lifetime.
type ImageFinder interface {
	FindImages(ctx context.Context, itemID string) ([]string, error)
}
