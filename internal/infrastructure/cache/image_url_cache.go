package cache

import (
	"context"
	"time"
)

// DefaultImageTTL is the lifetime of a cached image URL lookup.
const DefaultImageTTL = 24 * time.Hour

// ImageURLCache caches the discovered image URLs per catalog item. Negative
// results (no image found) are cached too so items without artwork do not
// probe the image host on every cycle.
type ImageURLCache interface {
	// Get returns the cached URLs and whether the item was cached at all.
	// A cached empty slice is a valid negative entry.
	Get(ctx context.Context, itemID string) ([]string, bool, error)

	// Set stores the URLs for an item with the given TTL. A zero TTL uses
	// the default.
	Set(ctx context.Context, itemID string, urls []string, ttl time.Duration) error

	// Delete removes the entry for an item.
	Delete(ctx context.Context, itemID string) error

	// Close releases any resources held by the cache.
	Close() error
}
