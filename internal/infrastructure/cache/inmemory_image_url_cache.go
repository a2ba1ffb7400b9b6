package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// defaultCleanupInterval is how often expired entries are swept
const defaultCleanupInterval = 5 * time.Minute

// InMemoryImageURLCache implements ImageURLCache using in-memory storage.
// Suitable for a single-instance deployment; distributed deployments use
// the Redis implementation so instances share lookups.
type InMemoryImageURLCache struct {
	entries sync.Map // map[string]*imageEntry
	ttl     time.Duration
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

type imageEntry struct {
	urls      []string
	expiresAt time.Time
}

func (e *imageEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryImageURLCacheOption is a functional option for configuring the cache
type InMemoryImageURLCacheOption func(*InMemoryImageURLCache)

// WithInMemoryTTL sets the default entry lifetime
func WithInMemoryTTL(ttl time.Duration) InMemoryImageURLCacheOption {
	return func(c *InMemoryImageURLCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithInMemoryLogger sets the logger for the cache
func WithInMemoryLogger(logger *zap.Logger) InMemoryImageURLCacheOption {
	return func(c *InMemoryImageURLCache) {
		c.logger = logger
	}
}

// NewInMemoryImageURLCache creates a new in-memory image URL cache
func NewInMemoryImageURLCache(opts ...InMemoryImageURLCacheOption) *InMemoryImageURLCache {
	cache := &InMemoryImageURLCache{
		ttl:    DefaultImageTTL,
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

// Get retrieves the cached URLs for an item
func (c *InMemoryImageURLCache) Get(ctx context.Context, itemID string) ([]string, bool, error) {
	if value, ok := c.entries.Load(itemID); ok {
		entry := value.(*imageEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			return entry.urls, true, nil
		}
		c.entries.Delete(itemID)
	}

	atomic.AddInt64(&c.misses, 1)
	return nil, false, nil
}

// Set stores the URLs for an item
func (c *InMemoryImageURLCache) Set(ctx context.Context, itemID string, urls []string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	c.entries.Store(itemID, &imageEntry{
		urls:      urls,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Delete removes the entry for an item
func (c *InMemoryImageURLCache) Delete(ctx context.Context, itemID string) error {
	c.entries.Delete(itemID)
	return nil
}

// Close stops the cleanup goroutine
func (c *InMemoryImageURLCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns cache hit and miss counters
func (c *InMemoryImageURLCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// cleanupExpired periodically removes expired entries
func (c *InMemoryImageURLCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			removed := 0
			c.entries.Range(func(key, value any) bool {
				if value.(*imageEntry).isExpired() {
					c.entries.Delete(key)
					removed++
				}
				return true
			})
			if removed > 0 {
				c.logger.Debug("cleaned up expired image cache entries",
					zap.Int("removed", removed))
			}
		}
	}
}

// Ensure InMemoryImageURLCache implements ImageURLCache
var _ ImageURLCache = (*InMemoryImageURLCache)(nil)
