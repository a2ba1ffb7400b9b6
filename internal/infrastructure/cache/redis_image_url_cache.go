package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisImageURLCache implements ImageURLCache using Redis. Suitable for
// distributed deployments where multiple instances share image lookups.
type RedisImageURLCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisImageURLCache creates a new Redis-based image URL cache
func NewRedisImageURLCache(cfg RedisConfig, ttl time.Duration) (*RedisImageURLCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisImageURLCacheWithClient(client, "", ttl), nil
}

// NewRedisImageURLCacheWithClient creates a cache with an existing Redis
// client. Useful for testing or when sharing a client across components.
func NewRedisImageURLCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisImageURLCache {
	if keyPrefix == "" {
		keyPrefix = "images:item:"
	}
	if ttl <= 0 {
		ttl = DefaultImageTTL
	}
	return &RedisImageURLCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Get retrieves the cached URLs for an item
func (c *RedisImageURLCache) Get(ctx context.Context, itemID string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+itemID).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read image cache: %w", err)
	}

	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil, false, fmt.Errorf("failed to decode image cache entry: %w", err)
	}
	return urls, true, nil
}

// Set stores the URLs for an item
func (c *RedisImageURLCache) Set(ctx context.Context, itemID string, urls []string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	if urls == nil {
		// A negative entry still round-trips as a JSON array.
		urls = []string{}
	}

	encoded, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("failed to encode image cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+itemID, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write image cache: %w", err)
	}
	return nil
}

// Delete removes the entry for an item
func (c *RedisImageURLCache) Delete(ctx context.Context, itemID string) error {
	if err := c.client.Del(ctx, c.keyPrefix+itemID).Err(); err != nil {
		return fmt.Errorf("failed to delete image cache entry: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisImageURLCache) Close() error {
	return c.client.Close()
}

// Ensure RedisImageURLCache implements ImageURLCache
var _ ImageURLCache = (*RedisImageURLCache)(nil)
