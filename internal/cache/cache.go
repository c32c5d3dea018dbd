package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// Asset is a cached copy of an HTTP response body.
type Asset struct {
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// AssetCache wraps a Redis client and stores assets under a versioned cache name.
type AssetCache struct {
	client *redis.Client
	name   string
	ttl    time.Duration
}

// NewAssetCache constructs an AssetCache with a 24-hour TTL.
// Bumping name invalidates every entry written under the previous one.
func NewAssetCache(client *redis.Client, name string) *AssetCache {
	return &AssetCache{client: client, name: name, ttl: defaultTTL}
}

// key returns the Redis key for the given asset URL.
func (c *AssetCache) key(url string) string {
	return "offline:" + c.name + ":" + url
}

// Get retrieves an asset from cache.
// Returns nil, nil on a cache miss (not an error).
func (c *AssetCache) Get(ctx context.Context, url string) (*Asset, error) {
	val, err := c.client.Get(ctx, c.key(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for %s: %w", url, err)
	}

	var a Asset
	if err := json.Unmarshal(val, &a); err != nil {
		return nil, fmt.Errorf("unmarshaling cached asset %s: %w", url, err)
	}

	return &a, nil
}

// Set stores an asset with the configured TTL.
func (c *AssetCache) Set(ctx context.Context, a *Asset) error {
	if a == nil {
		return nil
	}

	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling asset %s: %w", a.URL, err)
	}

	if err := c.client.Set(ctx, c.key(a.URL), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for %s: %w", a.URL, err)
	}

	return nil
}

// Delete removes the cached entry for url.
func (c *AssetCache) Delete(ctx context.Context, url string) error {
	if err := c.client.Del(ctx, c.key(url)).Err(); err != nil {
		return fmt.Errorf("cache delete for %s: %w", url, err)
	}
	return nil
}
