// Package memory implements cache.Cache in process memory. It backs single-instance
// deployments that run without Redis.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocacheclient "github.com/patrickmn/go-cache"

	"github.com/vadimbarashkov/shortlink/internal/cache"
)

type Cache struct {
	manager *gocache.Cache[[]byte]
}

// New returns an empty cache. Expired entries are purged every cleanupInterval.
func New(cleanupInterval time.Duration) *Cache {
	client := gocacheclient.New(gocacheclient.NoExpiration, cleanupInterval)

	return &Cache{
		manager: gocache.New[[]byte](gocache_store.NewGoCache(client)),
	}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "adapter.cache.memory.Cache.Get"

	v, err := c.manager.Get(ctx, key)
	if err != nil {
		var notFound *store.NotFound
		if errors.As(err, &notFound) {
			return nil, cache.ErrMiss
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const op = "adapter.cache.memory.Cache.Set"

	if err := c.manager.Set(ctx, key, value, store.WithExpiration(ttl)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	const op = "adapter.cache.memory.Cache.Delete"

	for _, key := range keys {
		if err := c.manager.Delete(ctx, key); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
