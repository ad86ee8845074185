package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// itemCache is a cache-aside wrapper over postgresStore for menu items,
// adapted nearly verbatim from stock/cache.go — a read-through Get that
// fills the cache on a miss, plus Invalidate, repointed at MenuItem
// instead of a stock-keeping unit.
type itemCache struct {
	client *redis.Client
	store  *postgresStore
	ttl    time.Duration
}

func newItemCache(addr string, store *postgresStore, ttl time.Duration) (*itemCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &itemCache{client: client, store: store, ttl: ttl}, nil
}

func (c *itemCache) Close() error {
	return c.client.Close()
}

func (c *itemCache) key(id string) string {
	return "menu_item:" + id
}

// GetMenuItem reads through the cache, falling back to Postgres and
// populating the cache on a miss.
func (c *itemCache) GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err == nil {
		var item MenuItem
		if unmarshalErr := json.Unmarshal(data, &item); unmarshalErr == nil {
			return &item, nil
		}
	}

	item, err := c.store.GetMenuItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, marshalErr := json.Marshal(item); marshalErr == nil {
		c.client.Set(ctx, c.key(id), raw, c.ttl)
	}

	return item, nil
}

// InvalidateMenuItem drops a cached entry, e.g. after a merchant update.
func (c *itemCache) InvalidateMenuItem(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
