// Package cache wraps a Redis client with namespaced keys.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client redis.UniversalClient
}

// New connects to the Redis instance described by url
// (redis://[:password@]host:port/db).
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{client: client}, nil
}

func Key(namespace, key string) string {
	return namespace + ":" + key
}

// SetNX stores value only when the key is absent.
func (c *Cache) SetNX(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, Key(namespace, key), value, ttl).Result()
}

func (c *Cache) Delete(ctx context.Context, namespace, key string) error {
	return c.client.Del(ctx, Key(namespace, key)).Err()
}

func (c *Cache) TTL(ctx context.Context, namespace, key string) (time.Duration, error) {
	return c.client.TTL(ctx, Key(namespace, key)).Result()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
