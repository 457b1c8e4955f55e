// Package redis provides the connection behind the person cache.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"deathnote/internal/platform/config"
)

// Client wraps the go-redis client so callers can health-check the cache
// connection.
type Client struct {
	*redis.Client
}

// New dials the cache connection described by cfg. A nil client with a nil
// error means no cache is configured; callers fall back to uncached stores.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the cache connection is usable. Served by the
// process health endpoint when a cache is configured.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
