package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// stockCountTTL bounds staleness between invalidations; the store stays the
// source of truth.
const stockCountTTL = 10 * time.Minute

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

// GetStockCount returns the cached sellable unit count for a product.
// The second return is false on a cache miss.
func (c *Client) GetStockCount(ctx context.Context, productID int64) (int, bool, error) {
	val, err := c.rdb.Get(ctx, stockKey(productID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stock count for product %d: %w", productID, err)
	}
	return count, true, nil
}

// SetStockCount caches the sellable unit count for a product
func (c *Client) SetStockCount(ctx context.Context, productID int64, count int) error {
	return c.rdb.Set(ctx, stockKey(productID), count, stockCountTTL).Err()
}

// InvalidateProductStock drops the cached counts for the given products.
// Fire-and-forget from the callers' perspective; a failure only delays
// freshness until the TTL expires.
func (c *Client) InvalidateProductStock(ctx context.Context, productIDs ...int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, stockKey(id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
