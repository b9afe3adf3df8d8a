// Package cache provides a Redis-backed cache for the latest stock quotes.
// The database remains the source of truth; the cache is write-through on
// price updates and read-through in valuation, and every failure degrades to
// the database price.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ErrMiss is returned when no quote is cached for a stock
var ErrMiss = errors.New("price not cached")

// DefaultTTL bounds staleness when a write-through is missed
const DefaultTTL = 5 * time.Minute

// PriceCache stores the latest price per stock id in Redis
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a price cache on the given Redis instance
func New(addr, password string, db int, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PriceCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// GetPrice returns the cached quote for a stock, or ErrMiss
func (c *PriceCache) GetPrice(ctx context.Context, stockID int64) (decimal.Decimal, error) {
	val, err := c.client.Get(ctx, priceKey(stockID)).Result()
	if err == redis.Nil {
		return decimal.Zero, ErrMiss
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read price cache: %w", err)
	}

	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt cached price %q: %w", val, err)
	}
	return price, nil
}

// SetPrice stores the latest quote for a stock
func (c *PriceCache) SetPrice(ctx context.Context, stockID int64, price decimal.Decimal) error {
	if err := c.client.Set(ctx, priceKey(stockID), price.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write price cache: %w", err)
	}
	return nil
}

// Ping probes the Redis connection
func (c *PriceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *PriceCache) Close() error {
	return c.client.Close()
}

func priceKey(stockID int64) string {
	return fmt.Sprintf("stock:%d:price", stockID)
}
