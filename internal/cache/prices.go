package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

const keyPrefix = "prices:"

// Store is the subset of the Redis client the cache uses
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// PriceSource loads price history on a cache miss
type PriceSource interface {
	GetPrices(ctx context.Context, symbol string, r models.DateRange) ([]models.PricePoint, error)
}

// PriceCache is a read-through Redis cache in front of a PriceSource.
// Redis failures degrade to reading the source directly.
type PriceCache struct {
	store  Store
	source PriceSource
	ttl    time.Duration
	logger *log.Logger
}

// NewPriceCache creates a PriceCache
func NewPriceCache(store Store, source PriceSource, ttl time.Duration) *PriceCache {
	return &PriceCache{
		store:  store,
		source: source,
		ttl:    ttl,
		logger: &log.DefaultLogger,
	}
}

// WithLogger sets the logger
func (c *PriceCache) WithLogger(logger *log.Logger) *PriceCache {
	c.logger = logger
	return c
}

// GetPrices serves cached closes or loads and caches them. Empty results are not cached.
func (c *PriceCache) GetPrices(ctx context.Context, symbol string, r models.DateRange) ([]models.PricePoint, error) {
	key := priceKey(symbol, r)

	data, err := c.store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var prices []models.PricePoint
		if err := json.Unmarshal(data, &prices); err == nil {
			return prices, nil
		}
		c.logger.Warn().Str("key", key).Msg("Discarding undecodable cached prices")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("Price cache read failed")
	}

	prices, err := c.source.GetPrices(ctx, symbol, r)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return prices, nil
	}

	payload, err := json.Marshal(prices)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prices for %s: %w", symbol, err)
	}
	if err := c.store.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Price cache write failed")
	}
	return prices, nil
}

// Invalidate drops every cached range of a symbol
func (c *PriceCache) Invalidate(ctx context.Context, symbol string) error {
	var cursor uint64
	pattern := keyPrefix + symbol + ":*"
	for {
		keys, next, err := c.store.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cached prices for %s: %w", symbol, err)
		}
		if len(keys) > 0 {
			if err := c.store.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cached prices for %s: %w", symbol, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func priceKey(symbol string, r models.DateRange) string {
	return keyPrefix + symbol + ":" + r.From.Format(models.DateFormat) + ":" + r.To.Format(models.DateFormat)
}
