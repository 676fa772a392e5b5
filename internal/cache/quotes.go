// Package cache keeps latest quotes and pass locks in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/trogers1052/signal-trader/internal/marketdata"
	"github.com/trogers1052/signal-trader/internal/models"
	"github.com/trogers1052/signal-trader/internal/risk"
)

const quotePrefix = "signal-trader:quote:"

// QuoteCache serves quotes from Redis and falls back to the wrapped provider
// on a miss. Bars always come from the wrapped provider.
type QuoteCache struct {
	client redis.Cmdable
	next   marketdata.Provider
	ttl    time.Duration
	logger *zap.Logger
}

// NewQuoteCache wraps next. A zero ttl defaults to one minute.
func NewQuoteCache(client redis.Cmdable, next marketdata.Provider, ttl time.Duration, logger *zap.Logger) *QuoteCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteCache{client: client, next: next, ttl: ttl, logger: logger}
}

// GetBars delegates to the wrapped provider
func (c *QuoteCache) GetBars(ctx context.Context, symbol string) ([]models.Bar, error) {
	return c.next.GetBars(ctx, symbol)
}

// GetQuote returns the cached quote or reads through to the wrapped provider.
// Redis failures degrade to the wrapped provider.
func (c *QuoteCache) GetQuote(ctx context.Context, symbol string) (float64, error) {
	raw, err := c.client.Get(ctx, quoteKey(symbol)).Result()
	switch {
	case err == nil:
		price, perr := strconv.ParseFloat(raw, 64)
		if perr == nil {
			return price, nil
		}
		c.logger.Warn("Discarding unparsable cached quote", zap.String("symbol", symbol), zap.String("value", raw))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("Quote cache read failed", zap.String("symbol", symbol), zap.Error(err))
	}

	price, err := c.next.GetQuote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if err := c.SetQuote(ctx, symbol, price); err != nil {
		c.logger.Warn("Quote cache write failed", zap.String("symbol", symbol), zap.Error(err))
	}
	return price, nil
}

// SetQuote stores price for symbol with the cache TTL
func (c *QuoteCache) SetQuote(ctx context.Context, symbol string, price float64) error {
	if !risk.ValidPrice(price) {
		return fmt.Errorf("refusing to cache invalid quote %v for %s", price, symbol)
	}
	if err := c.client.Set(ctx, quoteKey(symbol), strconv.FormatFloat(price, 'f', -1, 64), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache quote: %w", err)
	}
	return nil
}

func quoteKey(symbol string) string {
	return quotePrefix + strings.ToUpper(symbol)
}
