package quote

import (
	"context"
	"strings"
	"time"

	"github.com/avelichko/papertrade/internal/models"

	"github.com/go-redis/cache/v8"
	"github.com/shopspring/decimal"
)

// cachedQuote is the wire form stored in Redis. The price travels as a
// string because decimal.Decimal has no exported fields for msgpack.
type cachedQuote struct {
	Symbol string
	Price  string
}

// Cached wraps a Provider with a Redis-backed cache. Only successful
// lookups are cached; failures always hit the inner provider again.
type Cached struct {
	inner Provider
	cache *cache.Cache
	ttl   time.Duration
}

// NewCached is constructor
func NewCached(inner Provider, c *cache.Cache, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: c, ttl: ttl}
}

// Lookup returns a cached quote when fresh, otherwise asks the inner provider
func (c *Cached) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	key := "quote:" + strings.ToUpper(strings.TrimSpace(symbol))

	var cached cachedQuote
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		if price, perr := decimal.NewFromString(cached.Price); perr == nil {
			return models.Quote{Symbol: cached.Symbol, Price: price}, nil
		}
	}

	q, err := c.inner.Lookup(ctx, symbol)
	if err != nil {
		return models.Quote{}, err
	}

	// A stale entry is acceptable; a failed write is not worth failing the lookup
	_ = c.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: &cachedQuote{Symbol: q.Symbol, Price: q.Price.String()},
		TTL:   c.ttl,
	})
	return q, nil
}
