package quote

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avelichko/papertrade/internal/models"

	"github.com/go-redis/cache/v8"
	"github.com/shopspring/decimal"
)

// countingProvider records how often each symbol reaches the inner provider
type countingProvider struct {
	inner Provider
	calls map[string]int
}

func (p *countingProvider) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	p.calls[strings.ToUpper(strings.TrimSpace(symbol))]++
	return p.inner.Lookup(ctx, symbol)
}

// Local-only cache mode, so no Redis server is needed in tests
func newTestCache() *cache.Cache {
	return cache.New(&cache.Options{
		LocalCache: cache.NewTinyLFU(1000, time.Minute),
	})
}

func TestCached_Lookup(t *testing.T) {
	ctx := context.Background()

	t.Run("SecondLookupHitsCache", func(t *testing.T) {
		static := NewStatic(map[string]decimal.Decimal{"AAPL": decimal.NewFromFloat(189.30)})
		counting := &countingProvider{inner: static, calls: make(map[string]int)}
		cached := NewCached(counting, newTestCache(), time.Minute)

		first, err := cached.Lookup(ctx, "AAPL")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := cached.Lookup(ctx, "AAPL")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if counting.calls["AAPL"] != 1 {
			t.Errorf("expected 1 provider call, got %d", counting.calls["AAPL"])
		}
		if second.Symbol != first.Symbol || !second.Price.Equal(first.Price) {
			t.Errorf("cached quote %+v differs from original %+v", second, first)
		}
	})

	t.Run("KeyNormalized", func(t *testing.T) {
		static := NewStatic(map[string]decimal.Decimal{"AAPL": decimal.NewFromFloat(189.30)})
		counting := &countingProvider{inner: static, calls: make(map[string]int)}
		cached := NewCached(counting, newTestCache(), time.Minute)

		if _, err := cached.Lookup(ctx, "AAPL"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Same symbol in a different spelling must not miss
		if _, err := cached.Lookup(ctx, " aapl "); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if counting.calls["AAPL"] != 1 {
			t.Errorf("expected 1 provider call, got %d", counting.calls["AAPL"])
		}
	})

	t.Run("MissFallsThrough", func(t *testing.T) {
		static := NewStatic(map[string]decimal.Decimal{"AAPL": decimal.NewFromFloat(189.30)})
		counting := &countingProvider{inner: static, calls: make(map[string]int)}
		cached := NewCached(counting, newTestCache(), time.Minute)

		q, err := cached.Lookup(ctx, "AAPL")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !q.Price.Equal(decimal.NewFromFloat(189.30)) {
			t.Errorf("expected price 189.30, got %s", q.Price)
		}
		if counting.calls["AAPL"] != 1 {
			t.Errorf("expected the miss to reach the provider, got %d calls", counting.calls["AAPL"])
		}
	})

	t.Run("FailuresNotCached", func(t *testing.T) {
		static := NewStatic(map[string]decimal.Decimal{})
		counting := &countingProvider{inner: static, calls: make(map[string]int)}
		cached := NewCached(counting, newTestCache(), time.Minute)

		// Every failed lookup hits the inner provider again
		for i := 1; i <= 2; i++ {
			if _, err := cached.Lookup(ctx, "MSFT"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if counting.calls["MSFT"] != i {
				t.Errorf("expected %d provider calls, got %d", i, counting.calls["MSFT"])
			}
		}

		// Once the symbol resolves, the earlier failures must not shadow it
		static.SetPrice("MSFT", decimal.NewFromInt(410))
		q, err := cached.Lookup(ctx, "MSFT")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !q.Price.Equal(decimal.NewFromInt(410)) {
			t.Errorf("expected price 410, got %s", q.Price)
		}

		// And the success is now cached
		if _, err := cached.Lookup(ctx, "MSFT"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if counting.calls["MSFT"] != 3 {
			t.Errorf("expected 3 provider calls, got %d", counting.calls["MSFT"])
		}
	})
}
