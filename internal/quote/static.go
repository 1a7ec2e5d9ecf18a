package quote

import (
	"context"
	"strings"
	"sync"

	"github.com/avelichko/papertrade/internal/models"

	"github.com/shopspring/decimal"
)

// Static serves quotes from a fixed in-memory table. Used by cmd/seed and
// in tests where no quote API is available.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStatic creates a static provider from a symbol -> price table
func NewStatic(prices map[string]decimal.Decimal) *Static {
	table := make(map[string]decimal.Decimal, len(prices))
	for symbol, price := range prices {
		table[strings.ToUpper(symbol)] = price
	}
	return &Static{prices: table}
}

// Lookup returns the fixed price for a symbol
func (s *Static) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	price, ok := s.prices[symbol]
	if !ok {
		return models.Quote{}, ErrNotFound
	}
	return models.Quote{Symbol: symbol, Price: price}, nil
}

// SetPrice updates or adds a price
func (s *Static) SetPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[strings.ToUpper(symbol)] = price
}
