package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestClient_Lookup(t *testing.T) {
	prices := map[string]string{
		"AAPL": "189.30",
		"GOOG": "141.8",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		for symbol, price := range prices {
			if r.URL.Path == "/stock/"+symbol+"/quote" {
				fmt.Fprintf(w, `{"symbol": %q, "latestPrice": %s}`, symbol, price)
				return
			}
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		q, err := client.Lookup(ctx, "AAPL")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.Symbol != "AAPL" {
			t.Errorf("expected symbol AAPL, got %s", q.Symbol)
		}
		if !q.Price.Equal(decimal.RequireFromString("189.30")) {
			t.Errorf("expected price 189.30, got %s", q.Price)
		}
	})

	t.Run("NormalizesSymbol", func(t *testing.T) {
		q, err := client.Lookup(ctx, "  goog ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.Symbol != "GOOG" {
			t.Errorf("expected symbol GOOG, got %s", q.Symbol)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := client.Lookup(ctx, "ZZZZ")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("EmptySymbol", func(t *testing.T) {
		_, err := client.Lookup(ctx, "   ")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("APIError", func(t *testing.T) {
		badClient := NewClient(srv.URL, "wrong-token")
		_, err := badClient.Lookup(ctx, "AAPL")
		if err == nil {
			t.Errorf("expected error, got nil")
		}
		if errors.Is(err, ErrNotFound) {
			t.Errorf("a server fault must not look like an unknown symbol at this layer")
		}
	})
}

func TestStatic_Lookup(t *testing.T) {
	provider := NewStatic(map[string]decimal.Decimal{
		"aapl": decimal.NewFromFloat(189.30),
	})
	ctx := context.Background()

	q, err := provider.Lookup(ctx, "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Price.Equal(decimal.NewFromFloat(189.30)) {
		t.Errorf("expected price 189.30, got %s", q.Price)
	}

	if _, err := provider.Lookup(ctx, "MSFT"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	provider.SetPrice("MSFT", decimal.NewFromInt(410))
	q, err = provider.Lookup(ctx, "msft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Price.Equal(decimal.NewFromInt(410)) {
		t.Errorf("expected price 410, got %s", q.Price)
	}
}
