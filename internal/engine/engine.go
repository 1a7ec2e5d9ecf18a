// Package engine implements the trading core: buys, sells, full
// liquidation, portfolio valuation and transaction history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avelichko/papertrade/internal/db"
	"github.com/avelichko/papertrade/internal/models"
	"github.com/avelichko/papertrade/internal/quote"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Engine orchestrates trades across the user, holding and transaction
// tables. Each operation is one database transaction: the quote is fetched
// first, rows are locked FOR UPDATE, and every write commits or rolls back
// together.
type Engine struct {
	DB     *db.DB
	Quotes quote.Provider
}

// NewEngine creates a trading engine
func NewEngine(database *db.DB, quotes quote.Provider) *Engine {
	return &Engine{DB: database, Quotes: quotes}
}

// Buy purchases shares of a symbol at the current price
func (e *Engine) Buy(ctx context.Context, userID int, symbol string, shares int) (*models.Transaction, error) {
	if shares <= 0 {
		return nil, ErrInvalidQuantity
	}

	// Quote I/O happens before any row is locked
	q, err := e.Quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol)
	}
	amount := q.Price.Mul(decimal.NewFromInt(int64(shares)))

	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cash, err := e.DB.LockUserCash(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", userID, err)
	}
	if amount.GreaterThan(cash) {
		return nil, ErrInsufficientFunds
	}

	txn, err := e.DB.InsertTransaction(ctx, tx, userID, "buy", q.Symbol, shares, amount)
	if err != nil {
		return nil, err
	}
	if err := e.DB.UpsertHolding(ctx, tx, userID, q.Symbol, shares); err != nil {
		return nil, err
	}
	if err := e.DB.AdjustUserCash(ctx, tx, userID, amount.Neg()); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit buy: %w", err)
	}
	return txn, nil
}

// Sell sells shares of a held symbol at the current price. The holding row
// is deleted when the sale empties it.
func (e *Engine) Sell(ctx context.Context, userID int, symbol string, shares int) (*models.Transaction, error) {
	if shares <= 0 {
		return nil, ErrInvalidQuantity
	}

	q, err := e.Quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol)
	}
	amount := q.Price.Mul(decimal.NewFromInt(int64(shares)))

	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Same lock order as Buy: user row first, then holding rows
	if _, err := e.DB.LockUserCash(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", userID, err)
	}

	owned, err := e.DB.LockHolding(ctx, tx, userID, q.Symbol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSuchHolding
		}
		return nil, fmt.Errorf("failed to lock holding: %w", err)
	}
	if shares > owned {
		return nil, ErrInsufficientShares
	}

	txn, err := e.DB.InsertTransaction(ctx, tx, userID, "sell", q.Symbol, shares, amount)
	if err != nil {
		return nil, err
	}
	if shares == owned {
		err = e.DB.DeleteHolding(ctx, tx, userID, q.Symbol)
	} else {
		err = e.DB.SetHoldingShares(ctx, tx, userID, q.Symbol, owned-shares)
	}
	if err != nil {
		return nil, err
	}
	if err := e.DB.AdjustUserCash(ctx, tx, userID, amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sell: %w", err)
	}
	return txn, nil
}

// LiquidateAll sells every holding of the user at current prices, one sell
// transaction per symbol. A user with no holdings is rejected up front.
func (e *Engine) LiquidateAll(ctx context.Context, userID int) ([]models.Transaction, error) {
	holdings, err := e.DB.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, ErrNoHoldings
	}

	// Fetch all prices before taking any lock
	prices := make(map[string]decimal.Decimal, len(holdings))
	for _, h := range holdings {
		q, err := e.Quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSymbol, h.Symbol)
		}
		prices[h.Symbol] = q.Price
	}

	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Same lock order as Buy: user row first, then holding rows
	if _, err := e.DB.LockUserCash(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", userID, err)
	}

	// Re-read under lock: share counts may have moved since the precheck
	locked, err := e.DB.LockHoldings(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if len(locked) == 0 {
		return nil, ErrNoHoldings
	}

	var txns []models.Transaction
	total := decimal.Zero
	for _, h := range locked {
		price, ok := prices[h.Symbol]
		if !ok {
			// Symbol appeared after the precheck; no price fetched for it
			return nil, fmt.Errorf("%w: %s", ErrInvalidSymbol, h.Symbol)
		}
		amount := price.Mul(decimal.NewFromInt(int64(h.Shares)))

		txn, err := e.DB.InsertTransaction(ctx, tx, userID, "sell", h.Symbol, h.Shares, amount)
		if err != nil {
			return nil, err
		}
		if err := e.DB.DeleteHolding(ctx, tx, userID, h.Symbol); err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
		total = total.Add(amount)
	}

	if err := e.DB.AdjustUserCash(ctx, tx, userID, total); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit liquidation: %w", err)
	}
	return txns, nil
}

// Valuation prices every holding of the user and returns the portfolio
// snapshot. Read-only.
func (e *Engine) Valuation(ctx context.Context, userID int) (*models.Portfolio, error) {
	cash, err := e.DB.GetUserCash(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := e.DB.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows := make([]models.PortfolioRow, 0, len(holdings))
	grandTotal := cash
	for _, h := range holdings {
		q, err := e.Quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSymbol, h.Symbol)
		}
		value := q.Price.Mul(decimal.NewFromInt(int64(h.Shares)))
		rows = append(rows, models.PortfolioRow{
			Symbol: h.Symbol,
			Shares: h.Shares,
			Price:  q.Price,
			Value:  value,
		})
		grandTotal = grandTotal.Add(value)
	}

	return &models.Portfolio{Rows: rows, Cash: cash, GrandTotal: grandTotal}, nil
}

// History returns the user's transactions in append order, type uppercased
// for display
func (e *Engine) History(ctx context.Context, userID int) ([]models.Transaction, error) {
	txns, err := e.DB.GetUserTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range txns {
		txns[i].Type = strings.ToUpper(txns[i].Type)
	}
	return txns, nil
}
