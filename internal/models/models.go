package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered user
type User struct {
	ID           int
	Username     string
	PasswordHash string
	Cash         decimal.Decimal
	CreatedAt    time.Time
}

// Holding is a user's current position in one symbol.
// A row exists only while shares > 0.
type Holding struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Shares    int       `json:"shares"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is one executed buy or sell. Rows are append-only.
type Transaction struct {
	ID        int             `json:"id"`
	UserID    int             `json:"user_id"`
	Type      string          `json:"type"` // "buy" or "sell", uppercased for display
	Symbol    string          `json:"symbol"`
	Shares    int             `json:"shares"`
	Amount    decimal.Decimal `json:"amount"` // shares * price at execution
	CreatedAt time.Time       `json:"created_at"`
}

// Quote is the current market price for a symbol
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// PortfolioRow is one holding priced at the current quote
type PortfolioRow struct {
	Symbol string          `json:"symbol"`
	Shares int             `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
}

// Portfolio is a full valuation snapshot for one user
type Portfolio struct {
	Rows       []PortfolioRow  `json:"rows"`
	Cash       decimal.Decimal `json:"cash"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}
