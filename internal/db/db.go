package db

import (
	"context"
	"fmt"

	"github.com/avelichko/papertrade/internal/models"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool. NUMERIC columns scan
// directly into decimal.Decimal.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// Begin starts a database transaction. The trading engine owns the
// transaction boundary; the Lock*/Insert*/Update* methods below run inside it.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.Pool.Begin(ctx)
}

// CreateUser inserts a new user with the starting cash balance
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string, startingCash decimal.Decimal) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO users (username, password_hash, cash) VALUES ($1, $2, $3) RETURNING id, username, password_hash, cash, created_at",
		username, passwordHash, startingCash).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Cash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, cash, created_at FROM users WHERE username = $1",
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Cash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserCash retrieves a user's current cash balance
func (db *DB) GetUserCash(ctx context.Context, userID int) (decimal.Decimal, error) {
	var cash decimal.Decimal
	err := db.Pool.QueryRow(ctx, "SELECT cash FROM users WHERE id = $1", userID).Scan(&cash)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to get cash: %w", err)
	}
	return cash, nil
}

// GetHoldings retrieves all holdings for a user, ordered by symbol
func (db *DB) GetHoldings(ctx context.Context, userID int) ([]models.Holding, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, user_id, symbol, shares, updated_at FROM holdings WHERE user_id = $1 ORDER BY symbol",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.ID, &h.UserID, &h.Symbol, &h.Shares, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// GetUserTransactions retrieves all transactions for a user in append order
func (db *DB) GetUserTransactions(ctx context.Context, userID int) ([]models.Transaction, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, user_id, type, symbol, shares, amount, created_at FROM transactions WHERE user_id = $1 ORDER BY created_at ASC, id ASC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Symbol, &t.Shares, &t.Amount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// GetActiveSymbols returns every symbol currently held by any user
func (db *DB) GetActiveSymbols(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, "SELECT DISTINCT symbol FROM holdings ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to get active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// LockUserCash locks the user row for update and returns the cash balance.
// Returns pgx.ErrNoRows if the user does not exist.
func (db *DB) LockUserCash(ctx context.Context, tx pgx.Tx, userID int) (decimal.Decimal, error) {
	var cash decimal.Decimal
	err := tx.QueryRow(ctx, "SELECT cash FROM users WHERE id = $1 FOR UPDATE", userID).Scan(&cash)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return cash, nil
}

// LockHolding locks one holding row for update and returns the share count.
// Returns pgx.ErrNoRows if the user holds no shares of the symbol.
func (db *DB) LockHolding(ctx context.Context, tx pgx.Tx, userID int, symbol string) (int, error) {
	var shares int
	err := tx.QueryRow(ctx,
		"SELECT shares FROM holdings WHERE user_id = $1 AND symbol = $2 FOR UPDATE",
		userID, symbol).Scan(&shares)
	if err != nil {
		return 0, err
	}
	return shares, nil
}

// LockHoldings locks every holding row of a user for update
func (db *DB) LockHoldings(ctx context.Context, tx pgx.Tx, userID int) ([]models.Holding, error) {
	rows, err := tx.Query(ctx,
		"SELECT id, user_id, symbol, shares, updated_at FROM holdings WHERE user_id = $1 ORDER BY symbol FOR UPDATE",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.ID, &h.UserID, &h.Symbol, &h.Shares, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// InsertTransaction appends one transaction to the ledger
func (db *DB) InsertTransaction(ctx context.Context, tx pgx.Tx, userID int, txnType, symbol string, shares int, amount decimal.Decimal) (*models.Transaction, error) {
	txn := &models.Transaction{}
	err := tx.QueryRow(ctx,
		"INSERT INTO transactions (user_id, type, symbol, shares, amount) VALUES ($1, $2, $3, $4, $5) RETURNING id, user_id, type, symbol, shares, amount, created_at",
		userID, txnType, symbol, shares, amount).Scan(
		&txn.ID, &txn.UserID, &txn.Type, &txn.Symbol, &txn.Shares, &txn.Amount, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return txn, nil
}

// UpsertHolding creates a holding or adds shares to an existing one
func (db *DB) UpsertHolding(ctx context.Context, tx pgx.Tx, userID int, symbol string, shares int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO holdings (user_id, symbol, shares)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, symbol)
		DO UPDATE SET shares = holdings.shares + EXCLUDED.shares, updated_at = NOW()
	`, userID, symbol, shares)
	if err != nil {
		return fmt.Errorf("failed to upsert holding: %w", err)
	}
	return nil
}

// SetHoldingShares updates the share count of an existing holding
func (db *DB) SetHoldingShares(ctx context.Context, tx pgx.Tx, userID int, symbol string, shares int) error {
	_, err := tx.Exec(ctx,
		"UPDATE holdings SET shares = $1, updated_at = NOW() WHERE user_id = $2 AND symbol = $3",
		shares, userID, symbol)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	return nil
}

// DeleteHolding removes a holding row. Zero-share rows must never persist.
func (db *DB) DeleteHolding(ctx context.Context, tx pgx.Tx, userID int, symbol string) error {
	_, err := tx.Exec(ctx,
		"DELETE FROM holdings WHERE user_id = $1 AND symbol = $2",
		userID, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}

// AdjustUserCash credits (positive delta) or debits (negative delta) cash
func (db *DB) AdjustUserCash(ctx context.Context, tx pgx.Tx, userID int, delta decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		"UPDATE users SET cash = cash + $1 WHERE id = $2",
		delta, userID)
	if err != nil {
		return fmt.Errorf("failed to adjust cash: %w", err)
	}
	return nil
}
