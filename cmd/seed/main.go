package main

import (
	"context"
	"fmt"
	"os"

	"github.com/avelichko/papertrade/internal/auth"
	"github.com/avelichko/papertrade/internal/config"
	"github.com/avelichko/papertrade/internal/db"
	"github.com/avelichko/papertrade/internal/engine"
	"github.com/avelichko/papertrade/internal/quote"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Seed the database with demo users, holdings and transaction history
func main() {
	ctx := context.Background()

	_ = godotenv.Load()
	cfg := new(config.Config)
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(ctx)

	// Skip if demo data already exists
	var count int
	err = database.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE username IN ('trader1', 'trader2')").Scan(&count)
	if err != nil {
		log.Fatalf("Failed to check users: %v", err)
	}
	if count > 0 {
		fmt.Println("Demo users already exist. No need to seed.")
		os.Exit(0)
	}

	quotes := quote.NewStatic(map[string]decimal.Decimal{
		"AAPL": decimal.NewFromFloat(189.30),
		"GOOG": decimal.NewFromFloat(141.80),
		"NFLX": decimal.NewFromFloat(485.50),
		"TSLA": decimal.NewFromFloat(246.10),
	})

	startingCash, err := decimal.NewFromString(cfg.StartingCash)
	if err != nil {
		log.Fatalf("Invalid STARTING_CASH %q: %v", cfg.StartingCash, err)
	}
	authService := auth.NewAuthService(database, cfg.JWTSecret, startingCash)
	eng := engine.NewEngine(database, quotes)

	trader1, err := authService.Register(ctx, "trader1", "password123", "password123")
	if err != nil {
		log.Fatalf("Failed to create trader1: %v", err)
	}
	trader2, err := authService.Register(ctx, "trader2", "password123", "password123")
	if err != nil {
		log.Fatalf("Failed to create trader2: %v", err)
	}

	// trader1 holds a small portfolio with one round trip in the history
	for _, trade := range []struct {
		symbol string
		shares int
	}{
		{"AAPL", 10},
		{"GOOG", 5},
		{"NFLX", 4},
	} {
		if _, err := eng.Buy(ctx, trader1.ID, trade.symbol, trade.shares); err != nil {
			log.Fatalf("Failed to buy %s for trader1: %v", trade.symbol, err)
		}
	}
	if _, err := eng.Sell(ctx, trader1.ID, "NFLX", 4); err != nil {
		log.Fatalf("Failed to sell NFLX for trader1: %v", err)
	}

	// trader2 holds a single position
	if _, err := eng.Buy(ctx, trader2.ID, "TSLA", 8); err != nil {
		log.Fatalf("Failed to buy TSLA for trader2: %v", err)
	}

	fmt.Println("Successfully seeded the database with demo traders!")
}
