package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/avelichko/papertrade/internal/api"
	"github.com/avelichko/papertrade/internal/auth"
	"github.com/avelichko/papertrade/internal/config"
	"github.com/avelichko/papertrade/internal/db"
	"github.com/avelichko/papertrade/internal/engine"
	"github.com/avelichko/papertrade/internal/models"
	"github.com/avelichko/papertrade/internal/quote"

	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/cache/v8"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

var (
	clients   = make(map[*wsClient]bool)
	clientsMu sync.RWMutex
)

// broadcastQuotes pushes current prices for every held symbol to all
// websocket clients
func broadcastQuotes(database *db.DB, quotes quote.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	symbols, err := database.GetActiveSymbols(ctx)
	if err != nil {
		log.Errorf("Failed to list held symbols: %v", err)
		return
	}

	priced := make([]models.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		q, err := quotes.Lookup(ctx, symbol)
		if err != nil {
			log.Warnf("Failed to price %s: %v", symbol, err)
			continue
		}
		priced = append(priced, q)
	}

	data, err := json.Marshal(map[string][]models.Quote{"quotes": priced})
	if err != nil {
		log.Errorf("Failed to marshal quotes: %v", err)
		return
	}

	clientsMu.RLock()
	var dead []*wsClient
	for client := range clients {
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			log.Warnf("Failed to send quotes: %v", err)
			dead = append(dead, client)
		}
	}
	clientsMu.RUnlock()

	if len(dead) > 0 {
		clientsMu.Lock()
		for _, client := range dead {
			delete(clients, client)
		}
		clientsMu.Unlock()
	}
}

func handleWebSocket(database *db.DB, quotes quote.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Errorf("Failed to upgrade connection: %v", err)
			return
		}

		client := &wsClient{conn: conn}
		clientsMu.Lock()
		clients[client] = true
		clientsMu.Unlock()

		// Send an initial snapshot
		broadcastQuotes(database, quotes)

		// Keep connection alive and handle disconnection
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				clientsMu.Lock()
				delete(clients, client)
				clientsMu.Unlock()
				break
			}
		}
	}
}

// Main entry point: sets up configuration, database, quote provider and the
// HTTP server
func main() {
	ctx := context.Background()

	// Configuration
	_ = godotenv.Load()
	cfg := new(config.Config)
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	startingCash, err := decimal.NewFromString(cfg.StartingCash)
	if err != nil {
		log.Fatalf("Invalid STARTING_CASH %q: %v", cfg.StartingCash, err)
	}

	// Database
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(ctx)

	// Quote provider: HTTP client behind a Redis cache
	ring := redis.NewRing(&redis.RingOptions{Addrs: map[string]string{cfg.RedisServer: cfg.RedisAddr}})
	quoteCache := cache.New(&cache.Options{Redis: ring})
	var quotes quote.Provider = quote.NewCached(quote.NewClient(cfg.QuoteAPIURL, cfg.QuoteAPIKey), quoteCache, cfg.QuoteCacheTTL)

	// Core services
	eng := engine.NewEngine(database, quotes)
	authService := auth.NewAuthService(database, cfg.JWTSecret, startingCash)
	handler := api.NewHandler(eng, authService, quotes)

	// Set up HTTP router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WebSocket endpoint
	r.Get("/ws", handleWebSocket(database, quotes))

	// Public endpoints
	r.Post("/auth/register", handler.Register)
	r.Post("/auth/login", handler.Login)

	// Protected endpoints (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(handler.JWTAuthMiddleware)
		r.Get("/quote/{symbol}", handler.GetQuote)
		r.Post("/buy", handler.Buy)
		r.Post("/sell", handler.Sell)
		r.Get("/portfolio", handler.GetPortfolio)
		r.Post("/portfolio/liquidate", handler.Liquidate)
		r.Get("/history", handler.GetHistory)
	})

	// Start periodic quote broadcast
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		for range ticker.C {
			broadcastQuotes(database, quotes)
		}
	}()

	// Start server
	log.Infof("Starting server on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
