package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avelichko/papertrade/internal/auth"
	"github.com/avelichko/papertrade/internal/engine"
	"github.com/avelichko/papertrade/internal/quote"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Engine      *engine.Engine
	AuthService *auth.AuthService
	Quotes      quote.Provider
}

// NewHandler creates a new handler
func NewHandler(eng *engine.Engine, authService *auth.AuthService, quotes quote.Provider) *Handler {
	return &Handler{Engine: eng, AuthService: authService, Quotes: quotes}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// tradeError maps an engine rejection to a status and user-readable message.
// Anything outside the taxonomy is a server fault.
func tradeError(w http.ResponseWriter, err error) {
	for _, rejection := range []error{
		engine.ErrInvalidSymbol,
		engine.ErrInvalidQuantity,
		engine.ErrInsufficientFunds,
		engine.ErrInsufficientShares,
		engine.ErrNoSuchHolding,
		engine.ErrNoHoldings,
	} {
		if errors.Is(err, rejection) {
			writeError(w, http.StatusBadRequest, rejection.Error())
			return
		}
	}
	log.Errorf("trade failed: %v", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		Confirmation string `json:"confirmation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Username, req.Password, req.Confirmation)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakInput), errors.Is(err, auth.ErrInputTooLong), errors.Is(err, auth.ErrPasswordMismatch):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrUsernameTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Errorf("registration failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to register user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"cash":     user.Cash,
	})
}

// Login handles user login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.AuthService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// JWTAuthMiddleware verifies JWT tokens
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		// Remove "Bearer " prefix if present
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		userID, err := h.AuthService.GetUserFromToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), "user_id", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetQuote looks up the current price for a symbol
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	q, err := h.Quotes.Lookup(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusNotFound, engine.ErrInvalidSymbol.Error())
		return
	}

	writeJSON(w, http.StatusOK, q)
}

// Buy executes a purchase for the authenticated user
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Symbol string `json:"symbol"`
		Shares int    `json:"shares"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, engine.ErrInvalidQuantity.Error())
		return
	}

	txn, err := h.Engine.Buy(r.Context(), userID, req.Symbol, req.Shares)
	if err != nil {
		tradeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Shares bought",
		"transaction": txn,
	})
}

// Sell executes a sale for the authenticated user
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Symbol string `json:"symbol"`
		Shares int    `json:"shares"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, engine.ErrInvalidQuantity.Error())
		return
	}

	txn, err := h.Engine.Sell(r.Context(), userID, req.Symbol, req.Shares)
	if err != nil {
		tradeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Shares sold",
		"transaction": txn,
	})
}

// Liquidate sells every holding of the authenticated user
func (h *Handler) Liquidate(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	txns, err := h.Engine.LiquidateAll(r.Context(), userID)
	if err != nil {
		tradeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "Portfolio liquidated",
		"transactions": txns,
	})
}

// GetPortfolio returns the authenticated user's priced portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	portfolio, err := h.Engine.Valuation(r.Context(), userID)
	if err != nil {
		tradeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, portfolio)
}

// GetHistory returns the authenticated user's transaction history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	txns, err := h.Engine.History(r.Context(), userID)
	if err != nil {
		log.Errorf("history failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	writeJSON(w, http.StatusOK, txns)
}
