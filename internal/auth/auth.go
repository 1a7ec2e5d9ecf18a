package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avelichko/papertrade/internal/db"
	"github.com/avelichko/papertrade/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWeakInput        = errors.New("username and password must not be blank")
	ErrInputTooLong     = errors.New("username or password too long")
	ErrPasswordMismatch = errors.New("passwords don't match")
	ErrUsernameTaken    = errors.New("username already taken")

	// ErrInvalidCredentials covers both unknown username and wrong
	// password; the two are deliberately not distinguished.
	ErrInvalidCredentials = errors.New("invalid username and/or password")
)

// AuthService handles registration and authentication
type AuthService struct {
	DB           *db.DB
	secret       []byte
	startingCash decimal.Decimal
}

// NewAuthService creates a new auth service. New users are granted
// startingCash on registration.
func NewAuthService(db *db.DB, secret string, startingCash decimal.Decimal) *AuthService {
	return &AuthService{DB: db, secret: []byte(secret), startingCash: startingCash}
}

// Register creates a new user with a hashed password and the starting cash
// balance
func (s *AuthService) Register(ctx context.Context, username, password, confirmation string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrWeakInput
	}
	if len(username) > 50 {
		return nil, fmt.Errorf("%w: username exceeds 50 characters", ErrInputTooLong)
	}
	if len(password) > 100 {
		return nil, fmt.Errorf("%w: password exceeds 100 characters", ErrInputTooLong)
	}
	if password != confirmation {
		return nil, ErrPasswordMismatch
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// The unique constraint is the only duplicate check: a SELECT-first
	// lookup would still race with a concurrent registration
	user, err := s.DB.CreateUser(ctx, username, string(hashedPassword), s.startingCash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and generates a JWT
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.DB.GetUserByUsername(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// GetUserFromToken extracts user ID from a JWT
func (s *AuthService) GetUserFromToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token")
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, errors.New("invalid token claims")
	}
	return int(userID), nil
}
