package engine

import "errors"

// Every rejection a trade can hit. Callers match with errors.Is to report
// a distinct message; none of these leaves partial state behind.
var (
	ErrInvalidSymbol      = errors.New("symbol is incorrect")
	ErrInvalidQuantity    = errors.New("number of shares must be a positive integer")
	ErrInsufficientFunds  = errors.New("not enough money")
	ErrInsufficientShares = errors.New("not enough shares")
	ErrNoSuchHolding      = errors.New("you don't own this stock")
	ErrNoHoldings         = errors.New("you don't own any shares")
)
