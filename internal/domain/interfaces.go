// Package domain holds the types shared across modules: the price oracle
// contract and the error taxonomy.
package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// PriceOracle answers "what is the current price of ticker?".
// ok is false when no price is available (unknown ticker, provider down,
// timeout). Implementations must be safe for concurrent use.
type PriceOracle interface {
	CurrentPrice(ctx context.Context, ticker string) (price float64, ok bool)
}

// PriceOracleFunc adapts a function to PriceOracle
type PriceOracleFunc func(ctx context.Context, ticker string) (float64, bool)

// CurrentPrice calls f(ctx, ticker)
func (f PriceOracleFunc) CurrentPrice(ctx context.Context, ticker string) (float64, bool) {
	return f(ctx, ticker)
}

// NormalizeTicker returns the canonical form of a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// LookupPrice reads a usable price from oracle. Non-positive and non-finite
// quotes count as unavailable, as does a nil oracle.
func LookupPrice(ctx context.Context, oracle PriceOracle, ticker string) (float64, bool) {
	if oracle == nil {
		return 0, false
	}
	price, ok := oracle.CurrentPrice(ctx, ticker)
	if !ok || !isPositiveFinite(price) {
		return 0, false
	}
	return price, true
}

// ValidateQuantity rejects share counts that are not strictly positive and finite
func ValidateQuantity(quantity float64) error {
	if !isPositiveFinite(quantity) {
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, quantity)
	}
	return nil
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
