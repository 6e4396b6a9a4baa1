package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		kind   ErrorKind
		status int
	}{
		{"funds", ErrInsufficientFunds, KindInsufficientFunds, http.StatusUnprocessableEntity},
		{"shares", ErrInsufficientShares, KindInsufficientShares, http.StatusUnprocessableEntity},
		{"position", ErrNoSuchPosition, KindNoSuchPosition, http.StatusNotFound},
		{"missing price", ErrMissingPrice, KindMissingPrice, http.StatusUnprocessableEntity},
		{"zero price", ErrZeroPrice, KindZeroPrice, http.StatusUnprocessableEntity},
		{"empty", ErrEmptyPortfolio, KindEmptyPortfolio, http.StatusUnprocessableEntity},
		{"unavailable", ErrPriceUnavailable, KindPriceUnavailable, http.StatusServiceUnavailable},
		{"quantity", ErrInvalidQuantity, KindInvalidQuantity, http.StatusBadRequest},
		{"ticker", ErrInvalidTicker, KindInvalidTicker, http.StatusBadRequest},
		{"username", ErrInvalidUsername, KindInvalidUsername, http.StatusBadRequest},
		{"user", ErrUserNotFound, KindUserNotFound, http.StatusNotFound},
		{"snapshot exists", ErrSnapshotExists, KindSnapshotExists, http.StatusConflict},
		{"snapshot missing", ErrSnapshotNotFound, KindSnapshotNotFound, http.StatusNotFound},
		{"unknown", errors.New("disk on fire"), KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("%w: AAPL", tc.err)
			assert.Equal(t, tc.kind, KindOf(wrapped))
			assert.Equal(t, tc.status, KindOf(wrapped).HTTPStatus())
		})
	}
}

func TestKindOf_Nil(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeTicker(" aapl "))
	assert.Equal(t, "BRK.B", NormalizeTicker("brk.b"))
}

func TestPriceOracleFunc(t *testing.T) {
	oracle := PriceOracleFunc(func(_ context.Context, ticker string) (float64, bool) {
		return 42, ticker == "AAPL"
	})
	price, ok := oracle.CurrentPrice(context.Background(), "AAPL")
	assert.True(t, ok)
	assert.Equal(t, 42.0, price)

	_, ok = oracle.CurrentPrice(context.Background(), "NOPE")
	assert.False(t, ok)
}

func TestLookupPrice(t *testing.T) {
	quotes := map[string]float64{
		"AAPL": 150,
		"ZERO": 0,
		"NEG":  -3,
		"NAN":  math.NaN(),
		"INF":  math.Inf(1),
		"NINF": math.Inf(-1),
	}
	oracle := PriceOracleFunc(func(_ context.Context, ticker string) (float64, bool) {
		p, ok := quotes[ticker]
		return p, ok
	})
	ctx := context.Background()

	price, ok := LookupPrice(ctx, oracle, "AAPL")
	assert.True(t, ok)
	assert.Equal(t, 150.0, price)

	for _, ticker := range []string{"ZERO", "NEG", "NAN", "INF", "NINF", "MISSING"} {
		_, ok := LookupPrice(ctx, oracle, ticker)
		assert.False(t, ok, ticker)
	}

	_, ok = LookupPrice(ctx, nil, "AAPL")
	assert.False(t, ok)
}

func TestValidateQuantity(t *testing.T) {
	assert.NoError(t, ValidateQuantity(0.5))
	for _, q := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		err := ValidateQuantity(q)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Equal(t, KindInvalidQuantity, KindOf(err))
	}
}
