package testing

import (
	"context"
	"sync"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/stretchr/testify/mock"
)

// StaticOracle is a PriceOracle backed by a mutable in-memory price table.
// Tickers without an entry are unavailable.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]float64
	calls  map[string]int
}

// NewStaticOracle creates a StaticOracle seeded with prices
func NewStaticOracle(prices map[string]float64) *StaticOracle {
	o := &StaticOracle{
		prices: make(map[string]float64, len(prices)),
		calls:  make(map[string]int),
	}
	for ticker, price := range prices {
		o.prices[domain.NormalizeTicker(ticker)] = price
	}
	return o
}

// CurrentPrice implements domain.PriceOracle
func (o *StaticOracle) CurrentPrice(_ context.Context, ticker string) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ticker = domain.NormalizeTicker(ticker)
	o.calls[ticker]++
	price, ok := o.prices[ticker]
	return price, ok
}

// Set changes the price of ticker
func (o *StaticOracle) Set(ticker string, price float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[domain.NormalizeTicker(ticker)] = price
}

// Unset makes ticker unavailable
func (o *StaticOracle) Unset(ticker string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.prices, domain.NormalizeTicker(ticker))
}

// Calls returns how many times ticker was looked up
func (o *StaticOracle) Calls(ticker string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.calls[domain.NormalizeTicker(ticker)]
}

// MockPriceOracle is a testify mock for domain.PriceOracle
type MockPriceOracle struct {
	mock.Mock
}

// CurrentPrice implements domain.PriceOracle
func (m *MockPriceOracle) CurrentPrice(ctx context.Context, ticker string) (float64, bool) {
	args := m.Called(ctx, ticker)
	return args.Get(0).(float64), args.Bool(1)
}
