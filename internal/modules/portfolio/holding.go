// Package portfolio implements simulated brokerage accounts: cash, holdings
// under the average-cost method, and atomic buy/sell execution.
package portfolio

import (
	"context"
	"fmt"

	"github.com/aristath/papertrade/internal/domain"
)

// quantityEpsilon absorbs float residue when a sell closes a position
const quantityEpsilon = 1e-9

// Holding is a position in one ticker
type Holding struct {
	Ticker    string   `json:"ticker"`
	Quantity  float64  `json:"quantity"`
	CostBasis float64  `json:"cost_basis"`           // total paid for the current quantity
	LastPrice *float64 `json:"last_price,omitempty"` // nil until a price has been observed
}

// NewHolding creates a holding bought at price. A nil price (oracle had no
// quote) gives a zero cost basis and no last price.
func NewHolding(ticker string, quantity float64, price *float64) *Holding {
	h := &Holding{
		Ticker:   domain.NormalizeTicker(ticker),
		Quantity: quantity,
	}
	if price != nil {
		h.CostBasis = quantity * *price
		h.ApplyPrice(*price)
	}
	return h
}

// Add increases quantity, blending quantityDelta*price into the cost basis
func (h *Holding) Add(quantityDelta, price float64) {
	h.Quantity += quantityDelta
	h.CostBasis += quantityDelta * price
	h.ApplyPrice(price)
}

// Remove decreases quantity and scales cost basis proportionally
func (h *Holding) Remove(quantityDelta float64) error {
	if quantityDelta > h.Quantity+quantityEpsilon {
		return fmt.Errorf("%w: selling %g %s, holding %g", domain.ErrInsufficientShares, quantityDelta, h.Ticker, h.Quantity)
	}

	remaining := h.Quantity - quantityDelta
	if remaining <= quantityEpsilon {
		h.Quantity = 0
		h.CostBasis = 0
		return nil
	}

	h.CostBasis *= remaining / h.Quantity
	h.Quantity = remaining
	return nil
}

// MarketValue is last price times quantity, or 0 when no price is known
func (h *Holding) MarketValue() float64 {
	if h.LastPrice == nil {
		return 0
	}
	return *h.LastPrice * h.Quantity
}

// ApplyPrice records an observed price
func (h *Holding) ApplyPrice(price float64) {
	p := price
	h.LastPrice = &p
}

// RefreshPrice asks the oracle for a current price and applies it when
// available. Reports whether the price was updated.
func (h *Holding) RefreshPrice(ctx context.Context, oracle domain.PriceOracle) bool {
	price, ok := domain.LookupPrice(ctx, oracle, h.Ticker)
	if !ok {
		return false
	}
	h.ApplyPrice(price)
	return true
}

// PercentGain is the unrealized gain relative to cost basis, 0 when cost basis is 0
func (h *Holding) PercentGain() float64 {
	if h.CostBasis <= 0 {
		return 0
	}
	return (h.MarketValue() - h.CostBasis) / h.CostBasis * 100
}

// AverageCost is the cost basis per share
func (h *Holding) AverageCost() float64 {
	if h.Quantity == 0 {
		return 0
	}
	return h.CostBasis / h.Quantity
}

func (h *Holding) String() string {
	return fmt.Sprintf("%s | qty %g | cost %.2f | value %.2f | gain %.2f%%",
		h.Ticker, h.Quantity, h.CostBasis, h.MarketValue(), h.PercentGain())
}

func (h *Holding) clone() *Holding {
	c := *h
	if h.LastPrice != nil {
		p := *h.LastPrice
		c.LastPrice = &p
	}
	return &c
}

