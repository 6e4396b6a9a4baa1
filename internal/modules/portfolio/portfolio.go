package portfolio

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/aristath/papertrade/pkg/formulas"
)

// Weights maps ticker to its fraction of total market value
type Weights map[string]float64

// Portfolio is a set of holdings keyed by upper-case ticker.
// It is not safe for concurrent use; Account serializes access.
type Portfolio struct {
	holdings map[string]*Holding
}

// NewPortfolio creates an empty portfolio
func NewPortfolio() *Portfolio {
	return &Portfolio{holdings: make(map[string]*Holding)}
}

// NewPortfolioFromHoldings builds a portfolio from loaded holdings
func NewPortfolioFromHoldings(holdings []*Holding) *Portfolio {
	p := NewPortfolio()
	for _, h := range holdings {
		c := h.clone()
		c.Ticker = domain.NormalizeTicker(c.Ticker)
		p.holdings[c.Ticker] = c
	}
	return p
}

// AddStock opens a holding or adds to an existing one. price is the quote
// read from the oracle; nil means unavailable.
func (p *Portfolio) AddStock(ticker string, quantity float64, price *float64) error {
	staged, err := p.stageAdd(ticker, quantity, price)
	if err != nil {
		return err
	}
	p.holdings[staged.Ticker] = staged
	return nil
}

// stageAdd returns the holding as it would look after the add, without
// touching the portfolio
func (p *Portfolio) stageAdd(ticker string, quantity float64, price *float64) (*Holding, error) {
	ticker = domain.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", domain.ErrInvalidTicker)
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}

	existing, ok := p.holdings[ticker]
	if !ok {
		return NewHolding(ticker, quantity, price), nil
	}
	if price == nil {
		return nil, fmt.Errorf("%w: cannot add to %s without a price", domain.ErrPriceUnavailable, ticker)
	}

	staged := existing.clone()
	staged.Add(quantity, *price)
	return staged, nil
}

// RemoveStock sells quantity out of a holding, deleting it when nothing is left
func (p *Portfolio) RemoveStock(ticker string, quantity float64) error {
	staged, err := p.stageRemove(ticker, quantity)
	if err != nil {
		return err
	}
	p.install(staged)
	return nil
}

func (p *Portfolio) stageRemove(ticker string, quantity float64) (*Holding, error) {
	ticker = domain.NormalizeTicker(ticker)
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}

	existing, ok := p.holdings[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoSuchPosition, ticker)
	}

	staged := existing.clone()
	if err := staged.Remove(quantity); err != nil {
		return nil, err
	}
	return staged, nil
}

// install puts a staged holding in place, or deletes it when closed
func (p *Portfolio) install(h *Holding) {
	if h.Quantity == 0 {
		delete(p.holdings, h.Ticker)
		return
	}
	p.holdings[h.Ticker] = h
}

// TotalValue sums market values; 0 for an empty portfolio
func (p *Portfolio) TotalValue() float64 {
	values := make([]float64, 0, len(p.holdings))
	for _, h := range p.holdings {
		values = append(values, h.MarketValue())
	}
	return formulas.Sum(values)
}

// RefreshPrices updates every holding's last price. Lookups are independent:
// a ticker the oracle cannot price keeps its previous price. Returns the
// number of holdings updated.
func (p *Portfolio) RefreshPrices(ctx context.Context, oracle domain.PriceOracle) int {
	return p.applyPrices(fetchPrices(ctx, oracle, p.Tickers()))
}

func (p *Portfolio) applyPrices(prices map[string]float64) int {
	updated := 0
	for ticker, price := range prices {
		if h, ok := p.holdings[ticker]; ok {
			h.ApplyPrice(price)
			updated++
		}
	}
	return updated
}

// Weights returns each holding's share of total market value
func (p *Portfolio) Weights() (Weights, error) {
	total := p.TotalValue()
	if total == 0 {
		return nil, fmt.Errorf("%w: total market value is 0", domain.ErrEmptyPortfolio)
	}

	weights := make(Weights, len(p.holdings))
	for ticker, h := range p.holdings {
		weights[ticker] = h.MarketValue() / total
	}
	return weights, nil
}

// Holding returns a copy of the holding for ticker
func (p *Portfolio) Holding(ticker string) (Holding, bool) {
	h, ok := p.holdings[domain.NormalizeTicker(ticker)]
	if !ok {
		return Holding{}, false
	}
	return *h.clone(), true
}

// Holdings returns copies of all holdings sorted by ticker
func (p *Portfolio) Holdings() []Holding {
	out := make([]Holding, 0, len(p.holdings))
	for _, ticker := range p.Tickers() {
		out = append(out, *p.holdings[ticker].clone())
	}
	return out
}

// Tickers returns the held tickers in sorted order
func (p *Portfolio) Tickers() []string {
	tickers := make([]string, 0, len(p.holdings))
	for ticker := range p.holdings {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// Len returns the number of holdings
func (p *Portfolio) Len() int {
	return len(p.holdings)
}

// fetchPrices looks tickers up concurrently. Unavailable tickers are absent
// from the result.
func fetchPrices(ctx context.Context, oracle domain.PriceOracle, tickers []string) map[string]float64 {
	prices := make(map[string]float64, len(tickers))
	if len(tickers) == 0 {
		return prices
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			price, ok := domain.LookupPrice(ctx, oracle, ticker)
			if !ok {
				return
			}
			mu.Lock()
			prices[ticker] = price
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()

	return prices
}

// WeightsFromQuantities prices a {ticker: quantity} map through the oracle
// and returns its weights. Tickers the oracle cannot price get weight 0.
func WeightsFromQuantities(ctx context.Context, oracle domain.PriceOracle, quantities map[string]float64) (Weights, error) {
	merged := make(map[string]float64, len(quantities))
	for ticker, qty := range quantities {
		merged[domain.NormalizeTicker(ticker)] += qty
	}

	p := NewPortfolio()
	for ticker, qty := range merged {
		if err := p.AddStock(ticker, qty, nil); err != nil {
			return nil, err
		}
	}
	p.RefreshPrices(ctx, oracle)
	return p.Weights()
}
