package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/papertrade/internal/domain"
)

// TradeSide is BUY or SELL
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Trade is an executed buy or sell
type Trade struct {
	UserID     string    `json:"user_id"`
	Side       TradeSide `json:"side"`
	Ticker     string    `json:"ticker"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"` // price * quantity
	CashAfter  float64   `json:"cash_after"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Change is a staged trade handed to the commit hook before it is applied.
// Holding is the position after the trade, nil when the trade closes it.
type Change struct {
	Trade   Trade
	Holding *Holding
}

// CommitFunc persists a staged change. Returning an error aborts the trade
// and leaves the account untouched.
type CommitFunc func(ctx context.Context, change Change) error

// Account is one user's cash balance and portfolio. All methods are safe
// for concurrent use.
type Account struct {
	mu        sync.Mutex
	userID    string
	cash      float64
	portfolio *Portfolio
	oracle    domain.PriceOracle
	commit    CommitFunc
	now       func() time.Time
}

// NewAccount creates an account. A nil portfolio starts empty.
func NewAccount(userID string, cash float64, portfolio *Portfolio, oracle domain.PriceOracle) *Account {
	if portfolio == nil {
		portfolio = NewPortfolio()
	}
	return &Account{
		userID:    userID,
		cash:      cash,
		portfolio: portfolio,
		oracle:    oracle,
		now:       time.Now,
	}
}

// SetCommitHook installs the persistence hook run before each trade is applied
func (a *Account) SetCommitHook(fn CommitFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commit = fn
}

// UserID returns the owning user's id
func (a *Account) UserID() string {
	return a.userID
}

// Cash returns the current cash balance
func (a *Account) Cash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Holdings returns copies of the current holdings sorted by ticker
func (a *Account) Holdings() []Holding {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.portfolio.Holdings()
}

// Tickers returns the held tickers in sorted order
func (a *Account) Tickers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.portfolio.Tickers()
}

// Buy purchases quantity shares of ticker at the current oracle price.
// The price is read before the lock is taken; funds are checked under it.
func (a *Account) Buy(ctx context.Context, ticker string, quantity float64) (*Trade, error) {
	ticker = domain.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", domain.ErrInvalidTicker)
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}

	price, ok := domain.LookupPrice(ctx, a.oracle, ticker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, ticker)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cost := price * quantity
	if cost > a.cash {
		return nil, fmt.Errorf("%w: %g %s at %.2f costs %.2f, cash is %.2f",
			domain.ErrInsufficientFunds, quantity, ticker, price, cost, a.cash)
	}

	staged, err := a.portfolio.stageAdd(ticker, quantity, &price)
	if err != nil {
		return nil, err
	}

	trade := a.newTrade(SideBuy, ticker, quantity, price, a.cash-cost)
	if err := a.runCommit(ctx, Change{Trade: trade, Holding: staged}); err != nil {
		return nil, err
	}

	a.cash = trade.CashAfter
	a.portfolio.install(staged)
	return &trade, nil
}

// Sell sells quantity shares of ticker at the current oracle price.
func (a *Account) Sell(ctx context.Context, ticker string, quantity float64) (*Trade, error) {
	ticker = domain.NormalizeTicker(ticker)
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}

	// Fail fast without an oracle round trip
	a.mu.Lock()
	_, err := a.portfolio.stageRemove(ticker, quantity)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	price, ok := domain.LookupPrice(ctx, a.oracle, ticker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, ticker)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// The position may have changed while the price was fetched
	staged, err := a.portfolio.stageRemove(ticker, quantity)
	if err != nil {
		return nil, err
	}
	staged.ApplyPrice(price)

	proceeds := price * quantity
	change := Change{Trade: a.newTrade(SideSell, ticker, quantity, price, a.cash+proceeds)}
	if staged.Quantity > 0 {
		change.Holding = staged
	}
	if err := a.runCommit(ctx, change); err != nil {
		return nil, err
	}

	a.cash = change.Trade.CashAfter
	a.portfolio.install(staged)
	return &change.Trade, nil
}

func (a *Account) newTrade(side TradeSide, ticker string, quantity, price, cashAfter float64) Trade {
	return Trade{
		UserID:     a.userID,
		Side:       side,
		Ticker:     ticker,
		Quantity:   quantity,
		Price:      price,
		Amount:     price * quantity,
		CashAfter:  cashAfter,
		ExecutedAt: a.now().UTC(),
	}
}

// runCommit must be called with a.mu held
func (a *Account) runCommit(ctx context.Context, change Change) error {
	if a.commit == nil {
		return nil
	}
	if err := a.commit(ctx, change); err != nil {
		return fmt.Errorf("failed to commit %s %s: %w", change.Trade.Side, change.Trade.Ticker, err)
	}
	return nil
}

// HoldingView is a holding as shown to users
type HoldingView struct {
	Ticker      string   `json:"ticker"`
	Quantity    float64  `json:"quantity"`
	CostBasis   float64  `json:"cost_basis"`
	AverageCost float64  `json:"average_cost"`
	LastPrice   *float64 `json:"last_price"`
	MarketValue float64  `json:"market_value"`
	PercentGain float64  `json:"percent_gain"`
}

// AccountView is a priced read-only view of an account
type AccountView struct {
	UserID      string        `json:"user_id"`
	Cash        float64       `json:"cash"`
	Holdings    []HoldingView `json:"holdings"`
	MarketValue float64       `json:"market_value"`
	TotalEquity float64       `json:"total_equity"`
}

// View refreshes prices and returns the account's current state. Prices are
// fetched without holding the lock.
func (a *Account) View(ctx context.Context) *AccountView {
	prices := fetchPrices(ctx, a.oracle, a.Tickers())

	a.mu.Lock()
	defer a.mu.Unlock()

	a.portfolio.applyPrices(prices)

	view := &AccountView{
		UserID:   a.userID,
		Cash:     a.cash,
		Holdings: make([]HoldingView, 0, a.portfolio.Len()),
	}
	for _, h := range a.portfolio.Holdings() {
		view.Holdings = append(view.Holdings, HoldingView{
			Ticker:      h.Ticker,
			Quantity:    h.Quantity,
			CostBasis:   h.CostBasis,
			AverageCost: h.AverageCost(),
			LastPrice:   h.LastPrice,
			MarketValue: h.MarketValue(),
			PercentGain: h.PercentGain(),
		})
	}
	view.MarketValue = a.portfolio.TotalValue()
	view.TotalEquity = view.Cash + view.MarketValue
	return view
}

// Weights returns the portfolio weights at the last observed prices
func (a *Account) Weights() (Weights, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.portfolio.Weights()
}

// RefreshPrices fetches current prices and applies them. Returns the number
// of holdings updated.
func (a *Account) RefreshPrices(ctx context.Context) int {
	prices := fetchPrices(ctx, a.oracle, a.Tickers())

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.portfolio.applyPrices(prices)
}
