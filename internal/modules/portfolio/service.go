package portfolio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/aristath/papertrade/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccountService owns the per-user account registry.
//
// Accounts are loaded from the repository on first use and cached; every
// trade is persisted through the account's commit hook before it is applied
// in memory, so the cache never runs ahead of the database.
type AccountService struct {
	repo         *Repository
	oracle       domain.PriceOracle
	bus          *events.Bus
	startingCash float64
	log          zerolog.Logger

	mu       sync.Mutex
	accounts map[string]*Account
}

// NewAccountService creates a new account service
func NewAccountService(
	repo *Repository,
	oracle domain.PriceOracle,
	bus *events.Bus,
	startingCash float64,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		repo:         repo,
		oracle:       oracle,
		bus:          bus,
		startingCash: startingCash,
		log:          log.With().Str("service", "accounts").Logger(),
		accounts:     make(map[string]*Account),
	}
}

// Signup registers a user with the configured starting cash
func (s *AccountService) Signup(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidUsername)
	}

	user := User{
		ID:        uuid.NewString(),
		Username:  username,
		Cash:      s.startingCash,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Str("username", username).Msg("User created")
	s.bus.Publish("portfolio", &events.UserCreatedData{
		UserID:   user.ID,
		Username: user.Username,
		Cash:     user.Cash,
	})
	return &user, nil
}

// Account returns the live account for userID, loading it on first use
func (s *AccountService) Account(ctx context.Context, userID string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[userID]; ok {
		return acct, nil
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	holdings := make([]*Holding, 0, len(rows))
	for _, row := range rows {
		holdings = append(holdings, row.ToHolding())
	}

	acct := NewAccount(user.ID, user.Cash, NewPortfolioFromHoldings(holdings), s.oracle)
	acct.SetCommitHook(s.repo.ApplyTrade)
	s.accounts[userID] = acct

	s.log.Debug().Str("user_id", userID).Int("holdings", len(holdings)).Msg("Account loaded")
	return acct, nil
}

// Buy executes a buy for userID
func (s *AccountService) Buy(ctx context.Context, userID, ticker string, quantity float64) (*Trade, error) {
	acct, err := s.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	trade, err := acct.Buy(ctx, ticker, quantity)
	if err != nil {
		return nil, err
	}
	s.tradeExecuted(trade)
	return trade, nil
}

// Sell executes a sell for userID
func (s *AccountService) Sell(ctx context.Context, userID, ticker string, quantity float64) (*Trade, error) {
	acct, err := s.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	trade, err := acct.Sell(ctx, ticker, quantity)
	if err != nil {
		return nil, err
	}
	s.tradeExecuted(trade)
	return trade, nil
}

func (s *AccountService) tradeExecuted(trade *Trade) {
	s.log.Info().
		Str("user_id", trade.UserID).
		Str("side", string(trade.Side)).
		Str("ticker", trade.Ticker).
		Float64("quantity", trade.Quantity).
		Float64("price", trade.Price).
		Float64("cash_after", trade.CashAfter).
		Msg("Trade executed")

	s.bus.Publish("portfolio", &events.TradeExecutedData{
		UserID:    trade.UserID,
		Ticker:    trade.Ticker,
		Side:      string(trade.Side),
		Quantity:  trade.Quantity,
		Price:     trade.Price,
		Amount:    trade.Amount,
		CashAfter: trade.CashAfter,
	})
}

// View returns a priced view of userID's account
func (s *AccountService) View(ctx context.Context, userID string) (*AccountView, error) {
	acct, err := s.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	return acct.View(ctx), nil
}

// Weights refreshes prices and returns userID's current portfolio weights
func (s *AccountService) Weights(ctx context.Context, userID string) (Weights, error) {
	acct, err := s.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	acct.RefreshPrices(ctx)
	return acct.Weights()
}

// Tickers returns the tickers userID currently holds
func (s *AccountService) Tickers(ctx context.Context, userID string) ([]string, error) {
	acct, err := s.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	return acct.Tickers(), nil
}

// UserIDs returns the ids of all registered users
func (s *AccountService) UserIDs(ctx context.Context) ([]string, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}
