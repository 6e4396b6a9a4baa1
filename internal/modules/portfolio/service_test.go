package portfolio

import (
	"context"
	"testing"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/aristath/papertrade/internal/events"
	testingpkg "github.com/aristath/papertrade/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	repo   *Repository
	oracle *testingpkg.StaticOracle
	bus    *events.Bus
	svc    *AccountService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	repo := newTestRepository(t)
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100, "MSFT": 50})
	bus := events.NewBus(zerolog.Nop())
	return &serviceFixture{
		repo:   repo,
		oracle: oracle,
		bus:    bus,
		svc:    NewAccountService(repo, oracle, bus, 10000, zerolog.Nop()),
	}
}

func TestAccountService_Signup(t *testing.T) {
	f := newServiceFixture(t)

	var published []*events.Event
	f.bus.Subscribe(func(e *events.Event) { published = append(published, e) }, events.UserCreated)

	user, err := f.svc.Signup(context.Background(), "  alice ")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, 10000.0, user.Cash)

	stored, err := f.repo.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)

	require.Len(t, published, 1)
	assert.Equal(t, user.ID, published[0].Data.(*events.UserCreatedData).UserID)

	_, err = f.svc.Signup(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidUsername)
	assert.Len(t, published, 1)
}

func TestAccountService_TradesArePersisted(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	var trades []*events.TradeExecutedData
	f.bus.Subscribe(func(e *events.Event) {
		trades = append(trades, e.Data.(*events.TradeExecutedData))
	}, events.TradeExecuted)

	user, err := f.svc.Signup(ctx, "bob")
	require.NoError(t, err)

	_, err = f.svc.Buy(ctx, user.ID, "AAPL", 10)
	require.NoError(t, err)
	f.oracle.Set("AAPL", 200)
	_, err = f.svc.Buy(ctx, user.ID, "AAPL", 10)
	require.NoError(t, err)
	_, err = f.svc.Sell(ctx, user.ID, "AAPL", 5)
	require.NoError(t, err)

	require.Len(t, trades, 3)
	assert.Equal(t, "SELL", trades[2].Side)

	// A fresh service reloads the same state from the database
	reloaded := NewAccountService(f.repo, f.oracle, f.bus, 10000, zerolog.Nop())
	acct, err := reloaded.Account(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, acct.Cash())

	holdings := acct.Holdings()
	require.Len(t, holdings, 1)
	assert.Equal(t, 15.0, holdings[0].Quantity)
	assert.InDelta(t, 2250.0, holdings[0].CostBasis, 1e-9)
	assert.Nil(t, holdings[0].LastPrice)
}

func TestAccountService_RejectedTradeIsNotPersisted(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	user, err := f.svc.Signup(ctx, "carol")
	require.NoError(t, err)

	_, err = f.svc.Buy(ctx, user.ID, "AAPL", 101)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	stored, err := f.repo.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, stored.Cash)
}

func TestAccountService_UnknownUser(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Buy(ctx, "ghost", "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = f.svc.Sell(ctx, "ghost", "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = f.svc.View(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = f.svc.Weights(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAccountService_AccountsAreIsolated(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	alice, err := f.svc.Signup(ctx, "alice")
	require.NoError(t, err)
	bob, err := f.svc.Signup(ctx, "bob")
	require.NoError(t, err)

	_, err = f.svc.Buy(ctx, alice.ID, "MSFT", 10)
	require.NoError(t, err)

	aliceTickers, err := f.svc.Tickers(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, aliceTickers)

	bobView, err := f.svc.View(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobView.Holdings)
	assert.Equal(t, 10000.0, bobView.Cash)

	ids, err := f.svc.UserIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, ids)
}

func TestAccountService_WeightsUseFreshPrices(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	user, err := f.svc.Signup(ctx, "dana")
	require.NoError(t, err)
	_, err = f.svc.Buy(ctx, user.ID, "AAPL", 1)
	require.NoError(t, err)
	_, err = f.svc.Buy(ctx, user.ID, "MSFT", 2)
	require.NoError(t, err)

	f.oracle.Set("AAPL", 300)

	weights, err := f.svc.Weights(ctx, user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, weights["AAPL"], 1e-12)
	assert.InDelta(t, 0.25, weights["MSFT"], 1e-12)
}
