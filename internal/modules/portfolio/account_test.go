package portfolio

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/aristath/papertrade/internal/domain"
	testingpkg "github.com/aristath/papertrade/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAccount_BuyScenario(t *testing.T) {
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100})
	acct := NewAccount("u1", 10000, nil, oracle)
	ctx := context.Background()

	trade, err := acct.Buy(ctx, "AAPL", 10)
	require.NoError(t, err)
	assert.Equal(t, SideBuy, trade.Side)
	assert.Equal(t, 1000.0, trade.Amount)
	assert.Equal(t, 9000.0, acct.Cash())

	h := acct.Holdings()[0]
	assert.Equal(t, 10.0, h.Quantity)
	assert.Equal(t, 1000.0, h.CostBasis)

	oracle.Set("AAPL", 200)
	_, err = acct.Buy(ctx, "aapl", 10)
	require.NoError(t, err)
	assert.Equal(t, 7000.0, acct.Cash())

	h = acct.Holdings()[0]
	assert.Equal(t, 20.0, h.Quantity)
	assert.Equal(t, 3000.0, h.CostBasis)
	assert.Equal(t, 150.0, h.AverageCost())
}

func TestAccount_BuyInsufficientFundsLeavesState(t *testing.T) {
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100})
	acct := NewAccount("u1", 500, nil, oracle)

	_, err := acct.Buy(context.Background(), "AAPL", 6)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, 500.0, acct.Cash())
	assert.Empty(t, acct.Holdings())
}

func TestAccount_BuyExactCash(t *testing.T) {
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100})
	acct := NewAccount("u1", 500, nil, oracle)

	_, err := acct.Buy(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, acct.Cash())
}

func TestAccount_BuyRejectsBadInput(t *testing.T) {
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100})
	acct := NewAccount("u1", 1000, nil, oracle)
	ctx := context.Background()

	_, err := acct.Buy(ctx, "AAPL", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = acct.Buy(ctx, "", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidTicker)

	_, err = acct.Buy(ctx, "UNKNOWN", 1)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)

	assert.Equal(t, 1000.0, acct.Cash())
	assert.Empty(t, acct.Holdings())
}

func TestAccount_Sell(t *testing.T) {
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100})
	acct := NewAccount("u1", 10000, nil, oracle)
	ctx := context.Background()

	_, err := acct.Buy(ctx, "AAPL", 20)
	require.NoError(t, err)

	oracle.Set("AAPL", 120)
	trade, err := acct.Sell(ctx, "AAPL", 5)
	require.NoError(t, err)
	assert.Equal(t, SideSell, trade.Side)
	assert.Equal(t, 600.0, trade.Amount)
	assert.Equal(t, 8600.0, acct.Cash())

	h := acct.Holdings()[0]
	assert.Equal(t, 15.0, h.Quantity)
	assert.InDelta(t, 1500.0, h.CostBasis, 1e-9)

	_, err = acct.Sell(ctx, "AAPL", 15)
	require.NoError(t, err)
	assert.Empty(t, acct.Holdings())
	assert.Equal(t, 10400.0, acct.Cash())
}

func TestAccount_SellErrorsLeaveState(t *testing.T) {
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100})
	acct := NewAccount("u1", 1000, nil, oracle)
	ctx := context.Background()

	_, err := acct.Buy(ctx, "AAPL", 5)
	require.NoError(t, err)

	_, err = acct.Sell(ctx, "MSFT", 1)
	assert.ErrorIs(t, err, domain.ErrNoSuchPosition)

	_, err = acct.Sell(ctx, "AAPL", 6)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)

	oracle.Unset("AAPL")
	_, err = acct.Sell(ctx, "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)

	assert.Equal(t, 500.0, acct.Cash())
	h := acct.Holdings()[0]
	assert.Equal(t, 5.0, h.Quantity)
	assert.Equal(t, 500.0, h.CostBasis)
}

func TestAccount_SellDoesNotCallOracleForMissingPosition(t *testing.T) {
	oracle := new(testingpkg.MockPriceOracle)
	acct := NewAccount("u1", 1000, nil, oracle)

	_, err := acct.Sell(context.Background(), "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrNoSuchPosition)
	oracle.AssertNotCalled(t, "CurrentPrice", mock.Anything, mock.Anything)
}

func TestAccount_FailedCommitLeavesState(t *testing.T) {
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100})
	acct := NewAccount("u1", 1000, nil, oracle)
	ctx := context.Background()

	_, err := acct.Buy(ctx, "AAPL", 2)
	require.NoError(t, err)

	diskFull := errors.New("disk full")
	var staged []Change
	acct.SetCommitHook(func(_ context.Context, change Change) error {
		staged = append(staged, change)
		return diskFull
	})

	_, err = acct.Buy(ctx, "AAPL", 3)
	assert.ErrorIs(t, err, diskFull)
	_, err = acct.Sell(ctx, "AAPL", 2)
	assert.ErrorIs(t, err, diskFull)

	assert.Equal(t, 800.0, acct.Cash())
	h := acct.Holdings()[0]
	assert.Equal(t, 2.0, h.Quantity)
	assert.Equal(t, 200.0, h.CostBasis)

	// The hook saw the staged post-trade state
	require.Len(t, staged, 2)
	assert.Equal(t, 500.0, staged[0].Trade.CashAfter)
	assert.Equal(t, 5.0, staged[0].Holding.Quantity)
	assert.Equal(t, 1000.0, staged[1].Trade.CashAfter)
	assert.Nil(t, staged[1].Holding)
}

func TestAccount_ConcurrentBuysNeverOverdraw(t *testing.T) {
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100})
	acct := NewAccount("u1", 1000, nil, oracle)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := acct.Buy(context.Background(), "AAPL", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 0.0, acct.Cash())
	assert.Equal(t, 10.0, acct.Holdings()[0].Quantity)
}

func TestAccount_RandomTradesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100})
	acct := NewAccount("u1", 10000, nil, oracle)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		oracle.Set("AAPL", 1+rng.Float64()*300)
		qty := float64(1 + rng.Intn(20))
		if rng.Intn(2) == 0 {
			_, _ = acct.Buy(ctx, "AAPL", qty)
		} else {
			_, _ = acct.Sell(ctx, "AAPL", qty)
		}

		assert.GreaterOrEqual(t, acct.Cash(), 0.0)
		for _, h := range acct.Holdings() {
			assert.Greater(t, h.Quantity, 0.0)
			assert.GreaterOrEqual(t, h.CostBasis, 0.0)
		}
	}
}

func TestAccount_View(t *testing.T) {
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 100, "MSFT": 50})
	acct := NewAccount("u1", 10000, nil, oracle)
	ctx := context.Background()

	_, err := acct.Buy(ctx, "AAPL", 10)
	require.NoError(t, err)
	_, err = acct.Buy(ctx, "MSFT", 20)
	require.NoError(t, err)

	oracle.Set("AAPL", 110)
	oracle.Unset("MSFT")

	view := acct.View(ctx)
	assert.Equal(t, "u1", view.UserID)
	assert.Equal(t, 8000.0, view.Cash)
	require.Len(t, view.Holdings, 2)

	aapl := view.Holdings[0]
	assert.Equal(t, "AAPL", aapl.Ticker)
	assert.Equal(t, 1100.0, aapl.MarketValue)
	assert.InDelta(t, 10.0, aapl.PercentGain, 1e-9)

	// MSFT keeps its last observed price
	msft := view.Holdings[1]
	assert.Equal(t, 1000.0, msft.MarketValue)

	assert.Equal(t, 2100.0, view.MarketValue)
	assert.Equal(t, 10100.0, view.TotalEquity)
}

func TestAccount_Weights(t *testing.T) {
	oracle := testingpkg.NewStaticOracle(map[string]float64{"AAPL": 60, "MSFT": 40})
	acct := NewAccount("u1", 10000, nil, oracle)
	ctx := context.Background()

	_, err := acct.Weights()
	assert.ErrorIs(t, err, domain.ErrEmptyPortfolio)

	_, err = acct.Buy(ctx, "AAPL", 1)
	require.NoError(t, err)
	_, err = acct.Buy(ctx, "MSFT", 1)
	require.NoError(t, err)

	weights, err := acct.Weights()
	require.NoError(t, err)
	assert.InDelta(t, 0.6, weights["AAPL"], 1e-12)
	assert.InDelta(t, 0.4, weights["MSFT"], 1e-12)
}
