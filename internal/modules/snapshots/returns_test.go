package snapshots

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aristath/papertrade/internal/domain"
	testingpkg "github.com/aristath/papertrade/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeReturns_Scenario(t *testing.T) {
	weights := map[string]float64{"AAPL": 0.6, "MSFT": 0.4}

	returns, err := ComputeReturns(testingpkg.OldPrices, testingpkg.NewPrices, weights)
	require.NoError(t, err)

	assert.Equal(t, 5.56, returns.ByTicker["AAPL"])
	assert.Equal(t, -3.13, returns.ByTicker["MSFT"])
	assert.Equal(t, 2.08, returns.Total)
}

func TestComputeReturns_SamePricesGiveZero(t *testing.T) {
	weights := map[string]float64{"AAPL": 0.5, "MSFT": 0.5}

	returns, err := ComputeReturns(testingpkg.OldPrices, testingpkg.CopyPrices(testingpkg.OldPrices), weights)
	require.NoError(t, err)

	assert.Equal(t, 0.0, returns.ByTicker["AAPL"])
	assert.Equal(t, 0.0, returns.ByTicker["MSFT"])
	assert.Equal(t, 0.0, returns.Total)
}

func TestComputeReturns_DateDoesNotMatter(t *testing.T) {
	weights := map[string]float64{"AAPL": 0.6, "MSFT": 0.4}

	a := NewSnapshot("u1", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), testingpkg.OldPrices)
	b := NewSnapshot("u1", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), testingpkg.NewPrices)
	c := NewSnapshot("u1", time.Date(2025, 6, 24, 0, 0, 0, 0, time.UTC), testingpkg.OldPrices)
	d := NewSnapshot("u1", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), testingpkg.NewPrices)

	first, err := Between(a, b, weights)
	require.NoError(t, err)
	second, err := Between(c, d, weights)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeReturns_ZeroOldPrice(t *testing.T) {
	old := map[string]float64{"AAPL": 0, "MSFT": 320}

	_, err := ComputeReturns(old, testingpkg.NewPrices, map[string]float64{"AAPL": 0.5, "MSFT": 0.5})
	assert.ErrorIs(t, err, domain.ErrZeroPrice)
}

func TestComputeReturns_MissingPrice(t *testing.T) {
	weights := map[string]float64{"AAPL": 0.5, "TSLA": 0.5}

	_, err := ComputeReturns(testingpkg.OldPrices, testingpkg.NewPrices, weights)
	assert.ErrorIs(t, err, domain.ErrMissingPrice)

	newPrices := map[string]float64{"AAPL": 190}
	_, err = ComputeReturns(testingpkg.OldPrices, newPrices, map[string]float64{"AAPL": 0.5, "MSFT": 0.5})
	assert.ErrorIs(t, err, domain.ErrMissingPrice)
}

func TestComputeReturns_ZeroWeightStillValidated(t *testing.T) {
	weights := map[string]float64{"AAPL": 1, "TSLA": 0}

	_, err := ComputeReturns(testingpkg.OldPrices, testingpkg.NewPrices, weights)
	assert.ErrorIs(t, err, domain.ErrMissingPrice)
}

func TestComputeReturns_TotalUsesUnroundedChanges(t *testing.T) {
	old := map[string]float64{"A": 1000, "B": 1000, "C": 1000}
	cur := map[string]float64{"A": 1000.04, "B": 1000.04, "C": 1000.04}
	weights := map[string]float64{"A": 1, "B": 1, "C": 1}

	returns, err := ComputeReturns(old, cur, weights)
	require.NoError(t, err)

	for _, ticker := range []string{"A", "B", "C"} {
		assert.Equal(t, 0.0, returns.ByTicker[ticker])
	}
	assert.Equal(t, 0.01, returns.Total)
}

func TestComputeReturns_EmptyWeights(t *testing.T) {
	returns, err := ComputeReturns(testingpkg.OldPrices, testingpkg.NewPrices, map[string]float64{})
	require.NoError(t, err)
	assert.Empty(t, returns.ByTicker)
	assert.Equal(t, 0.0, returns.Total)
}

func TestReturns_JSONIsFlat(t *testing.T) {
	returns := Returns{
		ByTicker: map[string]float64{"AAPL": 5.56, "MSFT": -3.13},
		Total:    2.08,
	}

	data, err := json.Marshal(returns)
	require.NoError(t, err)
	assert.JSONEq(t, `{"AAPL": 5.56, "MSFT": -3.13, "Total Return": 2.08}`, string(data))

	var decoded Returns
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, returns, decoded)
}
