package snapshots

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/aristath/papertrade/pkg/formulas"
)

// TotalReturnKey is the key the total return is serialized under
const TotalReturnKey = "Total Return"

// Returns holds per-ticker percentage changes and the weighted total,
// all rounded to 2 decimal places.
type Returns struct {
	ByTicker map[string]float64
	Total    float64
}

// MarshalJSON flattens Returns into {"AAPL": 5.56, ..., "Total Return": 2.08}
func (r Returns) MarshalJSON() ([]byte, error) {
	flat := make(map[string]float64, len(r.ByTicker)+1)
	for ticker, change := range r.ByTicker {
		flat[ticker] = change
	}
	flat[TotalReturnKey] = r.Total
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON
func (r *Returns) UnmarshalJSON(data []byte) error {
	var flat map[string]float64
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	r.ByTicker = make(map[string]float64, len(flat))
	r.Total = 0
	for key, value := range flat {
		if key == TotalReturnKey {
			r.Total = value
			continue
		}
		r.ByTicker[key] = value
	}
	return nil
}

// ComputeReturns compares two price maps ticker by ticker and weights the
// changes into a total.
//
// Every ticker in weights is validated, including zero-weight ones: a ticker
// missing from either map fails with ErrMissingPrice and an old price of 0
// fails with ErrZeroPrice. The total is accumulated from unrounded changes
// and rounded once at the end.
func ComputeReturns(oldPrices, newPrices map[string]float64, weights map[string]float64) (*Returns, error) {
	tickers := make([]string, 0, len(weights))
	for ticker := range weights {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	result := &Returns{ByTicker: make(map[string]float64, len(tickers))}
	changes := make([]float64, 0, len(tickers))
	ws := make([]float64, 0, len(tickers))

	for _, ticker := range tickers {
		oldPrice, okOld := oldPrices[ticker]
		newPrice, okNew := newPrices[ticker]
		if !okOld || !okNew {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingPrice, ticker)
		}
		if oldPrice == 0 {
			return nil, fmt.Errorf("%w: old price for %s is 0", domain.ErrZeroPrice, ticker)
		}

		change := formulas.PercentChange(oldPrice, newPrice)
		result.ByTicker[ticker] = formulas.Round(change, 2)
		changes = append(changes, change)
		ws = append(ws, weights[ticker])
	}

	result.Total = formulas.Round(formulas.WeightedSum(ws, changes), 2)
	return result, nil
}

// Between computes returns from one snapshot to another
func Between(from, to *Snapshot, weights map[string]float64) (*Returns, error) {
	return ComputeReturns(from.Prices, to.Prices, weights)
}
