package testing

// Prices used across package tests
var (
	// OldPrices and NewPrices give AAPL +5.56% and MSFT -3.13%
	OldPrices = map[string]float64{"AAPL": 180, "MSFT": 320}
	NewPrices = map[string]float64{"AAPL": 190, "MSFT": 310}
)

// CopyPrices returns a copy of prices so tests can mutate fixtures freely
func CopyPrices(prices map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(prices))
	for k, v := range prices {
		out[k] = v
	}
	return out
}
