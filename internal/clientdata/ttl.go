package clientdata

import "time"

const (
	// TTLCurrentPrice is how long a fetched price counts as fresh.
	// Overridden by PRICE_CACHE_TTL.
	TTLCurrentPrice = 10 * time.Minute

	// StaleWindow is how long an expired price may still answer when the
	// provider is down. The cleanup job deletes anything older.
	StaleWindow = 24 * time.Hour
)
