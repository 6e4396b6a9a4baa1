// Package services provides application services shared across modules.
package services

import (
	"context"
	"time"

	"github.com/aristath/papertrade/internal/clientdata"
	"github.com/aristath/papertrade/internal/domain"
	"github.com/rs/zerolog"
)

// PriceFetcher is the live price source (Yahoo in production)
type PriceFetcher interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetBatchQuotes(ctx context.Context, symbols []string) (map[string]float64, error)
}

// PriceService is the PriceOracle used by the rest of the system.
// Lookup order: fresh cache entry, live fetch, stale cache entry.
type PriceService struct {
	fetcher     PriceFetcher
	cache       *clientdata.Repository // optional
	cacheTTL    time.Duration
	staleWindow time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

var _ domain.PriceOracle = (*PriceService)(nil)

// NewPriceService creates a new price service.
// cache is optional - if nil, caching is disabled
func NewPriceService(fetcher PriceFetcher, cache *clientdata.Repository, cacheTTL time.Duration, log zerolog.Logger) *PriceService {
	if cacheTTL <= 0 {
		cacheTTL = clientdata.TTLCurrentPrice
	}
	return &PriceService{
		fetcher:     fetcher,
		cache:       cache,
		cacheTTL:    cacheTTL,
		staleWindow: clientdata.StaleWindow,
		now:         time.Now,
		log:         log.With().Str("service", "prices").Logger(),
	}
}

// CurrentPrice implements domain.PriceOracle. Failures of every kind
// degrade to ok=false.
func (s *PriceService) CurrentPrice(ctx context.Context, ticker string) (float64, bool) {
	ticker = domain.NormalizeTicker(ticker)
	if ticker == "" {
		return 0, false
	}

	if price, ok := s.fromCache(ticker, true); ok {
		s.log.Debug().Str("ticker", ticker).Float64("price", price).Msg("Cache hit")
		return price, true
	}

	price, err := s.fetcher.GetCurrentPrice(ctx, ticker)
	if err == nil && price > 0 {
		s.store(ticker, price)
		return price, true
	}

	// Live fetch failed - stale data is better than no data
	if stale, ok := s.fromCache(ticker, false); ok {
		s.log.Warn().
			Err(err).
			Str("ticker", ticker).
			Float64("price", stale).
			Msg("Price fetch failed, using stale cached price")
		return stale, true
	}

	s.log.Warn().Err(err).Str("ticker", ticker).Msg("Price unavailable")
	return 0, false
}

// Warm fetches prices for tickers in one batch request and caches them,
// so that following CurrentPrice calls hit the cache. Returns how many
// tickers were priced.
func (s *PriceService) Warm(ctx context.Context, tickers []string) int {
	if s.cache == nil || len(tickers) == 0 {
		return 0
	}

	symbols := make([]string, 0, len(tickers))
	for _, t := range tickers {
		symbols = append(symbols, domain.NormalizeTicker(t))
	}

	quotes, err := s.fetcher.GetBatchQuotes(ctx, symbols)
	if err != nil {
		s.log.Warn().Err(err).Int("tickers", len(symbols)).Msg("Batch price fetch failed")
		return 0
	}

	stored, err := s.cache.PutMany(quotes, s.cacheTTL)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache batch prices")
		return 0
	}

	s.log.Debug().Int("requested", len(symbols)).Int("priced", stored).Msg("Warmed price cache")
	return stored
}

func (s *PriceService) fromCache(ticker string, freshOnly bool) (float64, bool) {
	if s.cache == nil {
		return 0, false
	}

	entry, err := s.cache.Lookup(ticker)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to read price cache")
		return 0, false
	}
	if entry == nil || entry.Price <= 0 {
		return 0, false
	}

	now := s.now()
	if freshOnly && !entry.Fresh(now) {
		return 0, false
	}
	if entry.Age(now) > s.staleWindow {
		return 0, false
	}
	return entry.Price, true
}

func (s *PriceService) store(ticker string, price float64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ticker, price, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache price")
	}
}
