// Package yahoo provides current prices from Yahoo Finance via go-yfinance.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// ErrNoPrice is returned when Yahoo answers but has no usable price for a symbol
var ErrNoPrice = errors.New("no valid price")

// Config controls retries and per-call timeouts
type Config struct {
	MaxRetries   int
	Timeout      time.Duration // per attempt
	RetryBackoff time.Duration // base wait, doubled after each failed attempt
}

// quoteSource is the part of go-yfinance the client depends on
type quoteSource interface {
	Price(symbol string) (float64, error)
	LastCloses(symbols []string) (map[string]float64, map[string]error, error)
}

// Client fetches current prices with retries and timeouts
type Client struct {
	source quoteSource
	cfg    Config
	log    zerolog.Logger
}

// NewClient creates a Yahoo Finance client backed by go-yfinance
func NewClient(cfg Config, log zerolog.Logger) *Client {
	return newClient(yfinanceSource{}, cfg, log)
}

func newClient(source quoteSource, cfg Config, log zerolog.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Client{
		source: source,
		cfg:    cfg,
		log:    log.With().Str("client", "yahoo").Logger(),
	}
}

// GetCurrentPrice returns the current price of symbol, retrying with
// exponential backoff. Each attempt is bounded by Config.Timeout.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, fmt.Errorf("empty symbol")
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		price, err := c.fetchOnce(ctx, symbol)
		if err == nil {
			return price, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if attempt == c.cfg.MaxRetries-1 {
			break
		}

		waitTime := c.cfg.RetryBackoff * time.Duration(1<<uint(attempt))
		c.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Int("attempt", attempt+1).
			Dur("wait", waitTime).
			Msg("Retrying")

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return 0, fmt.Errorf("failed to get price for %s after %d attempts: %w", symbol, c.cfg.MaxRetries, lastErr)
}

// fetchOnce runs one lookup bounded by the per-call timeout. go-yfinance
// calls are not context-aware, so a timed-out lookup is abandoned.
func (c *Client) fetchOnce(ctx context.Context, symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	type result struct {
		price float64
		err   error
	}
	done := make(chan result, 1)
	go func() {
		price, err := c.source.Price(symbol)
		done <- result{price, err}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("price lookup for %s: %w", symbol, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return 0, r.err
		}
		if r.price <= 0 {
			return 0, fmt.Errorf("%w for %s", ErrNoPrice, symbol)
		}
		return r.price, nil
	}
}

// GetBatchQuotes fetches the latest daily close for several symbols in one
// request. Symbols Yahoo could not price are absent from the result.
func (c *Client) GetBatchQuotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	quotes := make(map[string]float64)
	if len(symbols) == 0 {
		return quotes, nil
	}

	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		normalized = append(normalized, strings.ToUpper(strings.TrimSpace(s)))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	type result struct {
		closes map[string]float64
		errs   map[string]error
		err    error
	}
	done := make(chan result, 1)
	go func() {
		closes, errs, err := c.source.LastCloses(normalized)
		done <- result{closes, errs, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("batch quote download: %w", ctx.Err())
	case r = <-done:
	}
	if r.err != nil {
		return nil, fmt.Errorf("failed to download batch quotes: %w", r.err)
	}

	for _, symbol := range normalized {
		if price, ok := r.closes[symbol]; ok && price > 0 {
			quotes[symbol] = price
		} else if err, ok := r.errs[symbol]; ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to get quote for symbol")
		}
	}

	return quotes, nil
}

// yfinanceSource talks to Yahoo through go-yfinance
type yfinanceSource struct{}

// Price tries Quote first (faster), then falls back to Info
func (yfinanceSource) Price(symbol string) (float64, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	quote, err := t.Quote()
	if err == nil && quote != nil {
		switch {
		case quote.RegularMarketPrice > 0:
			return quote.RegularMarketPrice, nil
		case quote.PreMarketPrice > 0:
			return quote.PreMarketPrice, nil
		case quote.PostMarketPrice > 0:
			return quote.PostMarketPrice, nil
		}
	}

	info, err := t.Info()
	if err != nil {
		return 0, fmt.Errorf("failed to get info for %s: %w", symbol, err)
	}
	if info != nil {
		if info.CurrentPrice > 0 {
			return info.CurrentPrice, nil
		}
		if info.RegularMarketPreviousClose > 0 {
			return info.RegularMarketPreviousClose, nil
		}
	}

	return 0, fmt.Errorf("%w for %s", ErrNoPrice, symbol)
}

// LastCloses downloads recent daily bars and keeps the last close per symbol
func (yfinanceSource) LastCloses(symbols []string) (map[string]float64, map[string]error, error) {
	params := models.DefaultDownloadParams()
	params.Symbols = symbols
	params.Period = "5d" // enough to cover weekends and holidays
	params.Interval = "1d"

	result, err := multi.Download(symbols, &params)
	if err != nil {
		return nil, nil, err
	}

	closes := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		if bars, ok := result.Data[symbol]; ok && len(bars) > 0 {
			closes[symbol] = bars[len(bars)-1].Close
		}
	}

	return closes, result.Errors, nil
}
