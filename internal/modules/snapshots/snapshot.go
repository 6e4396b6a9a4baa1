// Package snapshots captures point-in-time price snapshots and computes
// weighted returns between them.
package snapshots

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/rs/zerolog"
)

// DateLayout is the calendar-date format used for snapshot dates
const DateLayout = "2006-01-02"

// Snapshot is the set of prices observed for one user on one calendar date
type Snapshot struct {
	UserID string
	Date   time.Time
	Prices map[string]float64
}

// NewSnapshot creates a snapshot. The price map is copied and the date is
// truncated to midnight UTC.
func NewSnapshot(userID string, date time.Time, prices map[string]float64) *Snapshot {
	copied := make(map[string]float64, len(prices))
	for ticker, price := range prices {
		copied[domain.NormalizeTicker(ticker)] = price
	}
	return &Snapshot{
		UserID: userID,
		Date:   truncateToDate(date),
		Prices: copied,
	}
}

// DateString returns the snapshot date as YYYY-MM-DD
func (s *Snapshot) DateString() string {
	return s.Date.Format(DateLayout)
}

// Tickers returns the snapshot's tickers in sorted order
func (s *Snapshot) Tickers() []string {
	tickers := make([]string, 0, len(s.Prices))
	for ticker := range s.Prices {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

type snapshotJSON struct {
	UserID string             `json:"user_id"`
	Date   string             `json:"date"`
	Prices map[string]float64 `json:"prices"`
}

// MarshalJSON encodes the date as YYYY-MM-DD
func (s Snapshot) MarshalJSON() ([]byte, error) {
	prices := s.Prices
	if prices == nil {
		prices = map[string]float64{}
	}
	return json.Marshal(snapshotJSON{
		UserID: s.UserID,
		Date:   s.DateString(),
		Prices: prices,
	})
}

// UnmarshalJSON accepts the format produced by MarshalJSON. The date and
// user id are optional so that bare {"prices": {...}} bodies decode.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var date time.Time
	if raw.Date != "" {
		parsed, err := ParseDate(raw.Date)
		if err != nil {
			return err
		}
		date = parsed
	}

	*s = *NewSnapshot(raw.UserID, date, raw.Prices)
	return nil
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(value string) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", value, err)
	}
	return date, nil
}

func truncateToDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Capture reads one current price per ticker and stamps the result with
// now's calendar date. Tickers the oracle cannot price are left out.
// Portfolio state is never touched.
func Capture(
	ctx context.Context,
	userID string,
	tickers []string,
	oracle domain.PriceOracle,
	now time.Time,
	log zerolog.Logger,
) *Snapshot {
	prices := make(map[string]float64, len(tickers))
	for _, ticker := range tickers {
		ticker = domain.NormalizeTicker(ticker)
		if ticker == "" {
			continue
		}
		if _, seen := prices[ticker]; seen {
			continue
		}

		price, ok := domain.LookupPrice(ctx, oracle, ticker)
		if !ok {
			log.Warn().
				Str("user_id", userID).
				Str("ticker", ticker).
				Msg("No price available, ticker omitted from snapshot")
			continue
		}
		prices[ticker] = price
	}

	return NewSnapshot(userID, now, prices)
}
