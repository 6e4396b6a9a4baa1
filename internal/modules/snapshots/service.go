package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/aristath/papertrade/internal/events"
	"github.com/aristath/papertrade/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// Capture sources recorded on SnapshotCaptured events
const (
	SourceAPI       = "api"
	SourceScheduler = "scheduler"
)

// AccountReader is the part of the account service snapshots depend on
type AccountReader interface {
	Tickers(ctx context.Context, userID string) ([]string, error)
	Weights(ctx context.Context, userID string) (portfolio.Weights, error)
}

// Service captures, stores and compares snapshots
type Service struct {
	repo     *Repository
	accounts AccountReader
	oracle   domain.PriceOracle
	bus      *events.Bus
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a new snapshot service
func NewService(
	repo *Repository,
	accounts AccountReader,
	oracle domain.PriceOracle,
	bus *events.Bus,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		oracle:   oracle,
		bus:      bus,
		log:      log.With().Str("service", "snapshots").Logger(),
		now:      time.Now,
	}
}

// Preview captures a snapshot without storing it. When quantities is empty
// the user's current holdings are used.
func (s *Service) Preview(ctx context.Context, userID string, quantities map[string]float64) (*Snapshot, error) {
	tickers, err := s.resolveTickers(ctx, userID, quantities)
	if err != nil {
		return nil, err
	}
	return Capture(ctx, userID, tickers, s.oracle, s.now(), s.log), nil
}

// Store captures a snapshot for userID and persists it. A second snapshot
// on the same date fails with ErrSnapshotExists.
func (s *Service) Store(ctx context.Context, userID string, quantities map[string]float64, source string) (*Snapshot, error) {
	if len(quantities) > 0 {
		// The user must exist even when the tickers come from the request
		if _, err := s.accounts.Tickers(ctx, userID); err != nil {
			return nil, err
		}
	}

	tickers, err := s.resolveTickers(ctx, userID, quantities)
	if err != nil {
		return nil, err
	}

	snap := Capture(ctx, userID, tickers, s.oracle, s.now(), s.log)
	if err := s.repo.Save(ctx, snap); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("date", snap.DateString()).
		Int("tickers", len(snap.Prices)).
		Str("source", source).
		Msg("Snapshot stored")

	s.bus.Publish("snapshots", &events.SnapshotCapturedData{
		UserID:  userID,
		Date:    snap.DateString(),
		Tickers: len(snap.Prices),
		Source:  source,
	})
	return snap, nil
}

func (s *Service) resolveTickers(ctx context.Context, userID string, quantities map[string]float64) ([]string, error) {
	var tickers []string
	if len(quantities) > 0 {
		for ticker, qty := range quantities {
			if err := domain.ValidateQuantity(qty); err != nil {
				return nil, fmt.Errorf("%s: %w", ticker, err)
			}
			tickers = append(tickers, ticker)
		}
	} else {
		held, err := s.accounts.Tickers(ctx, userID)
		if err != nil {
			return nil, err
		}
		tickers = held
	}

	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: nothing to snapshot for %s", domain.ErrEmptyPortfolio, userID)
	}
	return tickers, nil
}

// List returns the stored snapshots of userID, oldest first
func (s *Service) List(ctx context.Context, userID string) ([]*Snapshot, error) {
	return s.repo.List(ctx, userID)
}

// ReturnsBetween computes returns from the snapshot stored on from to the one
// stored on to, weighted by the user's current holdings.
func (s *Service) ReturnsBetween(ctx context.Context, userID string, from, to time.Time) (*Returns, error) {
	oldSnap, err := s.repo.Get(ctx, userID, from)
	if err != nil {
		return nil, err
	}
	newSnap, err := s.repo.Get(ctx, userID, to)
	if err != nil {
		return nil, err
	}

	weights, err := s.accounts.Weights(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Between(oldSnap, newSnap, weights)
}

// ComputeReturns weights a {ticker: quantity} portfolio at current prices and
// computes returns between two request-provided price maps.
func (s *Service) ComputeReturns(ctx context.Context, oldPrices, newPrices, quantities map[string]float64) (*Returns, error) {
	weights, err := portfolio.WeightsFromQuantities(ctx, s.oracle, quantities)
	if err != nil {
		return nil, err
	}
	return ComputeReturns(normalizePrices(oldPrices), normalizePrices(newPrices), weights)
}

func normalizePrices(prices map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(prices))
	for ticker, price := range prices {
		out[domain.NormalizeTicker(ticker)] = price
	}
	return out
}
