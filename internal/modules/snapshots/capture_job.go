package snapshots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/papertrade/internal/domain"
	"github.com/aristath/papertrade/internal/utils"
	"github.com/rs/zerolog"
)

// UserLister lists registered users
type UserLister interface {
	UserIDs(ctx context.Context) ([]string, error)
}

// PriceWarmer pre-fetches prices for a batch of tickers
type PriceWarmer interface {
	Warm(ctx context.Context, tickers []string) int
}

// CaptureJob stores a daily snapshot of every user's holdings
type CaptureJob struct {
	service *Service
	users   UserLister
	warmer  PriceWarmer
	timeout time.Duration
	log     zerolog.Logger
}

// NewCaptureJob creates a new snapshot capture job. warmer may be nil.
func NewCaptureJob(service *Service, users UserLister, warmer PriceWarmer, log zerolog.Logger) *CaptureJob {
	return &CaptureJob{
		service: service,
		users:   users,
		warmer:  warmer,
		timeout: 5 * time.Minute,
		log:     log.With().Str("job", "snapshot_capture").Logger(),
	}
}

// Run captures today's snapshot for every user that holds something and
// does not have one yet
func (j *CaptureJob) Run() error {
	defer utils.OperationTimer("snapshot_capture", j.log)()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	userIDs, err := j.users.UserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	today := j.service.now()
	plan := make(map[string][]string)
	var all []string
	for _, userID := range userIDs {
		exists, err := j.service.repo.Exists(ctx, userID, today)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		tickers, err := j.service.accounts.Tickers(ctx, userID)
		if err != nil {
			j.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load holdings")
			continue
		}
		if len(tickers) == 0 {
			continue
		}
		plan[userID] = tickers
		all = append(all, tickers...)
	}

	if len(plan) == 0 {
		j.log.Debug().Msg("No snapshots to capture")
		return nil
	}

	if j.warmer != nil {
		warmed := j.warmer.Warm(ctx, dedupe(all))
		j.log.Debug().Int("warmed", warmed).Msg("Price cache warmed")
	}

	var captured, failed int
	for _, userID := range userIDs {
		tickers, ok := plan[userID]
		if !ok {
			continue
		}
		if _, err := j.service.Store(ctx, userID, nil, SourceScheduler); err != nil {
			if errors.Is(err, domain.ErrSnapshotExists) || errors.Is(err, domain.ErrEmptyPortfolio) {
				continue
			}
			failed++
			j.log.Error().Err(err).Str("user_id", userID).Int("tickers", len(tickers)).Msg("Failed to capture snapshot")
			continue
		}
		captured++
	}

	j.log.Info().
		Int("captured", captured).
		Int("failed", failed).
		Msg("Snapshot capture completed")

	if failed > 0 {
		return fmt.Errorf("%d snapshot captures failed", failed)
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CaptureJob) Name() string {
	return "snapshot_capture"
}

func dedupe(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = domain.NormalizeTicker(t)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
