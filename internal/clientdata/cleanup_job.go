package clientdata

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob deletes cached prices too old to serve even as a stale fallback.
type CleanupJob struct {
	repo   *Repository
	maxAge time.Duration
	log    zerolog.Logger
}

// NewCleanupJob creates a new price cache cleanup job. A non-positive maxAge
// uses StaleWindow.
func NewCleanupJob(repo *Repository, maxAge time.Duration, log zerolog.Logger) *CleanupJob {
	if maxAge <= 0 {
		maxAge = StaleWindow
	}
	return &CleanupJob{
		repo:   repo,
		maxAge: maxAge,
		log:    log.With().Str("job", "price_cache_cleanup").Logger(),
	}
}

// Run deletes old prices and logs what is left in the cache.
func (j *CleanupJob) Run() error {
	deleted, err := j.repo.DeleteOlderThan(j.maxAge)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete old cached prices")
		return err
	}

	total, fresh, err := j.repo.Counts()
	if err != nil {
		return err
	}

	j.log.Info().
		Int64("deleted", deleted).
		Int("remaining", total).
		Int("fresh", fresh).
		Msg("Price cache cleanup completed")
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "price_cache_cleanup"
}
