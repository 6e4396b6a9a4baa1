package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/papertrade/internal/database"
	"github.com/rs/zerolog"
)

// CheckDatabasesJob runs SQLite integrity checks and reports WAL growth
type CheckDatabasesJob struct {
	log       zerolog.Logger
	databases []*database.DB
	walFrames int
	timeout   time.Duration
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob. nil databases are skipped.
func NewCheckDatabasesJob(log zerolog.Logger, databases ...*database.DB) *CheckDatabasesJob {
	return &CheckDatabasesJob{
		log:       log.With().Str("job", "check_databases").Logger(),
		databases: databases,
		walFrames: 1000,
		timeout:   10 * time.Minute,
	}
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run checks every database. A failed integrity check fails the job;
// WAL status problems are only logged.
func (j *CheckDatabasesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	checked := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		if err := db.IntegrityCheck(ctx); err != nil {
			j.log.Error().
				Err(err).
				Str("database", db.Name()).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", db.Name(), err)
		}

		j.checkWAL(ctx, db)
		checked++
	}

	j.log.Info().Int("checked", checked).Msg("Database checks completed")
	return nil
}

// checkWAL runs a passive checkpoint and warns when the WAL keeps growing
func (j *CheckDatabasesJob) checkWAL(ctx context.Context, db *database.DB) {
	res, err := db.WALCheckpoint(ctx, database.CheckpointPassive)
	if err != nil {
		j.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to check WAL checkpoint")
		return
	}

	if res.LogFrames > j.walFrames {
		j.log.Warn().
			Str("database", db.Name()).
			Int("wal_frames", res.LogFrames).
			Int("checkpointed", res.Checkpointed).
			Bool("busy", res.Busy).
			Msg("WAL file is large, checkpoint may be needed")
		return
	}
	j.log.Debug().
		Str("database", db.Name()).
		Int("wal_frames", res.LogFrames).
		Msg("WAL checkpoint status OK")
}
