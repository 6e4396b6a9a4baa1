package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/papertrade/internal/database"
	"github.com/aristath/papertrade/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk space thresholds in GB
const (
	criticalFreeGB = 0.5
	lowFreeGB      = 5.0
)

const maintenanceTimeout = 30 * time.Minute

// MaintenanceJob performs periodic database maintenance: WAL truncation,
// VACUUM and a disk space check
type MaintenanceJob struct {
	databases []*database.DB
	dataDir   string
	log       zerolog.Logger

	diskUsage func(path string) (*disk.UsageStat, error)
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(dataDir string, log zerolog.Logger, databases ...*database.DB) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("job", "maintenance").Logger(),
		diskUsage: disk.Usage,
	}
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	timer := utils.NewTimer("maintenance", j.log).WithSlowThreshold(5 * time.Minute)

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	for _, db := range j.databases {
		if db == nil {
			continue
		}

		if res, err := db.WALCheckpoint(ctx, database.CheckpointTruncate); err != nil {
			// Not critical, VACUUM still runs
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		} else if res.Busy {
			j.log.Warn().Str("database", db.Name()).Msg("WAL checkpoint blocked by active readers")
		}

		if err := j.vacuumDatabase(ctx, db); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("VACUUM failed")
		}
	}

	j.log.Info().
		Dur("duration_ms", timer.Stop()).
		Msg("Maintenance completed")
	return nil
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// checkDiskSpace fails the job when the data directory is nearly full
func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := j.diskUsage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	switch {
	case availableGB < criticalFreeGB:
		j.log.Error().Float64("available_gb", availableGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", availableGB, j.dataDir)
	case availableGB < lowFreeGB:
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}

// vacuumDatabase performs VACUUM and logs the space reclaimed
func (j *MaintenanceJob) vacuumDatabase(ctx context.Context, db *database.DB) error {
	before, err := db.GetStats(ctx)
	if err != nil {
		return err
	}

	if _, err := db.Conn().ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}

	after, err := db.GetStats(ctx)
	if err != nil {
		return err
	}

	sizeBefore, sizeAfter := before.SizeMB(), after.SizeMB()
	j.log.Info().
		Str("database", db.Name()).
		Float64("size_before_mb", sizeBefore).
		Float64("size_after_mb", sizeAfter).
		Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
		Msg("VACUUM completed")
	return nil
}
