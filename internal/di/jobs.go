// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/papertrade/internal/clientdata"
	"github.com/aristath/papertrade/internal/config"
	"github.com/aristath/papertrade/internal/modules/snapshots"
	"github.com/aristath/papertrade/internal/reliability"
	"github.com/aristath/papertrade/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler and registers all background jobs.
// The scheduler is stored on the container but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(container.EventBus, log)
	instances := &JobInstances{
		SnapshotCapture: snapshots.NewCaptureJob(
			container.SnapshotService,
			container.AccountService,
			container.PriceService,
			log,
		),
		PriceCacheCleanup: clientdata.NewCleanupJob(container.ClientDataRepo, clientdata.StaleWindow, log),
		DatabaseCheck:     scheduler.NewCheckDatabasesJob(log, container.Databases()...),
		Maintenance:       reliability.NewMaintenanceJob(cfg.DataDir, log, container.Databases()...),
	}

	schedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedules.SnapshotCapture, instances.SnapshotCapture},
		{cfg.Schedules.PriceCacheCleanup, instances.PriceCacheCleanup},
		{cfg.Schedules.DatabaseCheck, instances.DatabaseCheck},
		{cfg.Schedules.Maintenance, instances.Maintenance},
	}

	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		schedules = append(schedules, struct {
			schedule string
			job      scheduler.Job
		}{cfg.Schedules.Backup, instances.Backup})
	}

	for _, s := range schedules {
		if s.schedule == "" {
			log.Info().Str("job", s.job.Name()).Msg("Job has no schedule, skipping")
			continue
		}
		if err := sched.AddJob(s.schedule, s.job); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", s.job.Name(), err)
		}
	}

	container.Scheduler = sched
	return instances, nil
}
