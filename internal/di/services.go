package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/papertrade/internal/clients/yahoo"
	"github.com/aristath/papertrade/internal/config"
	"github.com/aristath/papertrade/internal/events"
	"github.com/aristath/papertrade/internal/modules/portfolio"
	"github.com/aristath/papertrade/internal/modules/snapshots"
	"github.com/aristath/papertrade/internal/reliability"
	"github.com/aristath/papertrade/internal/services"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients and services
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.PortfolioRepo == nil {
		return fmt.Errorf("repositories must be initialized first")
	}

	container.EventBus = events.NewBus(log)

	container.YahooClient = yahoo.NewClient(yahoo.Config{
		MaxRetries: cfg.Prices.MaxRetries,
		Timeout:    cfg.Prices.Timeout,
	}, log)

	container.PriceService = services.NewPriceService(
		container.YahooClient,
		container.ClientDataRepo,
		cfg.Prices.CacheTTL,
		log,
	)

	container.AccountService = portfolio.NewAccountService(
		container.PortfolioRepo,
		container.PriceService,
		container.EventBus,
		cfg.StartingCash,
		log,
	)

	container.SnapshotService = snapshots.NewService(
		container.SnapshotRepo,
		container.AccountService,
		container.PriceService,
		container.EventBus,
		log,
	)

	if cfg.Backup != nil && cfg.Backup.Enabled {
		store, err := reliability.NewS3Client(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			store,
			container.PortfolioDB,
			cfg.Backup.Prefix,
			filepath.Join(cfg.DataDir, "backup-staging"),
			container.EventBus,
			log,
		)
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backups enabled")
	}

	log.Debug().Msg("Services initialized")
	return nil
}
