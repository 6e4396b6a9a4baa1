// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/papertrade/internal/clientdata"
	"github.com/aristath/papertrade/internal/clients/yahoo"
	"github.com/aristath/papertrade/internal/database"
	"github.com/aristath/papertrade/internal/events"
	"github.com/aristath/papertrade/internal/modules/portfolio"
	"github.com/aristath/papertrade/internal/modules/snapshots"
	"github.com/aristath/papertrade/internal/reliability"
	"github.com/aristath/papertrade/internal/scheduler"
	"github.com/aristath/papertrade/internal/services"
)

// Container holds all dependencies for the application.
//
// It is created by Wire() and passed to the server, which builds its
// handlers from the services held here.
type Container struct {
	// Databases
	PortfolioDB  *database.DB // Users, holdings and snapshots
	ClientDataDB *database.DB // Current price cache

	// Clients
	YahooClient *yahoo.Client

	// Repositories
	ClientDataRepo *clientdata.Repository
	PortfolioRepo  *portfolio.Repository
	SnapshotRepo   *snapshots.Repository

	// Services
	EventBus        *events.Bus
	PriceService    *services.PriceService // The price oracle used everywhere
	AccountService  *portfolio.AccountService
	SnapshotService *snapshots.Service
	BackupService   *reliability.BackupService // nil when backups are disabled

	Scheduler *scheduler.Scheduler
}

// Databases returns the container's databases
func (c *Container) Databases() []*database.DB {
	return []*database.DB{c.PortfolioDB, c.ClientDataDB}
}

// Close closes all databases
func (c *Container) Close() {
	for _, db := range c.Databases() {
		if db != nil {
			db.Close()
		}
	}
}

// JobInstances holds the registered background jobs
type JobInstances struct {
	SnapshotCapture   scheduler.Job
	PriceCacheCleanup scheduler.Job
	DatabaseCheck     scheduler.Job
	Maintenance       scheduler.Job
	Backup            scheduler.Job // nil when backups are disabled
}
