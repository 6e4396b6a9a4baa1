package di

import (
	"fmt"

	"github.com/aristath/papertrade/internal/clientdata"
	"github.com/aristath/papertrade/internal/modules/portfolio"
	"github.com/aristath/papertrade/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.PortfolioDB == nil || container.ClientDataDB == nil {
		return fmt.Errorf("databases must be initialized first")
	}

	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())
	container.PortfolioRepo = portfolio.NewRepository(container.PortfolioDB.Conn(), log)
	container.SnapshotRepo = snapshots.NewRepository(container.PortfolioDB.Conn(), log)

	log.Debug().Msg("Repositories initialized")
	return nil
}
