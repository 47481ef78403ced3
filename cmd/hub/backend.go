package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/integrationhub/pkg/audit"
	"github.com/platinummonkey/integrationhub/pkg/companies"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/registrations"
	"github.com/platinummonkey/integrationhub/pkg/storage"
	"github.com/platinummonkey/integrationhub/pkg/storage/postgres"
	"github.com/platinummonkey/integrationhub/pkg/users"
)

// backend holds the entity stores of the selected storage type
type backend struct {
	companies     companies.Store
	users         users.Store
	registrations registrations.Store
	audit         audit.Store

	// sim is nil for postgres; the simulated latency only applies to memory stores
	sim   *storage.Simulator
	conns *postgres.ConnectionManager
}

func openBackend(ctx context.Context, cfg storage.Config, logger *observability.Logger) (*backend, error) {
	switch cfg.Type {
	case storage.TypeMemory:
		logger.WithFields(map[string]interface{}{
			"latency":      cfg.MockLatency.String(),
			"failure_rate": cfg.MockFailureRate,
		}).Info("using in-memory stores")
		return &backend{
			companies:     companies.NewMemoryStore(),
			users:         users.NewMemoryStore(),
			registrations: registrations.NewMemoryStore(),
			audit:         audit.NewMemoryStore(),
			sim:           storage.NewSimulatorFromConfig(cfg),
		}, nil

	case storage.TypePostgres:
		cm, err := postgres.NewConnectionManager(postgres.ConfigFromStorage(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, cm.Primary()); err != nil {
			cm.Close()
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		logger.WithField("replicas", len(cfg.PostgresReplicaURLs)).Info("using postgres stores")
		return &backend{
			companies:     postgres.NewCompanyStore(cm),
			users:         postgres.NewUserStore(cm),
			registrations: postgres.NewRegistrationStore(cm),
			audit:         postgres.NewAuditStore(cm),
			conns:         cm,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
}

// db returns the primary pool for health checks, nil for memory stores
func (b *backend) db() *sql.DB {
	if b.conns == nil {
		return nil
	}
	return b.conns.Primary()
}

func (b *backend) close() error {
	if b.conns == nil {
		return nil
	}
	return b.conns.Close()
}
