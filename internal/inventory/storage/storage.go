// Package storage opens the configured persistence driver and hands back the
// service ports.
package storage

import (
	"context"
	"fmt"

	"github.com/medflow/pharmacy-stock/internal/inventory/memstore"
	"github.com/medflow/pharmacy-stock/internal/inventory/repository"
	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/medflow/pharmacy-stock/migrations"
	"github.com/medflow/pharmacy-stock/pkg/config"
	"github.com/medflow/pharmacy-stock/pkg/database"
	"github.com/medflow/pharmacy-stock/pkg/logger"
)

// Handle is an open store.
type Handle struct {
	Stores service.Stores
	health func(ctx context.Context) map[string]string
	close  func() error
}

// Health reports the driver status for /health.
func (h *Handle) Health(ctx context.Context) map[string]string {
	return h.health(ctx)
}

// Close releases the underlying connection pool, if any.
func (h *Handle) Close() error {
	return h.close()
}

// Open connects the driver named in cfg.Driver. For postgres, pending
// migrations are applied when cfg.AutoMigrate is set.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (*Handle, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return Memory(memstore.New(memstore.DefaultUnits()...)), nil
	}

	db, err := database.New(cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		applied, err := migrations.Apply(ctx, db.DB)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info().Strs("applied", applied).Msg("database migrations complete")
	}

	return Postgres(db), nil
}

// Postgres wires the sqlx repositories around db.
func Postgres(db *database.DB) *Handle {
	return &Handle{
		Stores: service.Stores{
			Items:     repository.NewItemRepository(db),
			Movements: repository.NewMovementRepository(db),
			Alerts:    repository.NewAlertRepository(db),
			Units:     repository.NewUnitRepository(db),
			Tx:        db,
		},
		health: db.Health,
		close:  db.Close,
	}
}

// Memory wires an in-process store.
func Memory(store *memstore.Store) *Handle {
	return &Handle{
		Stores: service.Stores{
			Items:     store.Items(),
			Movements: store.Movements(),
			Alerts:    store.Alerts(),
			Units:     store.Units(),
			Tx:        store,
		},
		health: func(context.Context) map[string]string {
			return map[string]string{"status": "up", "driver": config.DriverMemory}
		},
		close: func() error { return nil },
	}
}
