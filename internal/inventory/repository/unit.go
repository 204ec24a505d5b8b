package repository

import (
	"context"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/pkg/database"
)

// UnitRepository reads the unit catalog
type UnitRepository struct {
	db *database.DB
}

// NewUnitRepository creates a new unit repository
func NewUnitRepository(db *database.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// List returns every unit definition in display order.
func (r *UnitRepository) List(ctx context.Context) ([]*domain.UnitDefinition, error) {
	units := []*domain.UnitDefinition{}
	err := r.db.Conn(ctx).SelectContext(ctx, &units,
		`SELECT id, name, plural_name, display_order FROM unit_definitions ORDER BY display_order, name`)
	if err != nil {
		return nil, mapError(err, "list units")
	}
	return units, nil
}
