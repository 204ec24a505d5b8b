package memstore

import "github.com/medflow/pharmacy-stock/internal/inventory/domain"

// DefaultUnits matches the catalog seeded by the SQL migrations.
func DefaultUnits() []*domain.UnitDefinition {
	return []*domain.UnitDefinition{
		{ID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a01", Name: "Pack", PluralName: "Packs", DisplayOrder: 1},
		{ID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a02", Name: "Box", PluralName: "Boxes", DisplayOrder: 2},
		{ID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a03", Name: "Card", PluralName: "Cards", DisplayOrder: 3},
		{ID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a04", Name: "Bottle", PluralName: "Bottles", DisplayOrder: 4},
		{ID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a05", Name: "Tablet", PluralName: "Tablets", DisplayOrder: 5},
		{ID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a06", Name: "Capsule", PluralName: "Capsules", DisplayOrder: 6},
		{ID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a07", Name: "Ampoule", PluralName: "Ampoules", DisplayOrder: 7},
	}
}
