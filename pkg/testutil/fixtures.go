package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// TabletLevels is the Pack(x10) > Card(x10) > Tablet hierarchy.
func TabletLevels() domain.PackagingLevels {
	return domain.PackagingLevels{
		{LevelID: "pack", UnitDefinitionID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a01", Name: "Pack", PluralName: "Packs", QuantityToNextLevel: PtrInt64(10)},
		{LevelID: "card", UnitDefinitionID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a03", Name: "Card", PluralName: "Cards", QuantityToNextLevel: PtrInt64(10)},
		{LevelID: "tablet", UnitDefinitionID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a05", Name: "Tablet", PluralName: "Tablets"},
	}
}

// AmpouleLevels is the Box(x12) > Ampoule hierarchy.
func AmpouleLevels() domain.PackagingLevels {
	return domain.PackagingLevels{
		{LevelID: "box", UnitDefinitionID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a02", Name: "Box", PluralName: "Boxes", QuantityToNextLevel: PtrInt64(12)},
		{LevelID: "ampoule", UnitDefinitionID: "7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a07", Name: "Ampoule", PluralName: "Ampoules"},
	}
}

// InventoryItem creates an item fixture with the tablet hierarchy and no stock
func (f *FixtureFactory) InventoryItem(opts ...func(*domain.InventoryItem)) *domain.InventoryItem {
	seq := f.nextSeq()
	now := time.Now().UTC().Truncate(time.Microsecond)

	item := &domain.InventoryItem{
		ID:              uuid.New().String(),
		Name:            fmt.Sprintf("Paracetamol 500mg #%d", seq),
		PackagingLevels: TabletLevels(),
		CanBeSold:       true,
		Status:          domain.ItemStatusActive,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, opt := range opts {
		opt(item)
	}

	return item
}

// WithItemName sets the inventory item name
func WithItemName(name string) func(*domain.InventoryItem) {
	return func(i *domain.InventoryItem) {
		i.Name = name
	}
}

// WithStock sets the cached balance in base units
func WithStock(n int64) func(*domain.InventoryItem) {
	return func(i *domain.InventoryItem) {
		i.CurrentStockBaseUnits = n
	}
}

// WithThreshold sets the low-stock threshold in base units
func WithThreshold(n int64) func(*domain.InventoryItem) {
	return func(i *domain.InventoryItem) {
		i.LowStockThreshold = &n
	}
}

// WithLevels replaces the packaging hierarchy
func WithLevels(levels domain.PackagingLevels) func(*domain.InventoryItem) {
	return func(i *domain.InventoryItem) {
		i.PackagingLevels = levels
	}
}
