// Package domain holds the inventory entities shared by the conversion
// engine, the ledger, the threshold monitor and the stores.
package domain

// UnitDefinition is a named unit preset from the unit catalog, e.g. "Tablet".
// Packaging levels copy its names when an item is created.
type UnitDefinition struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	PluralName   string `db:"plural_name" json:"plural_name"`
	DisplayOrder int    `db:"display_order" json:"display_order"`
}
