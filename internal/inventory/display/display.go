// Package display renders base-unit balances as human-readable stock strings
// such as "2 Packs, 3 Cards, 5 Tablets". It holds no state; the display mode
// is chosen by the caller on every call.
package display

import (
	"fmt"
	"strings"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/packaging"
)

// fallbackUnit is used for items that have no packaging levels.
const fallbackUnit = "units"

// Balance is a rendered balance plus what the toggle would show next.
type Balance struct {
	ItemID     string           `json:"item_id"`
	BaseUnits  int64            `json:"base_units"`
	Mode       packaging.Mode   `json:"mode"`
	NextMode   packaging.Mode   `json:"next_mode"`
	Text       string           `json:"text"`
	Parts      []packaging.Part `json:"parts"`
	BaseUnit   string           `json:"base_unit"`
	LevelCount int              `json:"level_count"`
}

// Format renders total for the given hierarchy and mode.
func Format(levels domain.PackagingLevels, total int64, mode packaging.Mode) string {
	text, _ := render(levels, total, mode)
	return text
}

// FormatItem renders the item's current balance.
func FormatItem(item *domain.InventoryItem, mode packaging.Mode) string {
	return Format(item.PackagingLevels, item.CurrentStockBaseUnits, mode)
}

// FormatQuantity renders a movement quantity in full mode, as used in
// activity descriptions ("Added 2 Packs, 5 Tablets of ...").
func FormatQuantity(levels domain.PackagingLevels, quantity int64) string {
	return Format(levels, quantity, packaging.ModeFull)
}

// Render returns the full rendered balance for an item.
func Render(item *domain.InventoryItem, mode packaging.Mode) Balance {
	text, parts := render(item.PackagingLevels, item.CurrentStockBaseUnits, mode)

	base := fallbackUnit
	if l, ok := item.PackagingLevels.Base(); ok {
		base = UnitName(l, 2)
	}

	return Balance{
		ItemID:     item.ID,
		BaseUnits:  item.CurrentStockBaseUnits,
		Mode:       mode,
		NextMode:   mode.Next(),
		Text:       text,
		Parts:      parts,
		BaseUnit:   base,
		LevelCount: len(item.PackagingLevels),
	}
}

// UnitName picks the singular or plural name of a level for amount.
func UnitName(level domain.PackagingLevel, amount int64) string {
	return level.DisplayName(amount)
}

func render(levels domain.PackagingLevels, total int64, mode packaging.Mode) (string, []packaging.Part) {
	base, ok := levels.Base()
	if !ok {
		return fmt.Sprintf("%d %s", total, fallbackUnit), nil
	}

	parts, err := packaging.Decompose(levels, total, mode)
	if err != nil {
		// legacy hierarchies whose multipliers overflow still show the raw count
		return fmt.Sprintf("%d %s", total, UnitName(base, total)), nil
	}

	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = fmt.Sprintf("%d %s", p.Amount, UnitName(p.Level, p.Amount))
	}
	return strings.Join(out, ", "), parts
}
