package display_test

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/medflow/pharmacy-stock/internal/inventory/display"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/packaging"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func q(n int64) *int64 { return &n }

var hierarchies = []struct {
	name   string
	levels domain.PackagingLevels
}{
	{"pack-card-tablet", domain.PackagingLevels{
		{Name: "Pack", PluralName: "Packs", QuantityToNextLevel: q(10)},
		{Name: "Card", PluralName: "Cards", QuantityToNextLevel: q(10)},
		{Name: "Tablet", PluralName: "Tablets"},
	}},
	{"box-ampoule", domain.PackagingLevels{
		{Name: "Box", PluralName: "Boxes", QuantityToNextLevel: q(12)},
		{Name: "Ampoule", PluralName: "Ampoules"},
	}},
	{"no-plural", domain.PackagingLevels{
		{Name: "Kit", PluralName: " ", QuantityToNextLevel: q(4)},
		{Name: "Swab"},
	}},
	{"single-level", domain.PackagingLevels{
		{Name: "Bottle", PluralName: "Bottles"},
	}},
	{"no-levels", nil},
}

var totals = []int64{0, 1, 2, 9, 10, 11, 100, 101, 235, 1000, 1001}

// TestFormat_Golden renders every hierarchy, total and mode into one golden
// file per hierarchy. Regenerate with: go test ./internal/inventory/display -update
func TestFormat_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, h := range hierarchies {
		t.Run(h.name, func(t *testing.T) {
			var b strings.Builder
			for _, n := range totals {
				for _, mode := range packaging.Modes {
					fmt.Fprintf(&b, "%d\t%s\t%s\n", n, mode, display.Format(h.levels, n, mode))
				}
			}
			g.Assert(t, h.name, []byte(b.String()))
		})
	}
}

func TestFormat_Example(t *testing.T) {
	levels := hierarchies[0].levels

	assert.Equal(t, "2 Packs, 3 Cards, 5 Tablets", display.Format(levels, 235, packaging.ModeFull))
	assert.Equal(t, "23 Cards, 5 Tablets", display.Format(levels, 235, packaging.ModeSkipOne))
	assert.Equal(t, "235 Tablets", display.Format(levels, 235, packaging.ModeBaseOnly))
	assert.Equal(t, "0 Tablets", display.Format(levels, 0, packaging.ModeFull))
	assert.Equal(t, "1 Pack, 1 Tablet", display.Format(levels, 101, packaging.ModeFull))
}

func TestFormat_NoLevels(t *testing.T) {
	assert.Equal(t, "7 units", display.Format(nil, 7, packaging.ModeFull))
	assert.Equal(t, "0 units", display.Format(nil, 0, packaging.ModeSkipOne))
}

func TestFormat_OverflowingHierarchyFallsBack(t *testing.T) {
	levels := domain.PackagingLevels{
		{Name: "Crate", QuantityToNextLevel: q(math.MaxInt64)},
		{Name: "Box", QuantityToNextLevel: q(2)},
		{Name: "Vial", PluralName: "Vials"},
	}
	assert.Equal(t, "12 Vials", display.Format(levels, 12, packaging.ModeFull))
}

func TestRender(t *testing.T) {
	item := &domain.InventoryItem{ID: "item-1", PackagingLevels: hierarchies[0].levels, CurrentStockBaseUnits: 235}

	b := display.Render(item, packaging.ModeSkipOne)
	assert.Equal(t, "23 Cards, 5 Tablets", b.Text)
	assert.Equal(t, packaging.ModeBaseOnly, b.NextMode)
	assert.Equal(t, "Tablets", b.BaseUnit)
	assert.Len(t, b.Parts, 2)
	assert.Equal(t, 3, b.LevelCount)

	assert.Equal(t, "units", display.Render(&domain.InventoryItem{}, packaging.ModeFull).BaseUnit)
}

func TestUnitName(t *testing.T) {
	l := domain.PackagingLevel{Name: "Box", PluralName: "Boxes"}
	assert.Equal(t, "Box", display.UnitName(l, 1))
	assert.Equal(t, "Boxes", display.UnitName(l, 0))
	assert.Equal(t, "Boxes", display.UnitName(l, 2))
	assert.Equal(t, "Box", display.UnitName(domain.PackagingLevel{Name: "Box"}, 5))
}
