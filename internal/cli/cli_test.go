package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/memstore"
	"github.com/medflow/pharmacy-stock/internal/inventory/storage"
	"github.com/medflow/pharmacy-stock/pkg/logger"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const tablets = "Pack/Packs:10,Card/Cards:10,Tablet/Tablets"

func run(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommandWith(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestParseLevels(t *testing.T) {
	levels, err := ParseLevels(tablets)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, "Packs", levels[0].PluralName)
	assert.Equal(t, int64(10), *levels[1].QuantityToNextLevel)
	assert.Nil(t, levels[2].QuantityToNextLevel)

	_, err = ParseLevels("Pack:x,Tablet")
	assert.Error(t, err)

	_, err = ParseLevels("Pack,Tablet")
	assert.ErrorContains(t, err, "quantity_to_next_level")

	_, err = ParseLevels("")
	assert.Error(t, err)
}

func TestConvert_Compose(t *testing.T) {
	out, err := run(t, &RootOptions{}, "convert", "--levels", tablets, "--amounts", "2,3,5")
	require.NoError(t, err)
	assert.Equal(t, "235 Tablets\n", out)
}

func TestConvert_ComposeYAML(t *testing.T) {
	out, err := run(t, &RootOptions{}, "convert", "--levels", tablets, "--amounts", "1", "-o", "yaml")
	require.NoError(t, err)

	var res ConvertResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Equal(t, int64(100), res.BaseUnits)
	assert.Equal(t, []int64{100, 10, 1}, res.Multipliers)
}

func TestConvert_Decompose(t *testing.T) {
	out, err := run(t, &RootOptions{}, "convert", "--levels", "Box/Boxes:12,Ampoule/Ampoules", "--total", "30", "-o", "json")
	require.NoError(t, err)

	var res ConvertResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []ConvertedLevel{{Level: "Boxes", Amount: 2}, {Level: "Ampoules", Amount: 6}}, res.Parts)
}

func TestConvert_FlagErrors(t *testing.T) {
	_, err := run(t, &RootOptions{}, "convert", "--levels", tablets)
	assert.Error(t, err)

	_, err = run(t, &RootOptions{}, "convert", "--levels", tablets, "--amounts", "1", "--total", "5")
	assert.Error(t, err)

	_, err = run(t, &RootOptions{}, "convert", "--levels", tablets, "--amounts=-1")
	assert.ErrorContains(t, err, "negative")

	_, err = run(t, &RootOptions{}, "convert", "--levels", tablets, "--total", "5", "--mode", "weird")
	assert.ErrorContains(t, err, "unknown display mode")
}

func TestFormat_AllModes(t *testing.T) {
	out, err := run(t, &RootOptions{}, "format", "235", "--levels", tablets, "--all")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "format-all", []byte(out))
}

func TestFormat_SingleModeJSON(t *testing.T) {
	out, err := run(t, &RootOptions{}, "format", "0", "--levels", tablets, "--mode", "skipOne", "--output", "json")
	require.NoError(t, err)

	var b FormattedBalance
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.Equal(t, "0 Tablets", b.Text)
	assert.Equal(t, "baseOnly", string(b.NextMode))
}

func TestFormat_RejectsNegative(t *testing.T) {
	_, err := run(t, &RootOptions{}, "format", "-5", "--levels", tablets)
	assert.Error(t, err)
}

func TestInvalidOutput(t *testing.T) {
	_, err := run(t, &RootOptions{}, "format", "1", "--levels", tablets, "-o", "xml")
	assert.ErrorContains(t, err, "invalid output")
}

func memoryOpener(store *memstore.Store) StoreOpener {
	return func(context.Context, *logger.Logger) (*storage.Handle, error) {
		return storage.Memory(store), nil
	}
}

func seedItem(t *testing.T, store *memstore.Store, id string, stock int64, movements ...int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Items().Create(ctx, &domain.InventoryItem{
		ID:                    id,
		Name:                  "Item " + id,
		CurrentStockBaseUnits: stock,
	}))

	var balance int64
	for i, q := range movements {
		balance += q
		require.NoError(t, store.Movements().Create(ctx, &domain.StockMovement{
			ItemID:            id,
			OperationType:     domain.OperationAdd,
			QuantityBaseUnits: q,
			ResultingBalance:  balance,
			ItemVersion:       int64(i + 2),
		}))
	}
}

func TestAudit_Consistent(t *testing.T) {
	store := memstore.New()
	seedItem(t, store, "a", 15, 10, 5)

	out, err := run(t, &RootOptions{OpenStore: memoryOpener(store)}, "audit", "-o", "json")
	require.NoError(t, err)

	var summary AuditSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Items)
	assert.Zero(t, summary.Inconsistent)
	assert.True(t, summary.Reports[0].Consistent)
	assert.Equal(t, 2, summary.Reports[0].Movements)
}

func TestAudit_DriftFails(t *testing.T) {
	store := memstore.New()
	seedItem(t, store, "a", 15, 10, 5)
	seedItem(t, store, "b", 12, 10)

	out, err := run(t, &RootOptions{OpenStore: memoryOpener(store)}, "audit")
	require.ErrorIs(t, err, ErrLedgerDrift)
	assert.Contains(t, out, "DRIFT b")
	assert.Contains(t, out, "2 item(s) audited, 1 inconsistent")
}

func TestAudit_SelectedItems(t *testing.T) {
	store := memstore.New()
	seedItem(t, store, "a", 15, 10, 5)
	seedItem(t, store, "b", 12, 10)

	out, err := run(t, &RootOptions{OpenStore: memoryOpener(store)}, "audit", "a")
	require.NoError(t, err)
	assert.Contains(t, out, "1 item(s) audited, 0 inconsistent")

	_, err = run(t, &RootOptions{OpenStore: memoryOpener(store)}, "audit", "missing")
	assert.ErrorContains(t, err, "audit missing")
}
