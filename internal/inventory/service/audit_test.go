package service_test

import (
	"context"
	"testing"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/medflow/pharmacy-stock/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay(t *testing.T) {
	movements := []*domain.StockMovement{
		{ID: "m1", OperationType: domain.OperationAdd, QuantityBaseUnits: 50, ResultingBalance: 50, ItemVersion: 2},
		{ID: "m2", OperationType: domain.OperationReduce, QuantityBaseUnits: 20, ResultingBalance: 30, ItemVersion: 3},
		{ID: "m3", OperationType: domain.OperationAdd, QuantityBaseUnits: 5, ResultingBalance: 40, ItemVersion: 4},
	}

	balance, mismatches := service.Replay(movements)
	assert.Equal(t, int64(35), balance)
	require.Len(t, mismatches, 1)
	assert.Equal(t, service.SnapshotMismatch{MovementID: "m3", ItemVersion: 4, Expected: 35, Recorded: 40}, mismatches[0])

	balance, mismatches = service.Replay(nil)
	assert.Zero(t, balance)
	assert.Empty(t, mismatches)
}

func TestVerifyLedger_ConsistentAfterMovements(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t)
	ctx := context.Background()

	for _, q := range []int64{100, 40, 7} {
		_, err := h.svc.AddStock(ctx, service.StockInput{ItemID: item.ID, Quantity: q, Performer: pharmacist})
		require.NoError(t, err)
	}
	_, err := h.svc.ReduceStock(ctx, service.StockInput{ItemID: item.ID, Quantity: 47, Performer: pharmacist})
	require.NoError(t, err)

	report, err := h.svc.VerifyLedger(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(100), report.CachedBalance)
	assert.Equal(t, int64(100), report.ReplayedBalance)
	assert.Equal(t, 4, report.Movements)
}

func TestVerifyLedger_IgnoresMovementsAfterItemRead(t *testing.T) {
	lagging := &laggingItems{snapshot: map[string]*domain.InventoryItem{}}
	h := newHarness(t, withItems(func(base service.ItemStore) service.ItemStore {
		lagging.ItemStore = base
		return lagging
	}))
	item := h.seed(t)
	ctx := context.Background()

	_, err := h.svc.AddStock(ctx, service.StockInput{ItemID: item.ID, Quantity: 100, Performer: pharmacist})
	require.NoError(t, err)
	before := h.item(t, item.ID)
	_, err = h.svc.AddStock(ctx, service.StockInput{ItemID: item.ID, Quantity: 5, Performer: pharmacist})
	require.NoError(t, err)

	lagging.snapshot[item.ID] = before

	report, err := h.svc.VerifyLedger(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(100), report.CachedBalance)
	assert.Equal(t, int64(100), report.ReplayedBalance)
	assert.Equal(t, 1, report.Movements)
}

func TestVerifyLedger_DetectsDrift(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t, testutil.WithStock(12))

	report, err := h.svc.VerifyLedger(context.Background(), item.ID)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, int64(12), report.CachedBalance)
	assert.Zero(t, report.ReplayedBalance)
}

func TestVerifyLedger_UnknownItem(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.VerifyLedger(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestVerifyAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	good := h.seed(t)
	bad := h.seed(t, testutil.WithStock(3))

	_, err := h.svc.AddStock(ctx, service.StockInput{ItemID: good.ID, Quantity: 9, Performer: pharmacist})
	require.NoError(t, err)

	auditor := service.NewLedgerAuditor(h.stores, testLogger())
	reports, err := auditor.VerifyAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byID := map[string]*service.LedgerReport{}
	for _, r := range reports {
		byID[r.ItemID] = r
	}
	assert.True(t, byID[good.ID].Consistent)
	assert.False(t, byID[bad.ID].Consistent)
}
