package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/medflow/pharmacy-stock/pkg/actor"
	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/medflow/pharmacy-stock/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pharmacist = &actor.Actor{ID: "user-7", Name: "Amina Yusuf"}

func addReq(itemID string, qty int64) service.MovementRequest {
	return service.MovementRequest{ItemID: itemID, Operation: domain.OperationAdd, Quantity: qty, Performer: pharmacist}
}

func reduceReq(itemID string, qty int64) service.MovementRequest {
	return service.MovementRequest{ItemID: itemID, Operation: domain.OperationReduce, Quantity: qty, Performer: pharmacist}
}

func TestRecordMovement_AddByLevels(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t)
	ctx := context.Background()

	res, err := h.ledger.RecordMovement(ctx, service.MovementRequest{
		ItemID:       item.ID,
		Operation:    domain.OperationAdd,
		LevelAmounts: map[string]int64{"pack": 2, "card": 3, "tablet": 5},
		CostPrice:    decimal.NewNullDecimal(decimal.RequireFromString("12.50")),
		Performer:    pharmacist,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(235), res.NewBalance)
	assert.Equal(t, int64(0), res.PreviousBalance)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int64(235), res.Movement.QuantityBaseUnits)
	assert.Equal(t, int64(2), res.Movement.ItemVersion)
	assert.Equal(t, "user-7", res.Movement.PerformerID)
	assert.Equal(t, "Amina Yusuf", res.Movement.PerformerName)
	assert.Equal(t, "12.5", res.Movement.CostPrice.Decimal.String())
	assert.False(t, res.Movement.SellingPrice.Valid)

	stored := h.item(t, item.ID)
	assert.Equal(t, int64(235), stored.CurrentStockBaseUnits)
	assert.Equal(t, int64(2), stored.Version)
	assert.Len(t, h.movements(t, item.ID), 1)
}

func TestRecordMovement_LevelAmountsByUnitDefinition(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t, testutil.WithLevels(testutil.AmpouleLevels()))

	res, err := h.ledger.RecordMovement(context.Background(), service.MovementRequest{
		ItemID:    item.ID,
		Operation: domain.OperationAdd,
		LevelAmounts: map[string]int64{
			"7d1f3c2a-0b34-4c8e-9a61-1f0c5e2b9a02": 3,
			"ampoule":                              4,
		},
		Performer: pharmacist,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.NewBalance)
}

func TestRecordMovement_Reduce(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t)
	ctx := context.Background()

	_, err := h.ledger.RecordMovement(ctx, addReq(item.ID, 100))
	require.NoError(t, err)

	res, err := h.ledger.RecordMovement(ctx, reduceReq(item.ID, 35))
	require.NoError(t, err)
	assert.Equal(t, int64(65), res.NewBalance)
	assert.Equal(t, int64(100), res.PreviousBalance)
	assert.Equal(t, int64(100), res.Movement.PreviousBalance())
	assert.Equal(t, domain.OperationReduce, res.Movement.OperationType)
	assert.Equal(t, int64(35), res.Movement.QuantityBaseUnits)
}

func TestRecordMovement_InsufficientStock(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t)
	ctx := context.Background()

	_, err := h.ledger.RecordMovement(ctx, addReq(item.ID, 5))
	require.NoError(t, err)

	_, err = h.ledger.RecordMovement(ctx, reduceReq(item.ID, 8))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "5", appErr.Details["available"])
	assert.Equal(t, "8", appErr.Details["requested"])

	stored := h.item(t, item.ID)
	assert.Equal(t, int64(5), stored.CurrentStockBaseUnits)
	assert.Len(t, h.movements(t, item.ID), 1)
}

func TestRecordMovement_ReduceToZeroIsAllowed(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t)
	ctx := context.Background()

	_, err := h.ledger.RecordMovement(ctx, addReq(item.ID, 7))
	require.NoError(t, err)
	res, err := h.ledger.RecordMovement(ctx, reduceReq(item.ID, 7))
	require.NoError(t, err)
	assert.Zero(t, res.NewBalance)
}

func TestRecordMovement_Validation(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t)

	cases := []struct {
		name  string
		req   service.MovementRequest
		field string
	}{
		{"missing quantity", service.MovementRequest{ItemID: item.ID, Operation: domain.OperationAdd}, "quantity"},
		{"negative quantity", service.MovementRequest{ItemID: item.ID, Operation: domain.OperationAdd, Quantity: -4}, "quantity"},
		{"both quantity and levels", service.MovementRequest{ItemID: item.ID, Operation: domain.OperationAdd, Quantity: 4, LevelAmounts: map[string]int64{"pack": 1}}, "quantity"},
		{"unknown operation", service.MovementRequest{ItemID: item.ID, Operation: "adjust", Quantity: 4}, "operation_type"},
		{"missing item", service.MovementRequest{Operation: domain.OperationAdd, Quantity: 4}, "item_id"},
		{"negative level amount", service.MovementRequest{ItemID: item.ID, Operation: domain.OperationAdd, LevelAmounts: map[string]int64{"pack": -1}}, "level_amounts.pack"},
		{"all levels zero", service.MovementRequest{ItemID: item.ID, Operation: domain.OperationAdd, LevelAmounts: map[string]int64{"pack": 0, "card": 0}}, "level_amounts"},
		{"unknown level", service.MovementRequest{ItemID: item.ID, Operation: domain.OperationAdd, LevelAmounts: map[string]int64{"blister": 2}}, "level_amounts"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.ledger.RecordMovement(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation), "got %v", err)

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Details, tc.field)
		})
	}

	assert.Empty(t, h.movements(t, item.ID))
	assert.Equal(t, int64(1), h.item(t, item.ID).Version)
}

func TestRecordMovement_UnknownItem(t *testing.T) {
	h := newHarness(t)

	_, err := h.ledger.RecordMovement(context.Background(), addReq("missing", 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRecordMovement_DeletedItemIsNotFound(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t)
	ctx := context.Background()
	require.NoError(t, h.svc.DeleteItem(ctx, item.ID))

	_, err := h.ledger.RecordMovement(ctx, addReq(item.ID, 1))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRecordMovement_AddOverflow(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t, testutil.WithStock(1<<62))

	_, err := h.ledger.RecordMovement(context.Background(), addReq(item.ID, 1<<62))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestRecordMovement_PerformerFromContext(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t)

	ctx := actor.WithActor(context.Background(), &actor.Actor{ID: "user-9", Name: "Tunde"})
	res, err := h.ledger.RecordMovement(ctx, service.MovementRequest{ItemID: item.ID, Operation: domain.OperationAdd, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, "user-9", res.Movement.PerformerID)

	res, err = h.ledger.RecordMovement(context.Background(), service.MovementRequest{ItemID: item.ID, Operation: domain.OperationAdd, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, actor.SystemID, res.Movement.PerformerID)
}

func TestRecordMovement_RetriesStaleVersion(t *testing.T) {
	var stale *staleItems
	h := newHarness(t, withItems(func(base service.ItemStore) service.ItemStore {
		stale = &staleItems{ItemStore: base}
		stale.remaining.Store(2)
		return stale
	}))
	item := h.seed(t)

	res, err := h.ledger.RecordMovement(context.Background(), addReq(item.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), stale.calls.Load())
	assert.Equal(t, int64(10), h.item(t, item.ID).CurrentStockBaseUnits)
	assert.Len(t, h.movements(t, item.ID), 1)
}

func TestRecordMovement_ConcurrencyConflictAfterRetries(t *testing.T) {
	var stale *staleItems
	h := newHarness(t,
		withItems(func(base service.ItemStore) service.ItemStore {
			stale = &staleItems{ItemStore: base}
			stale.remaining.Store(100)
			return stale
		}),
		withLedgerConfig(func(cfg *service.LedgerConfig) { cfg.MaxRetries = 2 }),
	)
	item := h.seed(t)

	_, err := h.ledger.RecordMovement(context.Background(), addReq(item.ID, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConcurrencyConflict))
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Equal(t, int32(3), stale.calls.Load())

	assert.Zero(t, h.item(t, item.ID).CurrentStockBaseUnits)
	assert.Empty(t, h.movements(t, item.ID))
}

func TestRecordMovement_AlertFailureRollsBack(t *testing.T) {
	h := newHarness(t, withAlerts(func(base service.AlertStore) service.AlertStore {
		return &brokenAlerts{AlertStore: base, err: fmt.Errorf("alerts table unavailable")}
	}))
	item := h.seed(t, testutil.WithThreshold(10))

	_, err := h.ledger.RecordMovement(context.Background(), addReq(item.ID, 4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alerts table unavailable")

	stored := h.item(t, item.ID)
	assert.Zero(t, stored.CurrentStockBaseUnits)
	assert.Equal(t, int64(1), stored.Version)
	assert.Empty(t, h.movements(t, item.ID))
}

func TestRecordMovement_CancelledContext(t *testing.T) {
	var stale *staleItems
	h := newHarness(t,
		withItems(func(base service.ItemStore) service.ItemStore {
			stale = &staleItems{ItemStore: base}
			stale.remaining.Store(100)
			return stale
		}),
		withLedgerConfig(func(cfg *service.LedgerConfig) {
			cfg.InitialInterval = time.Hour
			cfg.MaxInterval = time.Hour
		}),
	)
	item := h.seed(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.ledger.RecordMovement(ctx, addReq(item.ID, 1))
	require.Error(t, err)
	assert.Zero(t, h.item(t, item.ID).CurrentStockBaseUnits)
}

func TestRecordMovement_ConcurrentWritersKeepEveryDelta(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t)
	ctx := context.Background()

	_, err := h.ledger.RecordMovement(ctx, addReq(item.ID, 1000))
	require.NoError(t, err)

	const writers = 40
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := addReq(item.ID, 3)
			if i%2 == 1 {
				req = reduceReq(item.ID, 2)
			}
			_, err := h.ledger.RecordMovement(ctx, req)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored := h.item(t, item.ID)
	assert.Equal(t, int64(1000+20*3-20*2), stored.CurrentStockBaseUnits)

	movements := h.movements(t, item.ID)
	require.Len(t, movements, writers+1)
	balance, mismatches := service.Replay(movements)
	assert.Equal(t, stored.CurrentStockBaseUnits, balance)
	assert.Empty(t, mismatches)
}

func TestRecordMovement_WatermarkFollowsExpiries(t *testing.T) {
	h := newHarness(t)
	item := h.seed(t)
	ctx := context.Background()

	add := func(qty int64, expiry time.Time) {
		t.Helper()
		req := addReq(item.ID, qty)
		req.Expiry = &expiry
		_, err := h.ledger.RecordMovement(ctx, req)
		require.NoError(t, err)
	}
	watermark := func() time.Time {
		t.Helper()
		w := h.item(t, item.ID).EarliestExpiry
		require.NotNil(t, w)
		return *w
	}

	add(50, time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), watermark())

	add(20, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), watermark())

	// Still current, so a later batch does not move it.
	add(5, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), watermark())

	h.clock.Set(time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC))
	add(10, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), watermark())

	req := reduceReq(item.ID, 1)
	early := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	req.Expiry = &early
	_, err := h.ledger.RecordMovement(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), watermark())
}

func TestNextWatermark(t *testing.T) {
	now := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	type input struct {
		current *time.Time
		expiry  time.Time
	}
	testutil.RunTestCases(t, []testutil.TestCase[input, time.Time]{
		{Name: "no watermark", Input: input{nil, jun}, Expected: jun},
		{Name: "earlier wins", Input: input{&jun, mar}, Expected: mar},
		{Name: "later ignored while current", Input: input{&mar, jun}, Expected: mar},
		{Name: "later advances lapsed watermark", Input: input{&jan, jun}, Expected: jun},
		{Name: "earlier than lapsed watermark", Input: input{&jan, jan.AddDate(0, -1, 0)}, Expected: jan.AddDate(0, -1, 0)},
	}, func(in input) (time.Time, error) {
		return *service.NextWatermark(in.current, in.expiry, now), nil
	})
}
