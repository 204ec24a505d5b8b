package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/repository"
	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/medflow/pharmacy-stock/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemCols = []string{
	"id", "name", "category_id", "category_name", "packaging_levels", "current_stock_base_units",
	"earliest_expiry", "low_stock_threshold", "can_be_sold", "status", "version",
	"created_at", "updated_at", "deleted_at",
}

const (
	itemID    = "3f2b8c1e-6a4d-4e0f-9b7a-2c5d8e1f0a11"
	missingID = "3f2b8c1e-6a4d-4e0f-9b7a-2c5d8e1f0aff"
)

func TestItemRepository_GetByID(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	levels := []byte(`[{"level_id":"box","name":"Box","plural_name":"Boxes","quantity_to_next_level":12},{"level_id":"amp","name":"Ampoule","plural_name":"Ampoules"}]`)

	s.MockDB.ExpectQuery("FROM inventory_items WHERE id = $1 AND deleted_at IS NULL").
		WithArgs(itemID).
		WillReturnRows(testutil.MockRows(itemCols...).AddRow(
			itemID, "Adrenaline 1mg", nil, nil, levels, int64(30),
			expiry, int64(12), true, domain.ItemStatusActive, int64(4), now, now, nil,
		))

	repo := repository.NewItemRepository(s.DB)
	item, err := repo.GetByID(context.Background(), itemID)
	require.NoError(t, err)

	assert.Equal(t, "Adrenaline 1mg", item.Name)
	assert.Equal(t, int64(30), item.CurrentStockBaseUnits)
	assert.Equal(t, int64(4), item.Version)
	require.Len(t, item.PackagingLevels, 2)
	assert.Equal(t, int64(12), *item.PackagingLevels[0].QuantityToNextLevel)
	require.NotNil(t, item.LowStockThreshold)
	assert.Equal(t, int64(12), *item.LowStockThreshold)
	assert.Equal(t, expiry, *item.EarliestExpiry)
}

func TestItemRepository_GetByID_NotFound(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	s.MockDB.ExpectQuery("FROM inventory_items WHERE id = $1").
		WithArgs(missingID).
		WillReturnRows(testutil.MockRows(itemCols...))

	_, err := repository.NewItemRepository(s.DB).GetByID(context.Background(), missingID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestItemRepository_UpdateStock(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "version matches", affected: 1},
		{name: "stale version", affected: 0, wantErr: domain.ErrStaleVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testutil.NewUnitTestSuite(t)
			defer s.Cleanup()

			item := s.Fixtures.InventoryItem(testutil.WithStock(40))
			item.Version = 3

			s.MockDB.ExpectExec("UPDATE inventory_items").
				WithArgs(int64(40), nil, int64(3), testutil.AnyTime{}, item.ID, int64(2)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repository.NewItemRepository(s.DB).UpdateStock(context.Background(), item, 2)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestItemRepository_UpdateStock_CheckViolation(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	item := s.Fixtures.InventoryItem()
	s.MockDB.ExpectExec("UPDATE inventory_items").
		WillReturnError(&pq.Error{Code: "23514", Constraint: "inventory_items_stock_non_negative"})

	err := repository.NewItemRepository(s.DB).UpdateStock(context.Background(), item, 1)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
}

func TestItemRepository_Create(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	now := time.Now().UTC()
	item := &domain.InventoryItem{Name: "Ibuprofen 400mg", PackagingLevels: testutil.TabletLevels(), CanBeSold: true}

	s.MockDB.ExpectQuery("INSERT INTO inventory_items").
		WithArgs(testutil.AnyUUID{}, "Ibuprofen 400mg", nil, nil, sqlmock.AnyArg(), int64(0),
			nil, nil, true, domain.ItemStatusActive, int64(1), testutil.AnyTime{}).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	err := repository.NewItemRepository(s.DB).Create(context.Background(), item)
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, now, item.CreatedAt)
}

func TestItemRepository_SoftDelete_Missing(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	s.MockDB.ExpectExec("SET status = $1, deleted_at = $2").
		WithArgs(domain.ItemStatusDeleted, testutil.AnyTime{}, missingID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repository.NewItemRepository(s.DB).SoftDelete(context.Background(), missingID, time.Now())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestItemRepository_GetForUpdate_LocksRow(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	now := time.Now().UTC()
	s.MockDB.ExpectBegin()
	s.MockDB.ExpectQuery("FROM inventory_items WHERE id = $1 AND deleted_at IS NULL FOR UPDATE").
		WithArgs(itemID).
		WillReturnRows(testutil.MockRows(itemCols...).AddRow(
			itemID, "Paracetamol 500mg", nil, nil, []byte(`[{"level_id":"tab","name":"Tablet","plural_name":"Tablets"}]`), int64(0),
			nil, int64(10), true, domain.ItemStatusActive, int64(7), now, now, nil,
		))
	s.MockDB.ExpectCommit()

	repo := repository.NewItemRepository(s.DB)
	var item *domain.InventoryItem
	err := s.DB.InTx(context.Background(), func(ctx context.Context) error {
		var err error
		item, err = repo.GetForUpdate(ctx, itemID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), item.CurrentStockBaseUnits)
	assert.Equal(t, int64(7), item.Version)
}

func TestItemRepository_GetForUpdate_NotFound(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	s.MockDB.ExpectQuery("FOR UPDATE").
		WithArgs(missingID).
		WillReturnRows(testutil.MockRows(itemCols...))

	_, err := repository.NewItemRepository(s.DB).GetForUpdate(context.Background(), missingID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestItemRepository_MalformedIDIsNotFound(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	repo := repository.NewItemRepository(s.DB)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = repo.GetForUpdate(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = repo.UpdateThreshold(ctx, "not-a-uuid", testutil.PtrInt64(5), time.Now())
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	err = repo.SoftDelete(ctx, "not-a-uuid", time.Now())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestItemRepository_GetByID_InvalidTextFromDriver(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()

	s.MockDB.ExpectQuery("FROM inventory_items WHERE id = $1").
		WithArgs(itemID).
		WillReturnError(&pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "x"`})

	_, err := repository.NewItemRepository(s.DB).GetByID(context.Background(), itemID)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "BAD_REQUEST", appErr.Code)
}
