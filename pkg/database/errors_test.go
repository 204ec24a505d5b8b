package database_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/medflow/pharmacy-stock/pkg/database"
	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"wrapped serialization failure", fmt.Errorf("update: %w", &pq.Error{Code: "40001"}), true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"plain error", fmt.Errorf("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, database.IsRetryable(tt.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "inventory_alerts_one_active"}

	assert.True(t, database.IsUniqueViolation(err, ""))
	assert.True(t, database.IsUniqueViolation(err, "inventory_alerts_one_active"))
	assert.False(t, database.IsUniqueViolation(err, "unit_definitions_name_key"))
	assert.False(t, database.IsUniqueViolation(&pq.Error{Code: "23514"}, ""))
}

func TestMapPQError(t *testing.T) {
	t.Run("not a pq error", func(t *testing.T) {
		assert.Nil(t, database.MapPQError(fmt.Errorf("boom")))
	})

	t.Run("negative stock check", func(t *testing.T) {
		appErr := database.MapPQError(&pq.Error{Code: "23514", Constraint: "inventory_items_stock_non_negative"})
		require.NotNil(t, appErr)
		assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
		assert.Equal(t, http.StatusUnprocessableEntity, appErr.StatusCode)
		assert.True(t, errors.Is(appErr, errors.ErrInsufficientStock))
	})

	t.Run("quantity check", func(t *testing.T) {
		appErr := database.MapPQError(&pq.Error{Code: "23514", Constraint: "stock_movements_quantity_positive"})
		require.NotNil(t, appErr)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		assert.Contains(t, appErr.Details, "quantity")
	})

	t.Run("unknown check", func(t *testing.T) {
		appErr := database.MapPQError(&pq.Error{Code: "23514", Constraint: "something_else"})
		require.NotNil(t, appErr)
		assert.Equal(t, "BAD_REQUEST", appErr.Code)
	})

	t.Run("active alert unique", func(t *testing.T) {
		appErr := database.MapPQError(&pq.Error{Code: "23505", Constraint: "inventory_alerts_one_active"})
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusConflict, appErr.StatusCode)
		assert.Contains(t, appErr.Message, "active alert")
	})

	t.Run("missing item foreign key", func(t *testing.T) {
		appErr := database.MapPQError(&pq.Error{Code: "23503", Constraint: "stock_movements_item_id_fkey"})
		require.NotNil(t, appErr)
		assert.Equal(t, "item not found", appErr.Message)
	})

	t.Run("not null", func(t *testing.T) {
		appErr := database.MapPQError(&pq.Error{Code: "23502", Column: "name"})
		require.NotNil(t, appErr)
		assert.Equal(t, "must not be empty", appErr.Details["name"])
	})

	t.Run("malformed uuid", func(t *testing.T) {
		appErr := database.MapPQError(&pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`})
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
		assert.True(t, errors.Is(appErr, errors.ErrBadRequest))
	})

	t.Run("unmapped code", func(t *testing.T) {
		assert.Nil(t, database.MapPQError(&pq.Error{Code: "40001"}))
	})
}
