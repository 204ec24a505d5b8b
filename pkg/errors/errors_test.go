package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStock(t *testing.T) {
	err := errors.InsufficientStock(5, 8)

	assert.Equal(t, "INSUFFICIENT_STOCK", err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode)
	assert.Equal(t, "5", err.Details["available"])
	assert.Equal(t, "8", err.Details["requested"])
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	assert.False(t, errors.Is(err, errors.ErrInternal))
}

func TestConcurrencyConflict(t *testing.T) {
	err := errors.ConcurrencyConflict("item", 5)

	assert.Equal(t, http.StatusConflict, err.StatusCode)
	assert.Contains(t, err.Message, "5 attempts")
	assert.True(t, errors.Is(err, errors.ErrConcurrencyConflict))
}

func TestAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("record movement: %w", errors.NotFound("item"))

	var appErr *errors.AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
	assert.Equal(t, "item not found", appErr.Message)
}

func TestErrorString(t *testing.T) {
	base := fmt.Errorf("connection refused")
	err := errors.Wrap(base, "INTERNAL_ERROR", "failed to load item", http.StatusInternalServerError)

	assert.Equal(t, "failed to load item: connection refused", err.Error())
	assert.Equal(t, "validation failed", errors.Validation(map[string]string{"quantity": "required"}).Error())
}
