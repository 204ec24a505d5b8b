package database

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/medflow/pharmacy-stock/pkg/errors"
)

// PostgreSQL error codes the inventory store reacts to.
const (
	codeInvalidTextRepresentation = "22P02"
	codeSerializationFailure      = "40001"
	codeDeadlockDetected          = "40P01"
	codeNotNullViolation          = "23502"
	codeForeignKeyViolation       = "23503"
	codeUniqueViolation           = "23505"
	codeCheckViolation            = "23514"
)

// IsRetryable reports whether err is a transient transaction failure that
// is safe to retry from the start (serialization failure or deadlock).
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

// IsUniqueViolation reports whether err violates the named unique constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or has no user-facing mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case codeCheckViolation:
		return mapCheckConstraint(pqErr)

	case codeUniqueViolation:
		return errors.Conflict(formatConstraintMessage(pqErr))

	case codeForeignKeyViolation:
		return errors.NotFound(referencedResource(pqErr))

	case codeNotNullViolation:
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	case codeInvalidTextRepresentation:
		return errors.BadRequest("malformed identifier or value")

	default:
		return nil
	}
}

// mapCheckConstraint maps CHECK constraint names from the inventory schema.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "stock_non_negative"):
		return errors.Wrap(errors.ErrInsufficientStock, "INSUFFICIENT_STOCK",
			"stock balance cannot go below zero", http.StatusUnprocessableEntity).
			WithDetails(map[string]string{"current_stock_base_units": "must be >= 0"})

	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be greater than zero",
		})

	case strings.Contains(constraint, "threshold_non_negative"):
		return errors.Validation(map[string]string{
			"low_stock_threshold": "must be zero or greater",
		})

	case strings.Contains(constraint, "operation_type_valid"):
		return errors.Validation(map[string]string{
			"operation_type": "must be one of: add, reduce",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "alerts_one_active"):
		return "an active alert of this kind already exists for the item"
	case strings.Contains(constraint, "unit_definitions_name"):
		return "a unit with this name already exists"
	default:
		return "a record with these values already exists"
	}
}

func referencedResource(pqErr *pq.Error) string {
	if strings.Contains(pqErr.Constraint, "item_id") {
		return "item"
	}
	return "referenced record"
}
