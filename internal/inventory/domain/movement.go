package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationType is the direction of a stock movement.
type OperationType string

const (
	OperationAdd    OperationType = "add"
	OperationReduce OperationType = "reduce"
)

// Valid reports whether o is a known operation.
func (o OperationType) Valid() bool {
	return o == OperationAdd || o == OperationReduce
}

// Delta returns the signed balance change for a positive quantity.
func (o OperationType) Delta(quantity int64) int64 {
	if o == OperationReduce {
		return -quantity
	}
	return quantity
}

// StockMovement is one append-only ledger entry. QuantityBaseUnits is always a
// positive magnitude; ResultingBalance is the balance right after the entry.
// ItemVersion is the item version the entry produced and orders an item's ledger.
type StockMovement struct {
	ID                string              `db:"id" json:"id"`
	ItemID            string              `db:"item_id" json:"item_id"`
	ItemName          string              `db:"item_name" json:"item_name"`
	OperationType     OperationType       `db:"operation_type" json:"operation_type"`
	QuantityBaseUnits int64               `db:"quantity_base_units" json:"quantity_base_units"`
	ResultingBalance  int64               `db:"resulting_balance" json:"resulting_balance"`
	ItemVersion       int64               `db:"item_version" json:"item_version"`
	ExpiryMonth       *time.Time          `db:"expiry_month" json:"expiry_month,omitempty"`
	CostPrice         decimal.NullDecimal `db:"cost_price" json:"cost_price"`
	SellingPrice      decimal.NullDecimal `db:"selling_price" json:"selling_price"`
	SupplierID        *string             `db:"supplier_id" json:"supplier_id,omitempty"`
	SupplierName      *string             `db:"supplier_name" json:"supplier_name,omitempty"`
	PerformerID       string              `db:"performer_id" json:"performer_id"`
	PerformerName     string              `db:"performer_name" json:"performer_name"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
}

// PreviousBalance is the balance before this entry was applied.
func (m *StockMovement) PreviousBalance() int64 {
	return m.ResultingBalance - m.OperationType.Delta(m.QuantityBaseUnits)
}

// SortDirection orders movement listings by creation time.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// MovementFilter selects a page of movements. Zero values mean "any".
type MovementFilter struct {
	ItemID        string
	OperationType OperationType
	Search        string
	Page          int
	PerPage       int
	Sort          SortDirection
}

// Offset returns the row offset of the requested page.
func (f MovementFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}
