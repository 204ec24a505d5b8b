package domain

import (
	"fmt"
	"time"
)

// AlertKind distinguishes the two threshold alerts an item can carry.
type AlertKind string

const (
	AlertOutOfStock AlertKind = "out_of_stock"
	AlertLowStock   AlertKind = "low_stock"
)

// AlertStatus is Active until the monitor resolves it. Resolved rows are history.
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
)

// AlertPriority mirrors the notification priority shown to staff.
type AlertPriority string

const (
	PriorityHigh   AlertPriority = "HIGH"
	PriorityMedium AlertPriority = "MED"
)

// AlertRecord is a threshold alert. At most one Active record exists per (item, kind).
type AlertRecord struct {
	ID           string        `db:"id" json:"id"`
	ItemID       string        `db:"item_id" json:"item_id"`
	ItemName     string        `db:"item_name" json:"item_name"`
	Kind         AlertKind     `db:"kind" json:"kind"`
	Status       AlertStatus   `db:"status" json:"status"`
	Title        string        `db:"title" json:"title"`
	Description  string        `db:"description" json:"description"`
	Priority     AlertPriority `db:"priority" json:"priority"`
	CurrentStock int64         `db:"current_stock" json:"current_stock"`
	Threshold    *int64        `db:"threshold" json:"threshold,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
	ResolvedAt   *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
}

// NewAlert builds the active alert of the given kind for an item's current state.
func NewAlert(kind AlertKind, item *InventoryItem, stock int64, threshold *int64) *AlertRecord {
	a := &AlertRecord{
		ItemID:       item.ID,
		ItemName:     item.Name,
		Kind:         kind,
		Status:       AlertStatusActive,
		CurrentStock: stock,
		Threshold:    cloneInt64(threshold),
	}

	switch kind {
	case AlertOutOfStock:
		a.Title = "OUT OF STOCK"
		a.Priority = PriorityHigh
		a.Description = fmt.Sprintf("%s is finished and needs immediate restocking.", item.Name)
	case AlertLowStock:
		var t int64
		if threshold != nil {
			t = *threshold
		}
		a.Title = "LOW STOCK"
		a.Priority = PriorityMedium
		a.Description = fmt.Sprintf("%s only has (%d units out of minimum %d units).", item.Name, stock, t)
	}

	return a
}

// AlertFilter selects a page of alerts. Zero values mean "any".
type AlertFilter struct {
	ItemID  string
	Kind    AlertKind
	Status  AlertStatus
	Page    int
	PerPage int
}

// Offset returns the row offset of the requested page.
func (f AlertFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}
