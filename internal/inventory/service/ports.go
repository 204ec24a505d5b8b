package service

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
)

// ItemStore persists inventory items. GetByID reports deleted items as not found.
// GetForUpdate also holds the item's row lock until the transaction ends, so
// no movement can commit between the read and later writes in that transaction.
// UpdateStock is a compare-and-swap on the item version and returns
// domain.ErrStaleVersion when the stored version moved.
type ItemStore interface {
	Create(ctx context.Context, item *domain.InventoryItem) error
	GetByID(ctx context.Context, id string) (*domain.InventoryItem, error)
	GetForUpdate(ctx context.Context, id string) (*domain.InventoryItem, error)
	UpdateStock(ctx context.Context, item *domain.InventoryItem, expectedVersion int64) error
	UpdateThreshold(ctx context.Context, id string, threshold *int64, at time.Time) (*domain.InventoryItem, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
	ListIDs(ctx context.Context) ([]string, error)
}

// MovementStore appends and reads ledger entries. ListByItem returns entries
// in ledger order.
type MovementStore interface {
	Create(ctx context.Context, m *domain.StockMovement) error
	List(ctx context.Context, f domain.MovementFilter) ([]*domain.StockMovement, int64, error)
	ListByItem(ctx context.Context, itemID string) ([]*domain.StockMovement, error)
}

// AlertStore keeps at most one active alert per (item, kind).
type AlertStore interface {
	UpsertActive(ctx context.Context, a *domain.AlertRecord) (bool, error)
	Resolve(ctx context.Context, itemID string, kind domain.AlertKind, at time.Time) (*domain.AlertRecord, error)
	ActiveByItem(ctx context.Context, itemID string) ([]*domain.AlertRecord, error)
	List(ctx context.Context, f domain.AlertFilter) ([]*domain.AlertRecord, int64, error)
}

// UnitStore reads the unit catalog.
type UnitStore interface {
	List(ctx context.Context) ([]*domain.UnitDefinition, error)
}

// Transactor runs fn atomically. Store calls made with the context passed to
// fn take part in the transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores groups the persistence ports.
type Stores struct {
	Items     ItemStore
	Movements MovementStore
	Alerts    AlertStore
	Units     UnitStore
	Tx        Transactor
}

// ActivityRecorder receives one record per committed movement.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, a domain.Activity) error
}

// EventPublisher announces committed changes to other services.
type EventPublisher interface {
	PublishStockMoved(ctx context.Context, m *domain.StockMovement) error
	PublishAlertTransition(ctx context.Context, t *domain.AlertTransition) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

type nopActivity struct{}

func (nopActivity) RecordActivity(context.Context, domain.Activity) error { return nil }

type nopEvents struct{}

func (nopEvents) PublishStockMoved(context.Context, *domain.StockMovement) error { return nil }

func (nopEvents) PublishAlertTransition(context.Context, *domain.AlertTransition) error { return nil }
