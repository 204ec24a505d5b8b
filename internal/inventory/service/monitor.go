package service

import (
	"context"
	"fmt"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/pkg/logger"
)

// alertKinds is the order the monitor visits kinds in.
var alertKinds = []domain.AlertKind{domain.AlertOutOfStock, domain.AlertLowStock}

// Monitor reconciles an item's threshold alerts against its balance.
// Reconciling twice with the same inputs changes nothing the second time.
type Monitor struct {
	alerts AlertStore
	clock  Clock
	logger *logger.Logger
}

// NewMonitor creates a threshold monitor
func NewMonitor(alerts AlertStore, clock Clock, log *logger.Logger) *Monitor {
	if clock == nil {
		clock = SystemClock
	}
	return &Monitor{alerts: alerts, clock: clock, logger: log.WithComponent("threshold_monitor")}
}

// Desired returns the alert kind that should be active for stock and
// threshold, and false when none should be.
func Desired(stock int64, threshold *int64) (domain.AlertKind, bool) {
	switch {
	case threshold == nil:
		return "", false
	case stock == 0:
		return domain.AlertOutOfStock, true
	case stock <= *threshold:
		return domain.AlertLowStock, true
	default:
		return "", false
	}
}

// Reconcile applies the item's current balance and threshold.
func (m *Monitor) Reconcile(ctx context.Context, item *domain.InventoryItem) (*domain.AlertTransition, error) {
	want, wanted := Desired(item.CurrentStockBaseUnits, item.LowStockThreshold)

	active, err := m.alerts.ActiveByItem(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("load active alerts: %w", err)
	}
	byKind := make(map[domain.AlertKind]*domain.AlertRecord, len(active))
	for _, a := range active {
		byKind[a.Kind] = a
	}

	now := m.clock.Now()
	tr := &domain.AlertTransition{ItemID: item.ID}

	for _, kind := range alertKinds {
		existing := byKind[kind]

		if wanted && kind == want {
			next := domain.NewAlert(kind, item, item.CurrentStockBaseUnits, item.LowStockThreshold)
			if existing != nil && sameSnapshot(existing, next) {
				continue
			}
			next.UpdatedAt = now
			created, err := m.alerts.UpsertActive(ctx, next)
			if err != nil {
				return nil, fmt.Errorf("upsert %s alert: %w", kind, err)
			}
			if created {
				tr.Raised = append(tr.Raised, next)
			} else {
				tr.Updated = append(tr.Updated, next)
			}
			continue
		}

		if existing == nil {
			continue
		}
		resolved, err := m.alerts.Resolve(ctx, item.ID, kind, now)
		if err != nil {
			return nil, fmt.Errorf("resolve %s alert: %w", kind, err)
		}
		if resolved != nil {
			tr.Resolved = append(tr.Resolved, resolved)
		}
	}

	if !tr.Empty() {
		m.logger.Info().
			Str("item_id", item.ID).
			Int64("stock", item.CurrentStockBaseUnits).
			Int("raised", len(tr.Raised)).
			Int("updated", len(tr.Updated)).
			Int("resolved", len(tr.Resolved)).
			Msg("alerts reconciled")
	}
	return tr, nil
}

func sameSnapshot(a, b *domain.AlertRecord) bool {
	if a.CurrentStock != b.CurrentStock || a.Description != b.Description {
		return false
	}
	if (a.Threshold == nil) != (b.Threshold == nil) {
		return false
	}
	return a.Threshold == nil || *a.Threshold == *b.Threshold
}

// ResolveAll resolves every active alert of the item. Used when the item
// leaves the catalog.
func (m *Monitor) ResolveAll(ctx context.Context, itemID string) (*domain.AlertTransition, error) {
	now := m.clock.Now()
	tr := &domain.AlertTransition{ItemID: itemID}
	for _, kind := range alertKinds {
		resolved, err := m.alerts.Resolve(ctx, itemID, kind, now)
		if err != nil {
			return nil, fmt.Errorf("resolve %s alert: %w", kind, err)
		}
		if resolved != nil {
			tr.Resolved = append(tr.Resolved, resolved)
		}
	}
	return tr, nil
}
