package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/pkg/database"
)

const alertColumns = `id, item_id, item_name, kind, status, title, description, priority,
	current_stock, threshold, created_at, updated_at, resolved_at`

// AlertRepository persists threshold alerts
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// UpsertActive creates the active alert for (item, kind) or refreshes the
// snapshot of the one that exists. It reports whether a row was inserted.
// The partial unique index inventory_alerts_one_active serializes concurrent callers.
func (r *AlertRepository) UpsertActive(ctx context.Context, a *domain.AlertRecord) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.Status = domain.AlertStatusActive

	query := `
		INSERT INTO inventory_alerts (
			id, item_id, item_name, kind, status, title, description, priority,
			current_stock, threshold, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (item_id, kind) WHERE status = 'active'
		DO UPDATE SET
			item_name = EXCLUDED.item_name,
			description = EXCLUDED.description,
			current_stock = EXCLUDED.current_stock,
			threshold = EXCLUDED.threshold,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		a.ID, a.ItemID, a.ItemName, a.Kind, a.Status, a.Title, a.Description, a.Priority,
		a.CurrentStock, a.Threshold, createdAt(a.UpdatedAt),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt, &inserted)
	if err != nil {
		return false, mapError(err, "upsert alert")
	}
	return inserted, nil
}

// Resolve closes the active alert of kind for an item. It returns nil when
// there was none.
func (r *AlertRepository) Resolve(ctx context.Context, itemID string, kind domain.AlertKind, at time.Time) (*domain.AlertRecord, error) {
	query := `
		UPDATE inventory_alerts
		SET status = $1, resolved_at = $2, updated_at = $2
		WHERE item_id = $3 AND kind = $4 AND status = $5
		RETURNING ` + alertColumns

	var a domain.AlertRecord
	err := r.db.Conn(ctx).GetContext(ctx, &a, query,
		domain.AlertStatusResolved, at, itemID, kind, domain.AlertStatusActive)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "resolve alert")
	}
	return &a, nil
}

// ActiveByItem returns the item's active alerts.
func (r *AlertRepository) ActiveByItem(ctx context.Context, itemID string) ([]*domain.AlertRecord, error) {
	query := `SELECT ` + alertColumns + ` FROM inventory_alerts WHERE item_id = $1 AND status = $2 ORDER BY kind`

	alerts := []*domain.AlertRecord{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &alerts, query, itemID, domain.AlertStatusActive); err != nil {
		return nil, mapError(err, "list active alerts")
	}
	return alerts, nil
}

// List returns one page of alerts, most recently updated first.
func (r *AlertRepository) List(ctx context.Context, f domain.AlertFilter) ([]*domain.AlertRecord, int64, error) {
	var w whereBuilder
	if f.ItemID != "" {
		if !isUUID(f.ItemID) {
			return []*domain.AlertRecord{}, 0, nil
		}
		w.add("item_id = ?", f.ItemID)
	}
	if f.Kind != "" {
		w.add("kind = ?", f.Kind)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM inventory_alerts`+w.sql(), w.args...); err != nil {
		return nil, 0, mapError(err, "count alerts")
	}

	query := `SELECT ` + alertColumns + ` FROM inventory_alerts` + w.sql() +
		` ORDER BY updated_at DESC, id` + w.page(f.PerPage, f.Offset())

	alerts := []*domain.AlertRecord{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &alerts, query, w.args...); err != nil {
		return nil, 0, mapError(err, "list alerts")
	}
	return alerts, total, nil
}
