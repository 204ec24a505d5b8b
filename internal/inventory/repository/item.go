package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/pkg/database"
	"github.com/medflow/pharmacy-stock/pkg/errors"
)

const itemColumns = `id, name, category_id, category_name, packaging_levels, current_stock_base_units,
	earliest_expiry, low_stock_threshold, can_be_sold, status, version, created_at, updated_at, deleted_at`

// ItemRepository handles inventory item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new item. A missing ID is generated.
func (r *ItemRepository) Create(ctx context.Context, item *domain.InventoryItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = domain.ItemStatusActive
	}
	if item.Version == 0 {
		item.Version = 1
	}

	query := `
		INSERT INTO inventory_items (
			id, name, category_id, category_name, packaging_levels, current_stock_base_units,
			earliest_expiry, low_stock_threshold, can_be_sold, status, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING created_at, updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		item.ID, item.Name, item.CategoryID, item.CategoryName, item.PackagingLevels,
		item.CurrentStockBaseUnits, item.EarliestExpiry, item.LowStockThreshold, item.CanBeSold,
		item.Status, item.Version, createdAt(item.CreatedAt),
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	return mapError(err, "create item")
}

// GetByID loads a live item. Deleted items are reported as not found.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate loads a live item and locks its row until the surrounding
// transaction ends. Ledger writes to the same item wait behind the lock.
func (r *ItemRepository) GetForUpdate(ctx context.Context, id string) (*domain.InventoryItem, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *ItemRepository) get(ctx context.Context, id, lock string) (*domain.InventoryItem, error) {
	if !isUUID(id) {
		return nil, errors.NotFound("item")
	}

	var item domain.InventoryItem
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = $1 AND deleted_at IS NULL` + lock

	err := r.db.Conn(ctx).GetContext(ctx, &item, query, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, mapError(err, "get item")
	}
	return &item, nil
}

// UpdateStock writes the balance, watermark and version of item if the stored
// row is still at expectedVersion. Otherwise it returns domain.ErrStaleVersion.
func (r *ItemRepository) UpdateStock(ctx context.Context, item *domain.InventoryItem, expectedVersion int64) error {
	query := `
		UPDATE inventory_items
		SET current_stock_base_units = $1, earliest_expiry = $2, version = $3, updated_at = $4
		WHERE id = $5 AND version = $6 AND deleted_at IS NULL
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		item.CurrentStockBaseUnits, item.EarliestExpiry, item.Version, item.UpdatedAt,
		item.ID, expectedVersion,
	)
	if err != nil {
		return mapError(err, "update stock")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if rows == 0 {
		return domain.ErrStaleVersion
	}
	return nil
}

// UpdateThreshold sets or clears the low-stock threshold and bumps the version
// so an in-flight movement re-reads the item before reconciling alerts.
func (r *ItemRepository) UpdateThreshold(ctx context.Context, id string, threshold *int64, at time.Time) (*domain.InventoryItem, error) {
	if !isUUID(id) {
		return nil, errors.NotFound("item")
	}

	var item domain.InventoryItem
	query := `
		UPDATE inventory_items
		SET low_stock_threshold = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
		RETURNING ` + itemColumns

	err := r.db.Conn(ctx).GetContext(ctx, &item, query, threshold, at, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, mapError(err, "update threshold")
	}
	return &item, nil
}

// SoftDelete marks an item deleted. Its movements stay in place.
func (r *ItemRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if !isUUID(id) {
		return errors.NotFound("item")
	}

	query := `
		UPDATE inventory_items
		SET status = $1, deleted_at = $2, updated_at = $2, version = version + 1
		WHERE id = $3 AND deleted_at IS NULL
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, domain.ItemStatusDeleted, at, id)
	if err != nil {
		return mapError(err, "delete item")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("item")
	}
	return nil
}

// ListIDs returns the IDs of all live items, oldest first. Used by the ledger audit.
func (r *ItemRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.Conn(ctx).SelectContext(ctx, &ids,
		`SELECT id FROM inventory_items WHERE deleted_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, mapError(err, "list items")
	}
	return ids, nil
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// isUUID reports whether id can name a row in a uuid column. Anything else
// cannot exist, so callers answer not found without a round trip.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// mapError converts constraint violations to AppErrors and wraps everything
// else with the operation name. Retryable pq errors stay matchable.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return fmt.Errorf("%s: %w", op, err)
}
