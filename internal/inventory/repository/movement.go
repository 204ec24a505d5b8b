package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/pkg/database"
)

const movementColumns = `id, item_id, item_name, operation_type, quantity_base_units, resulting_balance,
	item_version, expiry_month, cost_price, selling_price, supplier_id, supplier_name,
	performer_id, performer_name, created_at`

// MovementRepository appends and reads stock ledger entries
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Create appends a ledger entry. Entries are never updated afterwards.
func (r *MovementRepository) Create(ctx context.Context, m *domain.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		m.ID, m.ItemID, m.ItemName, m.OperationType, m.QuantityBaseUnits, m.ResultingBalance,
		m.ItemVersion, m.ExpiryMonth, m.CostPrice, m.SellingPrice, m.SupplierID, m.SupplierName,
		m.PerformerID, m.PerformerName, createdAt(m.CreatedAt),
	)
	return mapError(err, "create movement")
}

// List returns one page of movements and the total matching count.
func (r *MovementRepository) List(ctx context.Context, f domain.MovementFilter) ([]*domain.StockMovement, int64, error) {
	var w whereBuilder
	if f.ItemID != "" {
		if !isUUID(f.ItemID) {
			return []*domain.StockMovement{}, 0, nil
		}
		w.add("item_id = ?", f.ItemID)
	}
	if f.OperationType != "" {
		w.add("operation_type = ?", f.OperationType)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := containsPattern(term)
		w.add(`(item_name ILIKE ? ESCAPE '\' OR performer_name ILIKE ? ESCAPE '\')`, pattern, pattern)
	}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_movements`+w.sql(), w.args...); err != nil {
		return nil, 0, mapError(err, "count movements")
	}

	dir := "DESC"
	if f.Sort == domain.SortAsc {
		dir = "ASC"
	}
	query := `SELECT ` + movementColumns + ` FROM stock_movements` + w.sql() +
		` ORDER BY created_at ` + dir + `, item_version ` + dir + w.page(f.PerPage, f.Offset())

	movements := []*domain.StockMovement{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &movements, query, w.args...); err != nil {
		return nil, 0, mapError(err, "list movements")
	}
	return movements, total, nil
}

// ListByItem returns an item's full ledger in the order it was written.
func (r *MovementRepository) ListByItem(ctx context.Context, itemID string) ([]*domain.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE item_id = $1 ORDER BY item_version ASC`

	movements := []*domain.StockMovement{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &movements, query, itemID); err != nil {
		return nil, mapError(err, "list item movements")
	}
	return movements, nil
}
