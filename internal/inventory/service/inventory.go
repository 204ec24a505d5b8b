package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-stock/internal/inventory/display"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/packaging"
	"github.com/medflow/pharmacy-stock/pkg/actor"
	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/medflow/pharmacy-stock/pkg/logger"
	"github.com/shopspring/decimal"
)

// Listing page sizes
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// StockService is the inventory core consumed by the HTTP and CLI layers.
type StockService struct {
	stores   Stores
	ledger   *Ledger
	monitor  *Monitor
	auditor  *LedgerAuditor
	activity ActivityRecorder
	events   EventPublisher
	clock    Clock
	logger   *logger.Logger
}

// NewStockService creates a new stock service. activity and events may be
// nil, in which case nothing is reported after a commit.
func NewStockService(
	stores Stores,
	ledger *Ledger,
	monitor *Monitor,
	auditor *LedgerAuditor,
	activity ActivityRecorder,
	events EventPublisher,
	clock Clock,
	log *logger.Logger,
) *StockService {
	if activity == nil {
		activity = nopActivity{}
	}
	if events == nil {
		events = nopEvents{}
	}
	if clock == nil {
		clock = SystemClock
	}
	return &StockService{
		stores:   stores,
		ledger:   ledger,
		monitor:  monitor,
		auditor:  auditor,
		activity: activity,
		events:   events,
		clock:    clock,
		logger:   log.WithComponent("stock_service"),
	}
}

// StockInput is an add or reduce request. Set either Quantity in base units
// or LevelAmounts keyed by level ID or unit definition ID.
type StockInput struct {
	ItemID       string
	Quantity     int64
	LevelAmounts map[string]int64
	Expiry       *time.Time
	CostPrice    decimal.NullDecimal
	SellingPrice decimal.NullDecimal
	SupplierID   *string
	SupplierName *string
	Performer    *actor.Actor
}

func (in StockInput) request(op domain.OperationType) MovementRequest {
	return MovementRequest{
		ItemID:       in.ItemID,
		Operation:    op,
		Quantity:     in.Quantity,
		LevelAmounts: in.LevelAmounts,
		Expiry:       in.Expiry,
		CostPrice:    in.CostPrice,
		SellingPrice: in.SellingPrice,
		SupplierID:   in.SupplierID,
		SupplierName: in.SupplierName,
		Performer:    in.Performer,
	}
}

// AddStock records an incoming delivery.
func (s *StockService) AddStock(ctx context.Context, in StockInput) (*MovementResult, error) {
	return s.move(ctx, in.request(domain.OperationAdd))
}

// ReduceStock records stock leaving the shelf. It fails with
// INSUFFICIENT_STOCK rather than going below zero.
func (s *StockService) ReduceStock(ctx context.Context, in StockInput) (*MovementResult, error) {
	return s.move(ctx, in.request(domain.OperationReduce))
}

func (s *StockService) move(ctx context.Context, req MovementRequest) (*MovementResult, error) {
	if req.Performer == nil {
		req.Performer = actor.FromContextOrSystem(ctx)
	}

	res, err := s.ledger.RecordMovement(ctx, req)
	if err != nil {
		return nil, err
	}

	s.afterMovement(ctx, req, res)
	return res, nil
}

// afterMovement reports a committed movement. Failures are only logged.
func (s *StockService) afterMovement(ctx context.Context, req MovementRequest, res *MovementResult) {
	log := s.logger.WithItemID(res.Item.ID)

	a := movementActivity(req, res)
	if err := s.activity.RecordActivity(ctx, a); err != nil {
		log.Error().Err(err).Str("movement_id", res.MovementID).Msg("failed to record activity")
	}
	if err := s.events.PublishStockMoved(ctx, res.Movement); err != nil {
		log.Error().Err(err).Str("movement_id", res.MovementID).Msg("failed to publish stock moved event")
	}
	s.publishTransition(ctx, res.Alerts)
}

func (s *StockService) publishTransition(ctx context.Context, tr *domain.AlertTransition) {
	if tr.Empty() {
		return
	}
	if err := s.events.PublishAlertTransition(ctx, tr); err != nil {
		s.logger.Error().Err(err).Str("item_id", tr.ItemID).Msg("failed to publish alert events")
	}
}

func movementActivity(req MovementRequest, res *MovementResult) domain.Activity {
	m := res.Movement
	qty := display.FormatQuantity(res.Item.PackagingLevels, m.QuantityBaseUnits)

	a := domain.Activity{
		ItemID:    m.ItemID,
		Performer: *req.Performer,
		Metadata: map[string]any{
			"quantityInBaseUnits": m.QuantityBaseUnits,
			"previousStock":       res.PreviousBalance,
			"newStock":            res.NewBalance,
			"expiryMonth":         nil,
			"costPrice":           nil,
			"sellingPrice":        nil,
			"movementId":          m.ID,
		},
	}
	if m.ExpiryMonth != nil {
		a.Metadata["expiryMonth"] = m.ExpiryMonth.Format("2006-01")
	}
	if m.CostPrice.Valid {
		a.Metadata["costPrice"] = m.CostPrice.Decimal.String()
	}
	if m.SellingPrice.Valid {
		a.Metadata["sellingPrice"] = m.SellingPrice.Decimal.String()
	}

	switch m.OperationType {
	case domain.OperationAdd:
		a.Type = domain.ActivityAddStock
		a.Description = fmt.Sprintf("Added %s of %s", qty, m.ItemName)
	default:
		a.Type = domain.ActivityReduceStock
		a.Description = fmt.Sprintf("Reduced %s of %s", qty, m.ItemName)
	}
	return a
}

// MovementPage is one page of ledger entries.
type MovementPage struct {
	Entries []*domain.StockMovement `json:"entries"`
	Total   int64                   `json:"total"`
	Page    int                     `json:"page"`
	PerPage int                     `json:"per_page"`
}

// ListMovements pages through the ledger, newest first unless Sort is asc.
func (s *StockService) ListMovements(ctx context.Context, f domain.MovementFilter) (*MovementPage, error) {
	problems := make(map[string]string)
	switch f.Sort {
	case "":
		f.Sort = domain.SortDesc
	case domain.SortAsc, domain.SortDesc:
	default:
		problems["sort"] = "must be one of: asc, desc"
	}
	if f.OperationType != "" && !f.OperationType.Valid() {
		problems["operation_type"] = "must be one of: add, reduce"
	}
	if len(problems) > 0 {
		return nil, errors.Validation(problems)
	}
	f.Page, f.PerPage = normalizePage(f.Page, f.PerPage)

	entries, total, err := s.stores.Movements.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.StockMovement{}
	}
	return &MovementPage{Entries: entries, Total: total, Page: f.Page, PerPage: f.PerPage}, nil
}

// FormatBalance renders the item's balance in the given display mode.
func (s *StockService) FormatBalance(item *domain.InventoryItem, mode packaging.Mode) string {
	return display.FormatItem(item, mode)
}

// Balance loads the item and renders its balance.
func (s *StockService) Balance(ctx context.Context, itemID string, mode packaging.Mode) (*display.Balance, error) {
	item, err := s.stores.Items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	b := display.Render(item, mode)
	return &b, nil
}

// Item operations

// CreateItem validates the packaging hierarchy and stores a new item with a
// zero balance. Level names left blank are copied from the unit catalog.
func (s *StockService) CreateItem(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error) {
	if err := s.fillLevelNames(ctx, item.PackagingLevels); err != nil {
		return nil, err
	}

	problems := packaging.Validate(item.PackagingLevels)
	if problems == nil {
		problems = make(map[string]string)
	}
	if item.Name == "" {
		problems["name"] = "this field is required"
	}
	if item.LowStockThreshold != nil && *item.LowStockThreshold < 0 {
		problems["low_stock_threshold"] = "must be zero or greater"
	}
	if len(problems) > 0 {
		return nil, errors.Validation(problems)
	}

	for i := range item.PackagingLevels {
		if item.PackagingLevels[i].LevelID == "" {
			item.PackagingLevels[i].LevelID = uuid.New().String()
		}
	}
	now := s.clock.Now()
	item.ID = uuid.New().String()
	item.CurrentStockBaseUnits = 0
	item.EarliestExpiry = nil
	item.Status = domain.ItemStatusActive
	item.Version = 1
	item.CreatedAt = now
	item.UpdatedAt = now
	item.DeletedAt = nil

	var tr *domain.AlertTransition
	err := s.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Items.Create(ctx, item); err != nil {
			return err
		}
		var err error
		tr, err = s.monitor.Reconcile(ctx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("item_id", item.ID).Str("name", item.Name).Int("levels", len(item.PackagingLevels)).Msg("item created")
	s.publishTransition(ctx, tr)
	return item, nil
}

func (s *StockService) fillLevelNames(ctx context.Context, levels domain.PackagingLevels) error {
	needed := false
	for _, l := range levels {
		if l.Name == "" && l.UnitDefinitionID != "" {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	units, err := s.stores.Units.List(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]*domain.UnitDefinition, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}
	for i := range levels {
		u, ok := byID[levels[i].UnitDefinitionID]
		if !ok || levels[i].Name != "" {
			continue
		}
		levels[i].Name = u.Name
		if levels[i].PluralName == "" {
			levels[i].PluralName = u.PluralName
		}
	}
	return nil
}

// GetItem gets an item by ID
func (s *StockService) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	return s.stores.Items.GetByID(ctx, id)
}

// ListItemIDs lists the IDs of all items that are not deleted.
func (s *StockService) ListItemIDs(ctx context.Context) ([]string, error) {
	return s.stores.Items.ListIDs(ctx)
}

// UpdateThreshold sets or clears the low-stock threshold and reconciles alerts.
func (s *StockService) UpdateThreshold(ctx context.Context, id string, threshold *int64) (*domain.InventoryItem, error) {
	if threshold != nil && *threshold < 0 {
		return nil, errors.Validation(map[string]string{"low_stock_threshold": "must be zero or greater"})
	}

	var (
		item *domain.InventoryItem
		tr   *domain.AlertTransition
	)
	err := s.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.stores.Items.UpdateThreshold(ctx, id, threshold, s.clock.Now())
		if err != nil {
			return err
		}
		tr, err = s.monitor.Reconcile(ctx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishTransition(ctx, tr)
	return item, nil
}

// DeleteItem soft-deletes an item and resolves its active alerts.
func (s *StockService) DeleteItem(ctx context.Context, id string) error {
	var tr *domain.AlertTransition
	err := s.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Items.SoftDelete(ctx, id, s.clock.Now()); err != nil {
			return err
		}
		var err error
		tr, err = s.monitor.ResolveAll(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("item_id", id).Msg("item deleted")
	s.publishTransition(ctx, tr)
	return nil
}

// ReconcileItem runs the threshold monitor against the item's stored state.
// It backs the asynchronous alert consumer and the periodic sweep. The item
// stays locked while alerts are compared, so a concurrent movement either
// lands first and is seen, or waits and reconciles after.
func (s *StockService) ReconcileItem(ctx context.Context, id string) (*domain.AlertTransition, error) {
	var tr *domain.AlertTransition
	err := s.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		item, err := s.stores.Items.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		tr, err = s.monitor.Reconcile(ctx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishTransition(ctx, tr)
	return tr, nil
}

// VerifyLedger replays the item's ledger against its cached balance.
func (s *StockService) VerifyLedger(ctx context.Context, id string) (*LedgerReport, error) {
	return s.auditor.Verify(ctx, id)
}

// Alert operations

// AlertPage is one page of alerts.
type AlertPage struct {
	Alerts  []*domain.AlertRecord `json:"alerts"`
	Total   int64                 `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

// ListAlerts pages through alerts, most recently updated first.
func (s *StockService) ListAlerts(ctx context.Context, f domain.AlertFilter) (*AlertPage, error) {
	problems := make(map[string]string)
	switch f.Status {
	case "", domain.AlertStatusActive, domain.AlertStatusResolved:
	default:
		problems["status"] = "must be one of: active, resolved"
	}
	switch f.Kind {
	case "", domain.AlertOutOfStock, domain.AlertLowStock:
	default:
		problems["kind"] = "must be one of: out_of_stock, low_stock"
	}
	if len(problems) > 0 {
		return nil, errors.Validation(problems)
	}
	f.Page, f.PerPage = normalizePage(f.Page, f.PerPage)

	alerts, total, err := s.stores.Alerts.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []*domain.AlertRecord{}
	}
	return &AlertPage{Alerts: alerts, Total: total, Page: f.Page, PerPage: f.PerPage}, nil
}

// ListUnits lists the unit catalog in display order.
func (s *StockService) ListUnits(ctx context.Context) ([]*domain.UnitDefinition, error) {
	return s.stores.Units.List(ctx)
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}
