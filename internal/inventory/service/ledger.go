package service

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/packaging"
	"github.com/medflow/pharmacy-stock/pkg/actor"
	"github.com/medflow/pharmacy-stock/pkg/config"
	"github.com/medflow/pharmacy-stock/pkg/database"
	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/medflow/pharmacy-stock/pkg/logger"
	"github.com/shopspring/decimal"
)

// LedgerConfig bounds the optimistic retry loop.
type LedgerConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// SyncAlerts reconciles alerts inside the movement transaction.
	SyncAlerts bool
}

// NewLedgerConfig maps the service configuration.
func NewLedgerConfig(ledger config.LedgerConfig, alerts config.AlertsConfig) LedgerConfig {
	return LedgerConfig{
		MaxRetries:      ledger.MaxRetries,
		InitialInterval: ledger.RetryInitialInterval,
		MaxInterval:     ledger.RetryMaxInterval,
		SyncAlerts:      alerts.Mode != config.AlertModeAsync,
	}
}

// MovementRequest describes one add or reduce. Exactly one of Quantity
// (base units) and LevelAmounts (keyed by level ID or unit definition ID)
// is set.
type MovementRequest struct {
	ItemID       string
	Operation    domain.OperationType
	Quantity     int64
	LevelAmounts map[string]int64
	Expiry       *time.Time
	CostPrice    decimal.NullDecimal
	SellingPrice decimal.NullDecimal
	SupplierID   *string
	SupplierName *string
	Performer    *actor.Actor
}

// MovementResult is what a committed movement produced.
type MovementResult struct {
	NewBalance      int64                   `json:"new_balance"`
	PreviousBalance int64                   `json:"previous_balance"`
	MovementID      string                  `json:"movement_id"`
	Movement        *domain.StockMovement   `json:"movement"`
	Alerts          *domain.AlertTransition `json:"alerts,omitempty"`
	Item            *domain.InventoryItem   `json:"-"`
	Attempts        int                     `json:"-"`
}

// Ledger records stock movements. Each movement is one transaction that
// checks the balance, writes the item with a version compare-and-swap,
// appends the entry and, in sync mode, reconciles alerts.
type Ledger struct {
	stores  Stores
	monitor *Monitor
	clock   Clock
	cfg     LedgerConfig
	logger  *logger.Logger
}

// NewLedger creates a stock ledger
func NewLedger(stores Stores, monitor *Monitor, clock Clock, cfg LedgerConfig, log *logger.Logger) *Ledger {
	if clock == nil {
		clock = SystemClock
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Ledger{
		stores:  stores,
		monitor: monitor,
		clock:   clock,
		cfg:     cfg,
		logger:  log.WithComponent("ledger"),
	}
}

// RecordMovement validates and applies req. Version conflicts and
// retryable database failures are retried with exponential backoff;
// when retries run out the caller gets a CONCURRENCY_CONFLICT error.
func (l *Ledger) RecordMovement(ctx context.Context, req MovementRequest) (*MovementResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Performer == nil {
		req.Performer = actor.FromContextOrSystem(ctx)
	}

	var (
		result   *MovementResult
		attempts int
	)
	op := func() error {
		attempts++
		res, err := l.attempt(ctx, req)
		if err == nil {
			result = res
			return nil
		}
		if isConflict(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.cfg.InitialInterval
	policy.MaxInterval = l.cfg.MaxInterval
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		l.logger.Warn().Err(err).
			Str("item_id", req.ItemID).
			Int("attempt", attempts).
			Dur("wait", wait).
			Msg("movement conflicted, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(l.cfg.MaxRetries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if isConflict(err) {
			l.logger.Error().Err(err).Str("item_id", req.ItemID).Int("attempts", attempts).Msg("movement abandoned")
			return nil, errors.ConcurrencyConflict("item", attempts)
		}
		return nil, err
	}

	result.Attempts = attempts
	l.logger.Info().
		Str("item_id", req.ItemID).
		Str("movement_id", result.MovementID).
		Str("operation", string(req.Operation)).
		Int64("quantity", result.Movement.QuantityBaseUnits).
		Int64("balance", result.NewBalance).
		Int("attempts", attempts).
		Msg("movement recorded")
	return result, nil
}

func (l *Ledger) attempt(ctx context.Context, req MovementRequest) (*MovementResult, error) {
	var res *MovementResult

	err := l.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		item, err := l.stores.Items.GetByID(ctx, req.ItemID)
		if err != nil {
			return err
		}

		qty, err := resolveQuantity(item.PackagingLevels, req)
		if err != nil {
			return err
		}

		previous := item.CurrentStockBaseUnits
		if req.Operation == domain.OperationAdd && qty > math.MaxInt64-previous {
			return errors.Validation(map[string]string{"quantity": packaging.ErrOverflow.Error()})
		}
		balance := previous + req.Operation.Delta(qty)
		if balance < 0 {
			return errors.InsufficientStock(previous, qty)
		}

		now := l.clock.Now()
		var expiry *time.Time
		if req.Expiry != nil {
			e := domain.MonthStart(*req.Expiry)
			expiry = &e
			if req.Operation == domain.OperationAdd {
				item.EarliestExpiry = NextWatermark(item.EarliestExpiry, e, now)
			}
		}

		expected := item.Version
		item.CurrentStockBaseUnits = balance
		item.Version = expected + 1
		item.UpdatedAt = now
		if err := l.stores.Items.UpdateStock(ctx, item, expected); err != nil {
			return err
		}

		m := &domain.StockMovement{
			ID:                uuid.New().String(),
			ItemID:            item.ID,
			ItemName:          item.Name,
			OperationType:     req.Operation,
			QuantityBaseUnits: qty,
			ResultingBalance:  balance,
			ItemVersion:       item.Version,
			ExpiryMonth:       expiry,
			CostPrice:         req.CostPrice,
			SellingPrice:      req.SellingPrice,
			SupplierID:        req.SupplierID,
			SupplierName:      req.SupplierName,
			PerformerID:       req.Performer.ID,
			PerformerName:     req.Performer.Name,
			CreatedAt:         now,
		}
		if err := l.stores.Movements.Create(ctx, m); err != nil {
			return err
		}

		res = &MovementResult{
			NewBalance:      balance,
			PreviousBalance: previous,
			MovementID:      m.ID,
			Movement:        m,
			Item:            item,
		}

		if l.cfg.SyncAlerts && l.monitor != nil {
			tr, err := l.monitor.Reconcile(ctx, item)
			if err != nil {
				return err
			}
			res.Alerts = tr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// NextWatermark applies an incoming batch expiry to the earliest-expiry
// watermark. An earlier expiry always wins. A later one only replaces a
// watermark that has already passed. The result is approximate: the true
// minimum over remaining batches is never recomputed.
func NextWatermark(current *time.Time, expiry, now time.Time) *time.Time {
	e := expiry
	switch {
	case current == nil:
		return &e
	case expiry.Before(*current):
		return &e
	case current.Before(now) && expiry.After(*current):
		return &e
	default:
		c := *current
		return &c
	}
}

func validateRequest(req MovementRequest) error {
	problems := make(map[string]string)

	if req.ItemID == "" {
		problems["item_id"] = "this field is required"
	}
	if !req.Operation.Valid() {
		problems["operation_type"] = "must be one of: add, reduce"
	}

	switch {
	case req.Quantity < 0:
		problems["quantity"] = "must be greater than 0"
	case req.Quantity > 0 && len(req.LevelAmounts) > 0:
		problems["quantity"] = "provide either quantity or level_amounts, not both"
	case req.Quantity == 0 && len(req.LevelAmounts) == 0:
		problems["quantity"] = "this field is required"
	}
	for key, amount := range req.LevelAmounts {
		if amount < 0 {
			problems["level_amounts."+key] = "must be zero or greater"
		}
	}

	if len(problems) > 0 {
		return errors.Validation(problems)
	}
	return nil
}

// resolveQuantity returns the movement size in base units.
func resolveQuantity(levels domain.PackagingLevels, req MovementRequest) (int64, error) {
	if req.Quantity > 0 {
		return req.Quantity, nil
	}

	total, err := packaging.ComposeByLevel(levels, req.LevelAmounts)
	if err != nil {
		return 0, errors.Validation(map[string]string{"level_amounts": err.Error()})
	}
	if total <= 0 {
		return 0, errors.Validation(map[string]string{"level_amounts": "at least one level must have a positive amount"})
	}
	return total, nil
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrStaleVersion) || database.IsRetryable(err)
}
