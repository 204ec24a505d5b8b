package service

import (
	"context"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/pkg/logger"
)

// SnapshotMismatch is a ledger entry whose recorded resulting balance
// disagrees with the replayed running balance.
type SnapshotMismatch struct {
	MovementID  string `json:"movement_id" yaml:"movement_id"`
	ItemVersion int64  `json:"item_version" yaml:"item_version"`
	Expected    int64  `json:"expected" yaml:"expected"`
	Recorded    int64  `json:"recorded" yaml:"recorded"`
}

// LedgerReport is the outcome of replaying one item's ledger.
type LedgerReport struct {
	ItemID          string             `json:"item_id" yaml:"item_id"`
	ItemName        string             `json:"item_name" yaml:"item_name"`
	CachedBalance   int64              `json:"cached_balance" yaml:"cached_balance"`
	ReplayedBalance int64              `json:"replayed_balance" yaml:"replayed_balance"`
	Movements       int                `json:"movements" yaml:"movements"`
	Mismatches      []SnapshotMismatch `json:"mismatches,omitempty" yaml:"mismatches,omitempty"`
	Consistent      bool               `json:"consistent" yaml:"consistent"`
}

// LedgerAuditor checks that replaying an item's movements from zero gives
// its cached balance.
type LedgerAuditor struct {
	stores Stores
	logger *logger.Logger
}

// NewLedgerAuditor creates a ledger auditor
func NewLedgerAuditor(stores Stores, log *logger.Logger) *LedgerAuditor {
	return &LedgerAuditor{stores: stores, logger: log.WithComponent("ledger_audit")}
}

// Replay folds movements in ledger order starting from a zero balance.
func Replay(movements []*domain.StockMovement) (int64, []SnapshotMismatch) {
	var (
		balance    int64
		mismatches []SnapshotMismatch
	)
	for _, m := range movements {
		balance += m.OperationType.Delta(m.QuantityBaseUnits)
		if m.ResultingBalance != balance {
			mismatches = append(mismatches, SnapshotMismatch{
				MovementID:  m.ID,
				ItemVersion: m.ItemVersion,
				Expected:    balance,
				Recorded:    m.ResultingBalance,
			})
		}
	}
	return balance, mismatches
}

// Verify replays one item. Only entries written at or before the item version
// that was read are replayed. A movement committed between the two reads is
// left for the next audit.
func (a *LedgerAuditor) Verify(ctx context.Context, itemID string) (*LedgerReport, error) {
	var (
		item      *domain.InventoryItem
		movements []*domain.StockMovement
	)
	err := a.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if item, err = a.stores.Items.GetByID(ctx, itemID); err != nil {
			return err
		}
		movements, err = a.stores.Movements.ListByItem(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	movements = upToVersion(movements, item.Version)

	replayed, mismatches := Replay(movements)
	report := &LedgerReport{
		ItemID:          item.ID,
		ItemName:        item.Name,
		CachedBalance:   item.CurrentStockBaseUnits,
		ReplayedBalance: replayed,
		Movements:       len(movements),
		Mismatches:      mismatches,
		Consistent:      replayed == item.CurrentStockBaseUnits && len(mismatches) == 0,
	}

	if !report.Consistent {
		a.logger.Error().
			Str("item_id", item.ID).
			Int64("cached", report.CachedBalance).
			Int64("replayed", report.ReplayedBalance).
			Int("mismatches", len(mismatches)).
			Msg("ledger does not replay to cached balance")
	}
	return report, nil
}

// upToVersion drops entries newer than version. movements is in ledger order.
func upToVersion(movements []*domain.StockMovement, version int64) []*domain.StockMovement {
	for i, m := range movements {
		if m.ItemVersion > version {
			return movements[:i]
		}
	}
	return movements
}

// VerifyAll replays every item that is not deleted.
func (a *LedgerAuditor) VerifyAll(ctx context.Context) ([]*LedgerReport, error) {
	ids, err := a.stores.Items.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*LedgerReport, 0, len(ids))
	for _, id := range ids {
		r, err := a.Verify(ctx, id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}
