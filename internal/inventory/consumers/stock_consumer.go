// Package consumers drives the threshold monitor from stock-moved events
// when alerts are reconciled asynchronously.
package consumers

import (
	"context"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/medflow/pharmacy-stock/pkg/logger"
	"github.com/medflow/pharmacy-stock/pkg/messaging"
)

// Reconciler runs the threshold monitor for one item.
type Reconciler interface {
	ReconcileItem(ctx context.Context, itemID string) (*domain.AlertTransition, error)
}

// StockEventConsumer consumes stock moved events
type StockEventConsumer struct {
	consumer   *messaging.Consumer
	reconciler Reconciler
	logger     *logger.Logger
}

// NewStockEventConsumer creates a new stock event consumer bound to queue
func NewStockEventConsumer(rmq *messaging.RabbitMQ, queue string, reconciler Reconciler, log *logger.Logger) (*StockEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, queue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, messaging.EventStockMoved); err != nil {
		return nil, err
	}

	c := NewHandler(reconciler, log)
	c.consumer = consumer
	consumer.RegisterHandler(messaging.EventStockMoved, c.HandleStockMoved)

	return c, nil
}

// NewHandler returns a consumer that is not attached to a queue. Its
// HandleStockMoved can be driven directly.
func NewHandler(reconciler Reconciler, log *logger.Logger) *StockEventConsumer {
	return &StockEventConsumer{
		reconciler: reconciler,
		logger:     log.WithComponent("stock_consumer"),
	}
}

// Start starts consuming messages
func (c *StockEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// HandleStockMoved reconciles the moved item's alerts. Reconciling reads
// the item's current state, so redelivered or reordered events converge on
// the same alerts.
func (c *StockEventConsumer) HandleStockMoved(ctx context.Context, event *messaging.Event) error {
	var data messaging.StockMovedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	tr, err := c.reconciler.ReconcileItem(ctx, data.ItemID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			c.logger.Debug().Str("item_id", data.ItemID).Msg("item gone, skipping alert reconcile")
			return nil
		}
		return err
	}

	c.logger.Debug().
		Str("item_id", data.ItemID).
		Str("movement_id", data.MovementID).
		Bool("changed", !tr.Empty()).
		Msg("received stock moved event")
	return nil
}
