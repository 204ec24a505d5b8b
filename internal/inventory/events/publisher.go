// Package events reports committed inventory changes over RabbitMQ.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/pkg/logger"
	"github.com/medflow/pharmacy-stock/pkg/messaging"
)

// Source is the event source name stamped on every message.
const Source = "inventory-service"

// InventoryEventPublisher publishes inventory-related events. It is both the
// activity recorder and the event publisher of the stock service.
type InventoryEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher declares the inventory exchange and returns a
// publisher bound to it.
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, Source, log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps an existing publisher.
func NewWithPublisher(publisher messaging.EventPublisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log.WithComponent("events"),
	}
}

// RecordActivity publishes an activity-log record
func (p *InventoryEventPublisher) RecordActivity(ctx context.Context, a domain.Activity) error {
	data := messaging.ActivityRecordedEvent{
		Type:        a.Type,
		ItemID:      a.ItemID,
		PerformerID: a.Performer.ID,
		Performer:   a.Performer.Name,
		Description: a.Description,
		Metadata:    a.Metadata,
	}
	if err := p.publisher.Publish(ctx, messaging.EventActivityRecorded, data); err != nil {
		return fmt.Errorf("publish activity for item %s: %w", a.ItemID, err)
	}
	return nil
}

// PublishStockMoved publishes a stock moved event
func (p *InventoryEventPublisher) PublishStockMoved(ctx context.Context, m *domain.StockMovement) error {
	data := messaging.StockMovedEvent{
		MovementID:        m.ID,
		ItemID:            m.ItemID,
		OperationType:     string(m.OperationType),
		QuantityBaseUnits: m.QuantityBaseUnits,
		PreviousBalance:   m.PreviousBalance(),
		NewBalance:        m.ResultingBalance,
		PerformedBy:       m.PerformerID,
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockMoved, data); err != nil {
		return fmt.Errorf("publish stock moved %s: %w", m.ID, err)
	}
	return nil
}

// PublishAlertTransition publishes one event per changed alert. Every alert
// is attempted; the failures are joined.
func (p *InventoryEventPublisher) PublishAlertTransition(ctx context.Context, t *domain.AlertTransition) error {
	if t.Empty() {
		return nil
	}

	var errs []error
	publish := func(eventType string, alerts []*domain.AlertRecord) {
		for _, a := range alerts {
			if err := p.publisher.Publish(ctx, eventType, alertEvent(a)); err != nil {
				errs = append(errs, fmt.Errorf("publish %s for alert %s: %w", eventType, a.ID, err))
			}
		}
	}
	publish(messaging.EventAlertRaised, t.Raised)
	publish(messaging.EventAlertUpdated, t.Updated)
	publish(messaging.EventAlertResolved, t.Resolved)

	return errors.Join(errs...)
}

func alertEvent(a *domain.AlertRecord) messaging.AlertChangedEvent {
	return messaging.AlertChangedEvent{
		AlertID:      a.ID,
		ItemID:       a.ItemID,
		Kind:         string(a.Kind),
		Status:       string(a.Status),
		Priority:     string(a.Priority),
		Title:        a.Title,
		Description:  a.Description,
		CurrentStock: a.CurrentStock,
		Threshold:    a.Threshold,
	}
}
