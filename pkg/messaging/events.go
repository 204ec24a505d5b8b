package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventStockMoved       = "inventory.stock.moved"
	EventActivityRecorded = "inventory.activity.recorded"
	EventAlertRaised      = "inventory.alert.raised"
	EventAlertUpdated     = "inventory.alert.updated"
	EventAlertResolved    = "inventory.alert.resolved"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeDeadLetter      = "dlx.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// StockMovedEvent is published after a movement has been committed.
type StockMovedEvent struct {
	MovementID        string `json:"movement_id"`
	ItemID            string `json:"item_id"`
	OperationType     string `json:"operation_type"`
	QuantityBaseUnits int64  `json:"quantity_base_units"`
	PreviousBalance   int64  `json:"previous_balance"`
	NewBalance        int64  `json:"new_balance"`
	PerformedBy       string `json:"performed_by"`
}

// ActivityRecordedEvent carries one activity-log record for the
// activity collaborator that stores and renders them.
type ActivityRecordedEvent struct {
	Type        string         `json:"type"`
	ItemID      string         `json:"item_id"`
	PerformerID string         `json:"performer_id"`
	Performer   string         `json:"performer"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// AlertChangedEvent is published when a threshold alert is raised,
// refreshed in place, or resolved.
type AlertChangedEvent struct {
	AlertID      string `json:"alert_id"`
	ItemID       string `json:"item_id"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	CurrentStock int64  `json:"current_stock"`
	Threshold    *int64 `json:"threshold,omitempty"`
}
