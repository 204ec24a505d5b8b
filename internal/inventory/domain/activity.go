package domain

import "github.com/medflow/pharmacy-stock/pkg/actor"

// Activity types reported after each committed movement.
const (
	ActivityAddStock    = "add_stock"
	ActivityReduceStock = "reduce_stock"
)

// Activity is the record handed to the activity log after a movement.
type Activity struct {
	Type        string         `json:"type"`
	ItemID      string         `json:"item_id"`
	Performer   actor.Actor    `json:"performer"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// AlertTransition lists what one monitor run changed.
type AlertTransition struct {
	ItemID   string         `json:"item_id"`
	Raised   []*AlertRecord `json:"raised,omitempty"`
	Updated  []*AlertRecord `json:"updated,omitempty"`
	Resolved []*AlertRecord `json:"resolved,omitempty"`
}

// Empty reports whether nothing changed.
func (t *AlertTransition) Empty() bool {
	return t == nil || len(t.Raised)+len(t.Updated)+len(t.Resolved) == 0
}
