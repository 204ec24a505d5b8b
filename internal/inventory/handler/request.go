package handler

import (
	"strings"
	"time"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/medflow/pharmacy-stock/pkg/errors"
	"github.com/shopspring/decimal"
)

// PackagingLevelRequest is one level of a new item's hierarchy. Name may be
// omitted when a unit definition is referenced.
type PackagingLevelRequest struct {
	LevelID             string `json:"level_id,omitempty" validate:"omitempty,max=64"`
	UnitDefinitionID    string `json:"unit_definition_id,omitempty" validate:"omitempty,uuid"`
	Name                string `json:"name,omitempty" validate:"required_without=UnitDefinitionID,max=100"`
	PluralName          string `json:"plural_name,omitempty" validate:"max=100"`
	QuantityToNextLevel *int64 `json:"quantity_to_next_level,omitempty" validate:"omitempty,gt=0"`
}

// CreateItemRequest is the body of POST /items
type CreateItemRequest struct {
	Name              string                  `json:"name" validate:"required,max=255"`
	CategoryID        *string                 `json:"category_id,omitempty"`
	CategoryName      *string                 `json:"category_name,omitempty"`
	PackagingLevels   []PackagingLevelRequest `json:"packaging_levels" validate:"required,min=1,dive"`
	LowStockThreshold *int64                  `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
	CanBeSold         *bool                   `json:"can_be_sold,omitempty"`
}

func (r CreateItemRequest) item() *domain.InventoryItem {
	item := &domain.InventoryItem{
		Name:              strings.TrimSpace(r.Name),
		CategoryID:        r.CategoryID,
		CategoryName:      r.CategoryName,
		LowStockThreshold: r.LowStockThreshold,
		CanBeSold:         true,
	}
	if r.CanBeSold != nil {
		item.CanBeSold = *r.CanBeSold
	}
	for _, l := range r.PackagingLevels {
		item.PackagingLevels = append(item.PackagingLevels, domain.PackagingLevel{
			LevelID:             l.LevelID,
			UnitDefinitionID:    l.UnitDefinitionID,
			Name:                strings.TrimSpace(l.Name),
			PluralName:          strings.TrimSpace(l.PluralName),
			QuantityToNextLevel: l.QuantityToNextLevel,
		})
	}
	return item
}

// ThresholdRequest is the body of PUT /items/{id}/threshold. A null
// threshold disables low-stock alerts.
type ThresholdRequest struct {
	LowStockThreshold *int64 `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

// StockRequest is the body of the add and reduce endpoints. Set either
// quantity in base units or level_amounts keyed by level or unit ID.
type StockRequest struct {
	Quantity     int64               `json:"quantity,omitempty" validate:"gte=0"`
	LevelAmounts map[string]int64    `json:"level_amounts,omitempty" validate:"omitempty,dive,gte=0"`
	ExpiryMonth  string              `json:"expiry_month,omitempty"`
	CostPrice    decimal.NullDecimal `json:"cost_price"`
	SellingPrice decimal.NullDecimal `json:"selling_price"`
	SupplierID   *string             `json:"supplier_id,omitempty" validate:"omitempty,uuid"`
	SupplierName *string             `json:"supplier_name,omitempty"`
}

var expiryLayouts = []string{"2006-01", "2006-01-02", time.RFC3339}

func (r StockRequest) input(itemID string) (service.StockInput, error) {
	in := service.StockInput{
		ItemID:       itemID,
		Quantity:     r.Quantity,
		LevelAmounts: r.LevelAmounts,
		CostPrice:    r.CostPrice,
		SellingPrice: r.SellingPrice,
		SupplierID:   r.SupplierID,
		SupplierName: r.SupplierName,
	}

	problems := make(map[string]string)
	if r.ExpiryMonth != "" {
		expiry, ok := parseExpiry(r.ExpiryMonth)
		if !ok {
			problems["expiry_month"] = "must be YYYY-MM or YYYY-MM-DD"
		} else {
			in.Expiry = &expiry
		}
	}
	if r.CostPrice.Valid && r.CostPrice.Decimal.IsNegative() {
		problems["cost_price"] = "must be 0 or greater"
	}
	if r.SellingPrice.Valid && r.SellingPrice.Decimal.IsNegative() {
		problems["selling_price"] = "must be 0 or greater"
	}
	if len(problems) > 0 {
		return in, errors.Validation(problems)
	}
	return in, nil
}

func parseExpiry(s string) (time.Time, bool) {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
