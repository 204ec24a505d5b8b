package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Item statuses
const (
	ItemStatusActive   = "active"
	ItemStatusInactive = "inactive"
	ItemStatusDeleted  = "deleted"
)

// PackagingLevel is one tier of an item's unit hierarchy.
// QuantityToNextLevel is how many units of the next, smaller level one unit
// of this level holds. It is ignored on the last (base) level.
type PackagingLevel struct {
	LevelID             string `json:"level_id"`
	UnitDefinitionID    string `json:"unit_definition_id"`
	Name                string `json:"name"`
	PluralName          string `json:"plural_name"`
	QuantityToNextLevel *int64 `json:"quantity_to_next_level,omitempty"`
}

// DisplayName returns the singular name for amount 1 and the plural otherwise,
// falling back to the singular when no plural is configured.
func (l PackagingLevel) DisplayName(amount int64) string {
	if amount == 1 || strings.TrimSpace(l.PluralName) == "" {
		return l.Name
	}
	return l.PluralName
}

// PackagingLevels is ordered largest to smallest. It is stored as a JSONB column.
type PackagingLevels []PackagingLevel

// Base returns the base-unit level and false when there are no levels.
func (ls PackagingLevels) Base() (PackagingLevel, bool) {
	if len(ls) == 0 {
		return PackagingLevel{}, false
	}
	return ls[len(ls)-1], true
}

// Value implements driver.Valuer
func (ls PackagingLevels) Value() (driver.Value, error) {
	if ls == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(ls)
}

// Scan implements sql.Scanner
func (ls *PackagingLevels) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*ls = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("packaging levels: unsupported scan type %T", src)
	}
	return json.Unmarshal(data, ls)
}

// InventoryItem owns its packaging hierarchy and a cached balance in base
// units. The balance is only changed by the stock ledger.
type InventoryItem struct {
	ID                    string          `db:"id" json:"id"`
	Name                  string          `db:"name" json:"name"`
	CategoryID            *string         `db:"category_id" json:"category_id,omitempty"`
	CategoryName          *string         `db:"category_name" json:"category_name,omitempty"`
	PackagingLevels       PackagingLevels `db:"packaging_levels" json:"packaging_levels"`
	CurrentStockBaseUnits int64           `db:"current_stock_base_units" json:"current_stock_base_units"`
	EarliestExpiry        *time.Time      `db:"earliest_expiry" json:"earliest_expiry,omitempty"`
	LowStockThreshold     *int64          `db:"low_stock_threshold" json:"low_stock_threshold,omitempty"`
	CanBeSold             bool            `db:"can_be_sold" json:"can_be_sold"`
	Status                string          `db:"status" json:"status"`
	Version               int64           `db:"version" json:"version"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt             *time.Time      `db:"deleted_at" json:"-"`
}

// IsDeleted reports whether the item has been soft-deleted.
func (i *InventoryItem) IsDeleted() bool {
	return i.Status == ItemStatusDeleted || i.DeletedAt != nil
}

// Clone returns a deep copy safe to mutate.
func (i *InventoryItem) Clone() *InventoryItem {
	c := *i
	if i.PackagingLevels != nil {
		c.PackagingLevels = make(PackagingLevels, len(i.PackagingLevels))
		for idx, l := range i.PackagingLevels {
			if l.QuantityToNextLevel != nil {
				q := *l.QuantityToNextLevel
				l.QuantityToNextLevel = &q
			}
			c.PackagingLevels[idx] = l
		}
	}
	c.CategoryID = cloneString(i.CategoryID)
	c.CategoryName = cloneString(i.CategoryName)
	c.EarliestExpiry = cloneTime(i.EarliestExpiry)
	c.LowStockThreshold = cloneInt64(i.LowStockThreshold)
	c.DeletedAt = cloneTime(i.DeletedAt)
	return &c
}

// MonthStart normalizes t to the first day of its month at midnight UTC.
// Stock expiry is tracked at month granularity.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt64(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
