// Package packaging converts between per-level amounts and base-unit totals
// for an item's packaging hierarchy. All arithmetic is exact int64 with
// overflow detection.
package packaging

import (
	"errors"
	"fmt"
	"math"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
)

var (
	ErrNoLevels          = errors.New("packaging hierarchy has no levels")
	ErrUnknownLevel      = errors.New("unknown packaging level")
	ErrInvalidMultiplier = errors.New("packaging level must have a positive quantity to the next level")
	ErrOverflow          = errors.New("quantity exceeds the supported range")
	ErrTooManyAmounts    = errors.New("more amounts than packaging levels")
	ErrNegativeTotal     = errors.New("base unit total must not be negative")
)

// Part is one line of a decomposed quantity.
type Part struct {
	Index  int                   `json:"index"`
	Level  domain.PackagingLevel `json:"level"`
	Amount int64                 `json:"amount"`
}

// effective returns the multiplier a level contributes toward the next level.
// Unset or non-positive values mean the level does not subdivide.
func effective(q *int64) int64 {
	if q == nil || *q <= 0 {
		return 1
	}
	return *q
}

// Multipliers returns, for each level, how many base units one unit of that
// level holds. The base level is always 1.
func Multipliers(levels domain.PackagingLevels) ([]int64, error) {
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}

	out := make([]int64, len(levels))
	out[len(levels)-1] = 1
	for i := len(levels) - 2; i >= 0; i-- {
		m, err := mul(effective(levels[i].QuantityToNextLevel), out[i+1])
		if err != nil {
			return nil, fmt.Errorf("level %q: %w", levels[i].Name, err)
		}
		out[i] = m
	}
	return out, nil
}

// Compose converts positional per-level amounts (index 0 is the largest
// level) to a base-unit total. Missing or non-positive amounts contribute nothing.
func Compose(levels domain.PackagingLevels, amounts []int64) (int64, error) {
	mults, err := Multipliers(levels)
	if err != nil {
		return 0, err
	}
	if len(amounts) > len(levels) {
		return 0, ErrTooManyAmounts
	}

	var total int64
	for i, amount := range amounts {
		if amount <= 0 {
			continue
		}
		part, err := mul(amount, mults[i])
		if err != nil {
			return 0, err
		}
		if total, err = add(total, part); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// ComposeByLevel is Compose with amounts keyed by level ID. A key may also be
// the level's unit definition ID; amounts under two keys for one level are
// summed. Keys matching no level are rejected.
func ComposeByLevel(levels domain.PackagingLevels, amounts map[string]int64) (int64, error) {
	positional := make([]int64, len(levels))
	for key, amount := range amounts {
		idx := levelIndex(levels, key)
		if idx < 0 {
			return 0, fmt.Errorf("%w: %s", ErrUnknownLevel, key)
		}
		if amount <= 0 {
			continue
		}
		sum, err := add(positional[idx], amount)
		if err != nil {
			return 0, err
		}
		positional[idx] = sum
	}
	return Compose(levels, positional)
}

func levelIndex(levels domain.PackagingLevels, key string) int {
	for i, l := range levels {
		if l.LevelID != "" && l.LevelID == key {
			return i
		}
	}
	for i, l := range levels {
		if l.UnitDefinitionID != "" && l.UnitDefinitionID == key {
			return i
		}
	}
	return -1
}

// Decompose breaks a base-unit total into per-level parts for mode.
// Levels whose multiplier is 1 are skipped and fold into the level below.
// The base level takes the remainder; a zero total yields a single zero base part.
func Decompose(levels domain.PackagingLevels, total int64, mode Mode) ([]Part, error) {
	if total < 0 {
		return nil, ErrNegativeTotal
	}
	mults, err := Multipliers(levels)
	if err != nil {
		return nil, err
	}

	baseIdx := len(levels) - 1
	if mode == ModeBaseOnly {
		return []Part{{Index: baseIdx, Level: levels[baseIdx], Amount: total}}, nil
	}

	start := 0
	if mode == ModeSkipOne && len(levels) > 1 {
		start = 1
	}

	var parts []Part
	remaining := total
	for i := start; i < baseIdx; i++ {
		if mults[i] <= 1 {
			continue
		}
		amount := remaining / mults[i]
		if amount > 0 {
			parts = append(parts, Part{Index: i, Level: levels[i], Amount: amount})
			remaining -= amount * mults[i]
		}
	}

	if remaining > 0 || len(parts) == 0 {
		parts = append(parts, Part{Index: baseIdx, Level: levels[baseIdx], Amount: remaining})
	}
	return parts, nil
}

// Amounts returns the positional amounts of parts, suitable for Compose.
func Amounts(levels domain.PackagingLevels, parts []Part) []int64 {
	out := make([]int64, len(levels))
	for _, p := range parts {
		out[p.Index] += p.Amount
	}
	return out
}

// Validate applies the rules for creating an item: at least one level,
// named levels with unique IDs, and a positive quantity to the next level on
// every level except the base. Multipliers must fit in int64.
func Validate(levels domain.PackagingLevels) map[string]string {
	problems := make(map[string]string)
	if len(levels) == 0 {
		problems["packaging_levels"] = ErrNoLevels.Error()
		return problems
	}

	seen := make(map[string]bool)
	for i, l := range levels {
		field := fmt.Sprintf("packaging_levels[%d]", i)
		if l.Name == "" {
			problems[field+".name"] = "this field is required"
		}
		if l.LevelID != "" {
			if seen[l.LevelID] {
				problems[field+".level_id"] = "duplicate level id"
			}
			seen[l.LevelID] = true
		}
		if i < len(levels)-1 && (l.QuantityToNextLevel == nil || *l.QuantityToNextLevel <= 0) {
			problems[field+".quantity_to_next_level"] = "must be greater than 0"
		}
	}

	if len(problems) == 0 {
		if _, err := Multipliers(levels); err != nil {
			problems["packaging_levels"] = err.Error()
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

func mul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxInt64/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

func add(a, b int64) (int64, error) {
	if a > math.MaxInt64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}
