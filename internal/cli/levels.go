package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/packaging"
)

// ParseLevels reads a hierarchy written largest level first, for example
// "Pack/Packs:10,Card/Cards:10,Tablet/Tablets". The plural and the quantity
// to the next level are optional; the base level takes no quantity.
func ParseLevels(s string) (domain.PackagingLevels, error) {
	if strings.TrimSpace(s) == "" {
		return nil, packaging.ErrNoLevels
	}

	entries := strings.Split(s, ",")
	levels := make(domain.PackagingLevels, 0, len(entries))
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		names, qty, hasQty := strings.Cut(entry, ":")

		name, plural, _ := strings.Cut(names, "/")
		level := domain.PackagingLevel{
			LevelID:    strconv.Itoa(i),
			Name:       strings.TrimSpace(name),
			PluralName: strings.TrimSpace(plural),
		}
		if hasQty {
			n, err := strconv.ParseInt(strings.TrimSpace(qty), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("level %q: invalid quantity %q", level.Name, qty)
			}
			level.QuantityToNextLevel = &n
		}
		levels = append(levels, level)
	}

	if problems := packaging.Validate(levels); problems != nil {
		return nil, fmt.Errorf("invalid packaging levels: %v", problems)
	}
	return levels, nil
}

// ParseAmounts reads comma separated per-level amounts, largest level first.
func ParseAmounts(s string) ([]int64, error) {
	fields := strings.Split(s, ",")
	out := make([]int64, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q", f)
		}
		if n < 0 {
			return nil, fmt.Errorf("amount %d must not be negative", n)
		}
		out[i] = n
	}
	return out, nil
}
