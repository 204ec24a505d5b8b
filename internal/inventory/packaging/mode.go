package packaging

import "fmt"

// Mode selects how a base-unit total is broken down for display.
type Mode string

const (
	// ModeFull uses every level, largest first.
	ModeFull Mode = "full"
	// ModeSkipOne drops the topmost level and folds it into the next one.
	ModeSkipOne Mode = "skipOne"
	// ModeBaseOnly reports the whole total in base units.
	ModeBaseOnly Mode = "baseOnly"
)

// Modes lists the display modes in toggle order.
var Modes = []Mode{ModeFull, ModeSkipOne, ModeBaseOnly}

// ParseMode accepts a mode name; the empty string means ModeFull.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeFull, nil
	case ModeFull, ModeSkipOne, ModeBaseOnly:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown display mode %q (expected full, skipOne or baseOnly)", s)
}

// Next returns the mode shown after the user toggles: full, skipOne, baseOnly, full...
func (m Mode) Next() Mode {
	switch m {
	case ModeFull:
		return ModeSkipOne
	case ModeSkipOne:
		return ModeBaseOnly
	default:
		return ModeFull
	}
}
