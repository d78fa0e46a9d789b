package dispatch

import (
	"fmt"
	"strings"
)

// Mode selects which item service operation a resolved target is sent to.
type Mode string

const (
	ModeClaim   Mode = "claim"
	ModeCollect Mode = "collect"
)

// ParseMode validates a mode string from config, CLI, or API input.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeClaim:
		return ModeClaim, nil
	case ModeCollect:
		return ModeCollect, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected claim or collect)", value)
	}
}
