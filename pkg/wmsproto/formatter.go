// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wmsproto

import (
	"fmt"
	"time"
)

// FormatEvent formats an event into a single human-readable line
func FormatEvent(e Event) string {
	switch e.Kind {
	case EventPin:
		level := "LOW"
		if e.Level != 0 {
			level = "HIGH"
		}
		return fmt.Sprintf("PIN_%s pin=%d (%s)", level, e.Pin, FormatPinName(e.Pin))
	case EventRegister:
		return fmt.Sprintf("REGISTER %s=0x%08X", e.Register, e.Value)
	case EventEnabled:
		state := "disabled"
		if e.Enabled {
			state = "enabled"
		}
		return fmt.Sprintf("ENABLED gpiod=%s (ahb1enr=0x%08X)", state, e.Value)
	case EventWarning:
		return fmt.Sprintf("WARNING %s", e.Message)
	default:
		return fmt.Sprintf("UNKNOWN kind=%d", e.Kind)
	}
}

// FormatTimestamped prefixes a formatted event with the display time
func FormatTimestamped(t time.Time, e Event) string {
	return fmt.Sprintf("[%s] %s", t.Format("15:04:05.000"), FormatEvent(e))
}

// FormatPinName returns the board function wired to a GPIOD pin
func FormatPinName(pin int) string {
	switch pin {
	case 0:
		return "door"
	case 1, 2, 3:
		return fmt.Sprintf("PS%d", pin)
	case 4:
		return "cancel"
	case 5:
		return "accept"
	case 6:
		return "motor sensor"
	case 8, 9, 10, 11:
		return fmt.Sprintf("led %c", 'A'+rune(pin-8))
	case 12:
		return "motor"
	case 13:
		return "direction"
	case 14:
		return "latch"
	default:
		return "unused"
	}
}
