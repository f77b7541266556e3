// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package board

import (
	"fmt"

	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
)

// Style selects how a button reacts to press and release
type Style int

const (
	StyleMomentary Style = iota + 1 // level follows the button
	StyleLatching                   // stays down while the board latch is enabled
	StyleDoor                       // each activation toggles open/closed
)

// String returns the style name
func (s Style) String() string {
	switch s {
	case StyleMomentary:
		return "momentary"
	case StyleLatching:
		return "latching"
	case StyleDoor:
		return "door"
	default:
		return "unknown"
	}
}

// Button is an input device on the board. Buttons are immutable.
type Button struct {
	name   string
	pin    int
	hasPin bool
	style  Style
	down   string
	up     string
}

// NewPinButton creates a button wired to a GPIOD input pin
func NewPinButton(name string, pin int, style Style, down, up string) Button {
	return Button{name: name, pin: pin, hasPin: true, style: style, down: down, up: up}
}

// NewCommandButton creates a momentary button that only issues host
// commands (reset, halt) and has no pin
func NewCommandButton(name, down, up string) Button {
	return Button{name: name, style: StyleMomentary, down: down, up: up}
}

// Name returns the button name
func (b Button) Name() string { return b.name }

// Pin returns the GPIOD pin and whether the button has one
func (b Button) Pin() (int, bool) { return b.pin, b.hasPin }

// Style returns the button behaviour
func (b Button) Style() Style { return b.style }

// Down returns the command issued on press (may be empty)
func (b Button) Down() string { return b.down }

// Up returns the command issued on release (may be empty)
func (b Button) Up() string { return b.up }

// IsReset reports whether releasing the button resets the target
func (b Button) IsReset() bool { return b.up == wmsproto.CmdReset }

func (b Button) validate() error {
	if b.name == "" {
		return fmt.Errorf("button without name")
	}
	switch b.style {
	case StyleMomentary:
	case StyleLatching, StyleDoor:
		if !b.hasPin {
			return fmt.Errorf("%s button %q needs a pin", b.style, b.name)
		}
	default:
		return fmt.Errorf("button %q has invalid style %d", b.name, b.style)
	}
	if b.hasPin && (b.pin < 0 || b.pin >= PinCount) {
		return fmt.Errorf("button %q pin %d out of range", b.name, b.pin)
	}
	return nil
}

// DefaultButtons returns the WMS board inputs
func DefaultButtons() []Button {
	pin := func(name string, p int, style Style) Button {
		return NewPinButton(name, p, style, wmsproto.PinSetCommand(p), wmsproto.PinClearCommand(p))
	}
	return []Button{
		NewCommandButton("reset", "", wmsproto.CmdReset),
		pin("door", PinDoor, StyleDoor),
		pin("PS1", PinPS1, StyleLatching),
		pin("PS2", PinPS2, StyleLatching),
		pin("PS3", PinPS3, StyleLatching),
		pin("cancel", PinCancel, StyleLatching),
		pin("accept", PinAccept, StyleLatching),
		pin("motor", PinMotorSensor, StyleMomentary),
	}
}
