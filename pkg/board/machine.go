// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package board keeps the host's model of the WMS board consistent with the
// simulator.
//
// The Machine owns the board State. It is changed only by classified events
// from the simulator (Apply) and by button presses on behalf of the user
// (Press, Release). The Machine is not safe for concurrent use; it is meant
// to be driven from the host's single polling goroutine.
package board

import (
	"fmt"

	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
	"github.com/rs/zerolog"
)

// Commander receives the commands the machine emits
type Commander interface {
	Issue(cmd string)
}

// Changes is a set of flags describing which parts of the State changed
type Changes uint16

const (
	ChangedPins Changes = 1 << iota
	ChangedLatched
	ChangedLatch
	ChangedSevenSeg
	ChangedMotor
	ChangedEnabled
	ChangedRegisters
	ChangedResync
)

// Has reports whether any of the given flags are set
func (c Changes) Has(flags Changes) bool {
	return c&flags != 0
}

// Machine is the board state machine
type Machine struct {
	buttons   []Button
	byName    map[string]int
	state     State
	out       Commander
	replaying bool
	log       zerolog.Logger
}

// NewMachine creates a machine for the given buttons. Commands are sent to
// out, which may be nil for an offline machine.
func NewMachine(buttons []Button, out Commander, logger *zerolog.Logger) (*Machine, error) {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	m := &Machine{
		buttons: make([]Button, len(buttons)),
		byName:  make(map[string]int, len(buttons)),
		out:     out,
		log:     l.With().Str("component", "board").Logger(),
	}
	copy(m.buttons, buttons)

	pins := make(map[int]string)
	for i, b := range m.buttons {
		if err := b.validate(); err != nil {
			return nil, err
		}
		if _, dup := m.byName[b.name]; dup {
			return nil, fmt.Errorf("duplicate button %q", b.name)
		}
		m.byName[b.name] = i
		if pin, ok := b.Pin(); ok {
			if other, dup := pins[pin]; dup {
				return nil, fmt.Errorf("buttons %q and %q share pin %d", other, b.name, pin)
			}
			pins[pin] = b.name
		}
	}
	return m, nil
}

// Button looks up a button by name
func (m *Machine) Button(name string) (Button, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Button{}, false
	}
	return m.buttons[i], true
}

// Buttons returns the configured buttons
func (m *Machine) Buttons() []Button {
	out := make([]Button, len(m.buttons))
	copy(out, m.buttons)
	return out
}

// State returns a snapshot of the board
func (m *Machine) State() State {
	return m.state
}

// Press handles a button going down
func (m *Machine) Press(b Button) Changes {
	pin, _ := b.Pin()
	var changes Changes

	switch b.style {
	case StyleLatching:
		// Repeated press while latched is ignored
		if m.state.Latch && m.state.IsLatched(pin) {
			return 0
		}
		changes |= m.setLatched(pin, m.state.Latch)
	case StyleDoor:
		// A press on an open door closes it on the following release
		if m.state.IsLatched(pin) {
			return m.setLatched(pin, false)
		}
		changes |= m.setLatched(pin, true)
	}

	changes |= m.setButtonLevel(b, 1)
	m.emit(b.down)
	return changes
}

// Release handles a button going up
func (m *Machine) Release(b Button) Changes {
	pin, _ := b.Pin()

	switch b.style {
	case StyleLatching:
		if m.state.Latch && m.state.IsLatched(pin) {
			return 0
		}
	case StyleDoor:
		if m.state.IsLatched(pin) {
			return 0
		}
	}

	changes := m.setButtonLevel(b, 0)
	m.emit(b.up)

	if b.IsReset() && m.state.Enabled {
		// The target restarts with GPIOD unclocked
		m.state.Enabled = false
		changes |= ChangedEnabled
	}
	return changes
}

// Apply feeds one event from the simulator into the machine
func (m *Machine) Apply(ev wmsproto.Event) Changes {
	switch ev.Kind {
	case wmsproto.EventPin:
		return m.applyPin(ev.Pin, ev.Level)

	case wmsproto.EventEnabled:
		was := m.state.Enabled
		m.state.Enabled = ev.Enabled
		if !ev.Enabled || was {
			if was != ev.Enabled {
				return ChangedEnabled
			}
			return 0
		}
		// GPIOD came up: rebuild the view from a fresh register snapshot
		m.state.NeedsResync = true
		m.log.Debug().Msg("peripheral enabled, resync pending")
		for _, cmd := range wmsproto.ResyncCommands() {
			m.emit(cmd)
		}
		return ChangedEnabled | ChangedResync

	case wmsproto.EventRegister:
		switch ev.Register {
		case wmsproto.RegisterMode:
			m.state.Mode = ev.Value
		case wmsproto.RegisterInput:
			m.state.Input = ev.Value
			if m.state.NeedsResync {
				return ChangedRegisters | m.resync(ev.Value)
			}
		case wmsproto.RegisterStatus:
			m.state.Status = ev.Value
		}
		return ChangedRegisters
	}
	return 0
}

// Animate advances the motor animation while the motor runs
func (m *Machine) Animate() Changes {
	if !m.state.Motor {
		return 0
	}
	m.state.MotorFrame = (m.state.MotorFrame + 1) % MotorFrames
	return ChangedMotor
}

// resync rebuilds output levels and button flags from an IDR snapshot. No
// commands are emitted: the simulator already holds this state.
func (m *Machine) resync(idr uint32) Changes {
	m.replaying = true
	defer func() { m.replaying = false }()

	changes := ChangedResync
	for pin := PinLEDA; pin <= PinLatch; pin++ {
		changes |= m.applyPin(pin, int(idr>>pin&1))
	}

	for _, b := range m.buttons {
		pin, ok := b.Pin()
		if !ok {
			continue
		}
		changes |= m.setLatched(pin, false)
		changes |= m.setButtonLevel(b, 0)
		if idr>>pin&1 == 1 {
			changes |= m.Press(b)
			changes |= m.Release(b)
		}
	}

	m.state.NeedsResync = false
	m.log.Debug().Uint32("idr", idr).Msg("resync complete")
	return changes
}

func (m *Machine) applyPin(pin, level int) Changes {
	if pin < 0 || pin >= PinCount {
		return 0
	}
	on := level != 0
	changes := m.setPin(pin, on)

	switch {
	case pin >= PinLEDA && pin <= PinLEDD:
		seg := uint8(setBit(uint32(m.state.SevenSeg), pin-PinLEDA, on))
		if seg != m.state.SevenSeg {
			m.state.SevenSeg = seg
			changes |= ChangedSevenSeg
		}
	case pin == PinMotor:
		if m.state.Motor != on {
			m.state.Motor = on
			changes |= ChangedMotor
		}
	case pin == PinDirection:
		dir := 0
		if on {
			dir = 1
		}
		if m.state.Direction != dir {
			m.state.Direction = dir
			changes |= ChangedMotor
		}
	case pin == PinLatch:
		if m.state.Latch != on {
			m.state.Latch = on
			changes |= ChangedLatch
		}
		if !on {
			changes |= m.disableLatch()
		}
	}
	return changes
}

// disableLatch releases every latched button: its flag is cleared, its level
// dropped and its release command replayed. A button held down without the
// latch is left alone so its own release still reaches the simulator.
func (m *Machine) disableLatch() Changes {
	var changes Changes
	released := 0
	for _, b := range m.buttons {
		if b.style != StyleLatching {
			continue
		}
		pin, _ := b.Pin()
		if !m.state.IsLatched(pin) {
			continue
		}
		changes |= m.setLatched(pin, false)
		changes |= m.setButtonLevel(b, 0)
		m.emit(b.up)
		released++
	}
	if released > 0 {
		m.log.Debug().Int("released", released).Msg("latch disabled")
	}
	return changes
}

func (m *Machine) setButtonLevel(b Button, level int) Changes {
	pin, ok := b.Pin()
	if !ok {
		return 0
	}
	return m.setPin(pin, level != 0)
}

func (m *Machine) setPin(pin int, on bool) Changes {
	pins := setBit(m.state.Pins, pin, on)
	if pins == m.state.Pins {
		return 0
	}
	m.state.Pins = pins
	return ChangedPins
}

func (m *Machine) setLatched(pin int, on bool) Changes {
	latched := setBit(m.state.Latched, pin, on)
	if latched == m.state.Latched {
		return 0
	}
	m.state.Latched = latched
	return ChangedLatched
}

func (m *Machine) emit(cmd string) {
	if cmd == "" || m.out == nil || m.replaying {
		return
	}
	m.out.Issue(cmd)
}
