// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package board

// PinCount is the width of a GPIO port register
const PinCount = 32

// GPIOD input pins
const (
	PinDoor        = 0
	PinPS1         = 1
	PinPS2         = 2
	PinPS3         = 3
	PinCancel      = 4
	PinAccept      = 5
	PinMotorSensor = 6
)

// GPIOD output pins
const (
	PinLEDA      = 8
	PinLEDB      = 9
	PinLEDC      = 10
	PinLEDD      = 11
	PinMotor     = 12
	PinDirection = 13
	PinLatch     = 14
)

// MotorFrames is the number of motor animation frames
const MotorFrames = 3

// sevenSegGlyphs maps the 4-bit display value to the glyph the board shows.
// The board artwork renders 8 and 9 identically.
var sevenSegGlyphs = [16]byte{
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '8', 'A', 'b', 'C', 'd', 'E', 'F',
}

// State is a snapshot of the board. It is a value: copies are independent.
type State struct {
	Pins    uint32 // displayed pin levels
	Latched uint32 // per-pin latch/toggle flags

	Latch      bool  // keys stay down (pin 14)
	SevenSeg   uint8 // pins 8..11
	Motor      bool  // pin 12
	Direction  int   // pin 13: 0 clockwise, 1 anticlockwise
	MotorFrame int

	Enabled     bool // GPIOD clocked
	Mode        uint32
	Input       uint32
	Status      uint32
	NeedsResync bool
}

// Level returns the displayed level of a pin
func (s State) Level(pin int) int {
	if pin < 0 || pin >= PinCount {
		return 0
	}
	return int(s.Pins >> pin & 1)
}

// IsLatched returns the latch/toggle flag of a pin
func (s State) IsLatched(pin int) bool {
	if pin < 0 || pin >= PinCount {
		return false
	}
	return s.Latched>>pin&1 == 1
}

// DoorOpen reports the door toggle. The door pin reads high while open.
func (s State) DoorOpen() bool {
	return s.IsLatched(PinDoor)
}

// LED returns LED A..D (0..3)
func (s State) LED(i int) bool {
	return s.Level(PinLEDA+i) == 1
}

// SevenSegGlyph returns the character shown on the seven segment display
func (s State) SevenSegGlyph() byte {
	return sevenSegGlyphs[s.SevenSeg&0x0F]
}

// SpinnerFrame returns 0 when the motor is stopped, 1 turning clockwise and
// 2 turning anticlockwise
func (s State) SpinnerFrame() int {
	if !s.Motor {
		return 0
	}
	return s.Direction + 1
}

// Outputs returns the pin map restricted to the display pins, so states
// reached by different paths can be compared
func (s State) Outputs() State {
	return State{
		Pins:       s.Pins,
		Latched:    s.Latched,
		Latch:      s.Latch,
		SevenSeg:   s.SevenSeg,
		Motor:      s.Motor,
		Direction:  s.Direction,
		MotorFrame: s.MotorFrame,
	}
}

func setBit(v uint32, bit int, on bool) uint32 {
	if on {
		return v | 1<<bit
	}
	return v &^ (1 << bit)
}
