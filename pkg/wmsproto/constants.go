// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package wmsproto implements the text diagnostic protocol spoken by the QEMU
// washing machine simulator (WMS).
//
// Commands are whitespace terminated ASCII tokens. Replies are whitespace
// separated tokens that are either pushed asynchronously (pin changes) or
// returned for a register read. This package classifies reply tokens into
// typed events, builds the commands the host needs and formats events for
// display. It performs no I/O.
package wmsproto

// Default simulator endpoint
const (
	DefaultHost = "localhost"
	DefaultPort = 8889
)

// Reply token prefixes
const (
	PrefixInvalid  = '?'
	PrefixPinLow   = '-'
	PrefixPinHigh  = '+'
	PrefixRegister = '='
)

// pinDigitOffset is the index of the hex pin digit in a pin change token
// ("-d9", "+dc").
const pinDigitOffset = 2

// Register read reply prefixes ("=d4/0000a000")
const (
	prefixMemory = "=m"
	prefixModer  = "=d0"
	prefixIDR    = "=d4"
	prefixStatus = "=u0"
)

// suffixAHB1ENR identifies the RCC AHB1 enable register in a memory read reply.
const suffixAHB1ENR = "3830"

// GPIODEnableBit is the bit of RCC AHB1ENR that clocks GPIO port D.
const GPIODEnableBit = 3

// Negotiation marker: the byte is followed by two payload bytes that carry
// no protocol data.
const (
	NegotiationMarker = 0xFF
	NegotiationLength = 3
)

// Register identifies the logical register a read reply belongs to.
type Register int

const (
	RegisterEnable Register = iota // RCC AHB1ENR
	RegisterMode                   // GPIOD MODER
	RegisterInput                  // GPIOD IDR
	RegisterStatus                 // USART3 SR
)

// String returns the register name used in displays
func (r Register) String() string {
	switch r {
	case RegisterEnable:
		return "ahb1enr"
	case RegisterMode:
		return "moder"
	case RegisterInput:
		return "idr"
	case RegisterStatus:
		return "sr"
	default:
		return "unknown"
	}
}
