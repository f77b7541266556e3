// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wmsproto

// EventKind tags the variant held by an Event
type EventKind uint8

const (
	EventPin      EventKind = iota + 1 // pin level changed
	EventRegister                      // register read reply
	EventEnabled                       // peripheral enable register read reply
	EventWarning                       // protocol or link warning
)

// String returns the display name of the event kind
func (k EventKind) String() string {
	switch k {
	case EventPin:
		return "PIN"
	case EventRegister:
		return "REGISTER"
	case EventEnabled:
		return "ENABLED"
	case EventWarning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// Event is a classified reply from the simulator or a warning raised by the
// link. Only the fields of the variant named by Kind are meaningful:
//
//	EventPin:      Pin, Level
//	EventRegister: Register, Value
//	EventEnabled:  Register (RegisterEnable), Value, Enabled
//	EventWarning:  Message, Token (empty for link warnings)
type Event struct {
	Kind     EventKind `cbor:"1,keyasint"`
	Pin      int       `cbor:"2,keyasint,omitempty"`
	Level    int       `cbor:"3,keyasint,omitempty"`
	Register Register  `cbor:"4,keyasint,omitempty"`
	Value    uint32    `cbor:"5,keyasint,omitempty"`
	Enabled  bool      `cbor:"6,keyasint,omitempty"`
	Message  string    `cbor:"7,keyasint,omitempty"`
	Token    string    `cbor:"8,keyasint,omitempty"`
}

// PinEvent creates a pin level change event. Any non-zero level is high.
func PinEvent(pin, level int) Event {
	if level != 0 {
		level = 1
	}
	return Event{Kind: EventPin, Pin: pin, Level: level}
}

// RegisterEvent creates a register snapshot event
func RegisterEvent(reg Register, value uint32) Event {
	return Event{Kind: EventRegister, Register: reg, Value: value}
}

// EnabledEvent creates the peripheral enable event from the raw AHB1ENR value
func EnabledEvent(value uint32) Event {
	return Event{
		Kind:     EventEnabled,
		Register: RegisterEnable,
		Value:    value,
		Enabled:  value>>GPIODEnableBit&1 == 1,
	}
}

// WarningEvent creates a warning event. token is the offending reply token,
// or empty when the warning did not come from a reply.
func WarningEvent(message, token string) Event {
	return Event{Kind: EventWarning, Message: message, Token: token}
}

// IsWarning reports whether the event is a warning
func (e Event) IsWarning() bool {
	return e.Kind == EventWarning
}
