// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wmsproto

import (
	"fmt"
	"strconv"
	"strings"
)

// rule classifies tokens that match it. Rules are tried in order and the
// first match wins.
type rule struct {
	name     string
	match    func(token string) bool
	classify func(token string) Event
}

// registerRule maps a register read reply prefix to a register
type registerRule struct {
	prefix   string
	register Register
}

// replyRules is the ordered reply classification table
var replyRules = []rule{
	{name: "invalid", match: hasPrefixByte(PrefixInvalid), classify: classifyInvalid},
	{name: "pin-low", match: hasPrefixByte(PrefixPinLow), classify: classifyPin(0)},
	{name: "pin-high", match: hasPrefixByte(PrefixPinHigh), classify: classifyPin(1)},
	{name: "register", match: hasPrefixByte(PrefixRegister), classify: classifyRegister},
}

// registerRules maps GPIOD and USART register replies. Memory replies are
// handled separately because they are identified by address suffix.
var registerRules = []registerRule{
	{prefix: prefixModer, register: RegisterMode},
	{prefix: prefixIDR, register: RegisterInput},
	{prefix: prefixStatus, register: RegisterStatus},
}

// Classify splits a received chunk on whitespace and classifies each token.
// Events are returned in token order. Tokens that cannot be classified
// produce warning events; Classify never fails.
func Classify(chunk string) []Event {
	tokens := strings.Fields(chunk)
	events := make([]Event, 0, len(tokens))
	for _, token := range tokens {
		events = append(events, ClassifyToken(token))
	}
	return events
}

// ClassifyToken classifies a single reply token
func ClassifyToken(token string) Event {
	for _, r := range replyRules {
		if r.match(token) {
			return r.classify(token)
		}
	}
	return WarningEvent(fmt.Sprintf("Invalid response format: %s", token), token)
}

func hasPrefixByte(b byte) func(string) bool {
	return func(token string) bool {
		return len(token) > 0 && token[0] == b
	}
}

func classifyInvalid(token string) Event {
	return WarningEvent(fmt.Sprintf("Invalid command response: %s", token), token)
}

func classifyPin(level int) func(string) Event {
	return func(token string) Event {
		if len(token) <= pinDigitOffset {
			return WarningEvent(fmt.Sprintf("Invalid pin response: %s", token), token)
		}
		pin, err := strconv.ParseUint(token[pinDigitOffset:pinDigitOffset+1], 16, 8)
		if err != nil {
			return WarningEvent(fmt.Sprintf("Invalid pin response: %s", token), token)
		}
		return PinEvent(int(pin), level)
	}
}

func classifyRegister(token string) Event {
	slash := strings.LastIndexByte(token, '/')
	if slash < 0 {
		return WarningEvent(fmt.Sprintf("Invalid response format: %s", token), token)
	}
	value, err := strconv.ParseUint(token[slash+1:], 16, 32)
	if err != nil {
		return WarningEvent(fmt.Sprintf("Invalid register value: %s", token), token)
	}

	if strings.HasPrefix(token, prefixMemory) {
		if hasAddressSuffix(token[len(prefixMemory):slash], suffixAHB1ENR) {
			return EnabledEvent(uint32(value))
		}
		return WarningEvent(fmt.Sprintf("Invalid memory address: %s", token), token)
	}

	for _, r := range registerRules {
		if strings.HasPrefix(token, r.prefix) {
			return RegisterEvent(r.register, uint32(value))
		}
	}
	return WarningEvent(fmt.Sprintf("Invalid response format: %s", token), token)
}

// hasAddressSuffix matches a memory address against a suffix. The simulator
// may append an access width character to the address ("40023830w").
func hasAddressSuffix(addr, suffix string) bool {
	if strings.HasSuffix(addr, suffix) {
		return true
	}
	return len(addr) > 0 && strings.HasSuffix(addr[:len(addr)-1], suffix)
}
