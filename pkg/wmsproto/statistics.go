// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wmsproto

import (
	"fmt"
	"time"
)

// Statistics tracks event counts and rates for a session
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalEvents     uint64
	PinChanges      uint64
	RegisterReads   uint64
	EnableReads     uint64
	Warnings        uint64
	InvalidCommands uint64 // '?' replies
	Malformed       uint64 // other reply warnings
	LinkWarnings    uint64 // warnings not tied to a reply token

	// Rates (calculated)
	EventRate   float64 // events/sec
	WarningRate float64 // warnings/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts one event
func (s *Statistics) Update(e Event) {
	s.TotalEvents++

	switch e.Kind {
	case EventPin:
		s.PinChanges++
	case EventRegister:
		s.RegisterReads++
	case EventEnabled:
		s.EnableReads++
	case EventWarning:
		s.Warnings++
		switch {
		case e.Token == "":
			s.LinkWarnings++
		case e.Token[0] == PrefixInvalid:
			s.InvalidCommands++
		default:
			s.Malformed++
		}
	}

	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates event and warning rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.EventRate = float64(s.TotalEvents) / elapsed
		s.WarningRate = float64(s.Warnings) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var warningPercent float64
	if s.TotalEvents > 0 {
		warningPercent = float64(s.Warnings) * 100.0 / float64(s.TotalEvents)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Events:    %8d\n", s.TotalEvents)
	result += fmt.Sprintf("Pin Changes:     %8d\n", s.PinChanges)
	result += fmt.Sprintf("Register Reads:  %8d\n", s.RegisterReads)
	result += fmt.Sprintf("Enable Reads:    %8d\n", s.EnableReads)
	if s.Warnings > 0 {
		result += fmt.Sprintf("Warnings:        %8d (%.1f%%)\n", s.Warnings, warningPercent)
		if s.InvalidCommands > 0 {
			result += fmt.Sprintf("  Invalid Cmds:     %5d\n", s.InvalidCommands)
		}
		if s.Malformed > 0 {
			result += fmt.Sprintf("  Malformed:        %5d\n", s.Malformed)
		}
		if s.LinkWarnings > 0 {
			result += fmt.Sprintf("  Link:             %5d\n", s.LinkWarnings)
		}
	}
	result += fmt.Sprintf("Event Rate:      %8.1f events/sec\n", s.EventRate)
	result += fmt.Sprintf("Warning Rate:    %8.1f warnings/sec\n", s.WarningRate)
	result += "================================\n"

	return result
}

// Reset resets all counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
