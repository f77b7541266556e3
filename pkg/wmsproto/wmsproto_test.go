// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wmsproto

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		event    Event
		contains string
	}{
		{PinEvent(12, 1), "PIN_HIGH pin=12 (motor)"},
		{PinEvent(0, 0), "PIN_LOW pin=0 (door)"},
		{RegisterEvent(RegisterInput, 0xa00), "REGISTER idr=0x00000A00"},
		{EnabledEvent(0x08), "ENABLED gpiod=enabled"},
		{EnabledEvent(0x00), "gpiod=disabled"},
		{WarningEvent("connection receiver timeout", ""), "WARNING connection receiver timeout"},
	}

	for _, tt := range tests {
		got := FormatEvent(tt.event)
		if !strings.Contains(got, tt.contains) {
			t.Errorf("FormatEvent(%+v) = %q, expected to contain %q", tt.event, got, tt.contains)
		}
	}
}

func TestFormatTimestamped(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 34, 56, 789_000_000, time.Local)
	got := FormatTimestamped(ts, PinEvent(8, 1))
	if !strings.HasPrefix(got, "[12:34:56.789] PIN_HIGH") {
		t.Errorf("Unexpected format: %q", got)
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()
	for _, ev := range Classify("+d8 -d8 =d4/0 =d0/0 =m40023830/8 ?x =zz") {
		s.Update(ev)
	}
	s.Update(WarningEvent("send failed", ""))

	if s.TotalEvents != 8 {
		t.Errorf("TotalEvents = %d, expected 8", s.TotalEvents)
	}
	if s.PinChanges != 2 {
		t.Errorf("PinChanges = %d, expected 2", s.PinChanges)
	}
	if s.RegisterReads != 2 {
		t.Errorf("RegisterReads = %d, expected 2", s.RegisterReads)
	}
	if s.EnableReads != 1 {
		t.Errorf("EnableReads = %d, expected 1", s.EnableReads)
	}
	if s.Warnings != 3 || s.InvalidCommands != 1 || s.Malformed != 1 || s.LinkWarnings != 1 {
		t.Errorf("Unexpected warning counters: %+v", s)
	}
	if !strings.Contains(s.String(), "Total Events:") {
		t.Error("String() missing summary")
	}

	s.Reset()
	if s.TotalEvents != 0 || s.Warnings != 0 {
		t.Error("Reset did not clear counters")
	}
}

// ============================================================
// Capture Tests
// ============================================================

func TestCapture_WriteRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)

	base := time.Unix(1700000000, 0)
	events := []Event{
		EnabledEvent(0x08),
		RegisterEvent(RegisterInput, 0x4a00),
		PinEvent(14, 0),
		WarningEvent("Invalid command response: ?q", "?q"),
	}
	for i, ev := range events {
		if err := w.Write(base.Add(time.Duration(i)*time.Millisecond), ev); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	r := NewCaptureReader(&buf)
	for i, expected := range events {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if rec.Event != expected {
			t.Errorf("Record %d: expected %+v, got %+v", i, expected, rec.Event)
		}
		if !rec.Timestamp().Equal(base.Add(time.Duration(i) * time.Millisecond)) {
			t.Errorf("Record %d: wrong timestamp %v", i, rec.Timestamp())
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF at end of capture, got %v", err)
	}
}

func TestCapture_Garbage(t *testing.T) {
	r := NewCaptureReader(bytes.NewReader([]byte{0xFF, 0x00, 0x13}))
	if _, err := r.Next(); err == nil {
		t.Error("Expected error for garbage capture")
	}
}
