// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// ============================================================
// Receive Tests
// ============================================================

func TestTransport_Receive(t *testing.T) {
	tests := []struct {
		name     string
		reads    []readResult
		expected []string
	}{
		{
			name:     "plain text trimmed",
			reads:    []readResult{data("+d8 -d9\r\n")},
			expected: []string{"+d8 -d9"},
		},
		{
			name:     "leading negotiation",
			reads:    []readResult{raw(0xFF, 0xFB, 0x01, '+', 'd', '8', ' ')},
			expected: []string{"+d8"},
		},
		{
			name:     "repeated negotiation",
			reads:    []readResult{raw(0xFF, 0xFB, 0x01, 0xFF, 0xFB, 0x03, '=', 'd', '0', '/', '1')},
			expected: []string{"=d0/1"},
		},
		{
			name:     "negotiation inside data",
			reads:    []readResult{raw('-', 'd', '1', ' ', 0xFF, 0xFD, 0x22, '+', 'd', '2')},
			expected: []string{"-d1 +d2"},
		},
		{
			name:     "negotiation split across reads",
			reads:    []readResult{raw('x', 0xFF), raw(0x01, 0x03, '-', 'd', '9')},
			expected: []string{"x", "-d9"},
		},
		{
			name:     "negotiation only read is not a timeout",
			reads:    []readResult{timeout(), timeout(), raw(0xFF, 0xFB, 0x01), data("+d3")},
			expected: []string{"+d3"},
		},
		{
			name:     "timeout count is per call",
			reads:    []readResult{timeout(), timeout(), data("a"), timeout(), timeout(), data("b")},
			expected: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransport(newFakeConn(tt.reads...), DefaultConfig())
			for i, exp := range tt.expected {
				got, err := tr.Receive()
				if err != nil {
					t.Fatalf("Receive %d failed: %v", i, err)
				}
				if got != exp {
					t.Errorf("Receive %d = %q, expected %q", i, got, exp)
				}
			}
		})
	}
}

func TestTransport_Receive_TimeoutBound(t *testing.T) {
	tests := []struct {
		name  string
		reads []readResult
	}{
		{"deadline errors", []readResult{timeout(), timeout(), timeout(), data("late")}},
		{"empty reads", []readResult{empty(), empty(), empty(), data("late")}},
		{"mixed", []readResult{empty(), timeout(), empty(), data("late")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn(tt.reads...)
			tr := NewTransport(conn, DefaultConfig())
			if _, err := tr.Receive(); !errors.Is(err, ErrTimeout) {
				t.Fatalf("Expected ErrTimeout, got %v", err)
			}
			if len(conn.timeouts) != DefaultMaxTimeouts {
				t.Errorf("Expected %d bounded reads, got %d", DefaultMaxTimeouts, len(conn.timeouts))
			}
			for _, d := range conn.timeouts {
				if d != DefaultReadTimeout {
					t.Errorf("Expected read timeout %v, got %v", DefaultReadTimeout, d)
				}
			}
		})
	}
}

func TestTransport_Receive_Closed(t *testing.T) {
	tr := NewTransport(newFakeConn(readResult{err: io.EOF}), DefaultConfig())
	if _, err := tr.Receive(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
}

func TestTransport_Receive_ReadErrorIsFatal(t *testing.T) {
	tr := NewTransport(newFakeConn(readResult{err: errBoom}), DefaultConfig())
	if _, err := tr.Receive(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
}

// ============================================================
// Send Tests
// ============================================================

func TestTransport_Send_PartialWrites(t *testing.T) {
	msg := "M40023830? D0? D4? D0L3 "
	conn := newFakeConn()
	conn.writeLimit = 1
	tr := NewTransport(conn, DefaultConfig())

	if err := tr.Send(msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := conn.Written(); got != msg {
		t.Errorf("Written %q, expected %q", got, msg)
	}
	if conn.writeCalls != len(msg) {
		t.Errorf("Expected %d write calls, got %d", len(msg), conn.writeCalls)
	}
}

func TestTransport_Send_Sequence(t *testing.T) {
	conn := newFakeConn()
	conn.writeLimit = 3
	tr := NewTransport(conn, DefaultConfig())

	cmds := []string{"noecho ", "listen ", "D0? ", "D4? "}
	for _, c := range cmds {
		if err := tr.Send(c); err != nil {
			t.Fatalf("Send %q failed: %v", c, err)
		}
	}
	if got := conn.Written(); got != strings.Join(cmds, "") {
		t.Errorf("Written %q", got)
	}
}

func TestTransport_Send_ZeroWrite(t *testing.T) {
	conn := newFakeConn()
	conn.zeroWrites = true
	tr := NewTransport(conn, DefaultConfig())

	err := tr.Send("D0? ")
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("Expected SendError, got %v", err)
	}
	if sendErr.Command != "D0? " {
		t.Errorf("Expected command in error, got %q", sendErr.Command)
	}
	if !errors.Is(err, ErrZeroWrite) {
		t.Errorf("Expected ErrZeroWrite, got %v", err)
	}
}

func TestTransport_Send_WriteError(t *testing.T) {
	conn := newFakeConn()
	conn.writeErr = errBoom
	tr := NewTransport(conn, DefaultConfig())

	err := tr.Send("D0? ")
	var sendErr *SendError
	if !errors.As(err, &sendErr) || !errors.Is(err, errBoom) {
		t.Fatalf("Expected SendError wrapping boom, got %v", err)
	}
}

func TestTransport_Close(t *testing.T) {
	conn := newFakeConn()
	tr := NewTransport(conn, DefaultConfig())

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if conn.closeCount != 1 {
		t.Errorf("Expected 1 close of the connection, got %d", conn.closeCount)
	}
	if err := tr.Send("D0? "); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
	if _, err := tr.Receive(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Receive after Close, got %v", err)
	}
}

func TestConfig_Defaults(t *testing.T) {
	tr := NewTransport(newFakeConn(), Config{})
	if tr.cfg.ReadTimeout != DefaultReadTimeout || tr.cfg.MaxTimeouts != DefaultMaxTimeouts {
		t.Errorf("Zero config not defaulted: %+v", tr.cfg)
	}
}
