// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link moves protocol text between the host and the simulator.
//
// A Transport owns one connection and provides bounded receives and
// complete sends. A Session runs a sender and a receiver goroutine around a
// Transport and exchanges commands and classified events with the caller
// through two unbounded queues.
package link

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
	"github.com/rs/zerolog"
)

// Defaults for Config
const (
	DefaultReadTimeout = 5 * time.Second
	DefaultMaxTimeouts = 3
	readBufferSize     = 128
)

// Config holds Transport limits
type Config struct {
	ReadTimeout time.Duration // bound on a single read
	MaxTimeouts int           // consecutive timeouts before ErrTimeout
	Logger      *zerolog.Logger
}

// DefaultConfig returns the default transport limits
func DefaultConfig() Config {
	return Config{
		ReadTimeout: DefaultReadTimeout,
		MaxTimeouts: DefaultMaxTimeouts,
	}
}

func (c Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return *c.Logger
}

// Transport speaks the text protocol over one connection
type Transport struct {
	conn    Conn
	cfg     Config
	log     zerolog.Logger
	buf     []byte
	skip    int // negotiation bytes still to discard
	mu      sync.Mutex
	closed  bool
	closeMu sync.Once
}

// NewTransport creates a transport on an open connection
func NewTransport(conn Conn, cfg Config) *Transport {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxTimeouts <= 0 {
		cfg.MaxTimeouts = DefaultMaxTimeouts
	}
	return &Transport{
		conn: conn,
		cfg:  cfg,
		log:  cfg.logger().With().Str("component", "transport").Logger(),
		buf:  make([]byte, readBufferSize),
	}
}

// Receive blocks until the connection delivers protocol text and returns it
// with surrounding whitespace removed. Negotiation sequences are discarded.
// Each read waits at most ReadTimeout; after MaxTimeouts consecutive empty
// reads Receive returns ErrTimeout. A closed connection yields ErrClosed.
func (t *Transport) Receive() (string, error) {
	timeouts := 0
	for {
		if rt, ok := t.conn.(ReadTimeouter); ok {
			if err := rt.SetReadTimeout(t.cfg.ReadTimeout); err != nil {
				return "", t.readError(err)
			}
		}

		n, err := t.conn.Read(t.buf)
		if err != nil && !isTimeoutErr(err) {
			return "", t.readError(err)
		}
		if n == 0 {
			timeouts++
			t.log.Debug().Int("timeouts", timeouts).Msg("receive timeout")
			if timeouts >= t.cfg.MaxTimeouts {
				return "", ErrTimeout
			}
			continue
		}

		data := t.stripNegotiation(t.buf[:n])
		if len(data) == 0 {
			// Only negotiation bytes: not a timeout, read again
			continue
		}
		return strings.TrimSpace(string(data)), nil
	}
}

// stripNegotiation removes marker+payload sequences. A sequence split across
// reads is completed on the next read.
func (t *Transport) stripNegotiation(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		switch {
		case t.skip > 0:
			t.skip--
		case b == wmsproto.NegotiationMarker:
			t.skip = wmsproto.NegotiationLength - 1
		default:
			out = append(out, b)
		}
	}
	return out
}

func (t *Transport) readError(err error) error {
	if isClosedErr(err) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return fmt.Errorf("%w: read failed: %v", ErrClosed, err)
}

// Send writes the complete text, looping over partial writes. A write that
// accepts no bytes fails with a SendError wrapping ErrZeroWrite; a closed
// connection fails with ErrClosed.
func (t *Transport) Send(text string) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data := []byte(text)
	total := 0
	for total < len(data) {
		n, err := t.conn.Write(data[total:])
		if err != nil {
			if isClosedErr(err) {
				return fmt.Errorf("%w: %v", ErrClosed, err)
			}
			return &SendError{Command: text, Err: err}
		}
		if n == 0 {
			return &SendError{Command: text, Err: ErrZeroWrite}
		}
		total += n
	}
	t.log.Debug().Str("command", text).Msg("sent")
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (t *Transport) Close() error {
	var err error
	t.closeMu.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		err = t.conn.Close()
	})
	return err
}
