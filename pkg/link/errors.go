// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

var (
	// ErrClosed is returned once the connection has been closed by either end
	ErrClosed = errors.New("connection closed")

	// ErrTimeout is returned after MaxTimeouts consecutive receive timeouts
	ErrTimeout = errors.New("connection receiver timeout")

	// ErrZeroWrite is returned when the connection accepts no bytes
	ErrZeroWrite = errors.New("zero bytes written")

	// ErrNotConnected is returned for work issued after the session stopped
	ErrNotConnected = errors.New("not connected")
)

// ConnectionError reports a failed connection attempt
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError reports a command that could not be written
type SendError struct {
	Command string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send error %q: %v", e.Command, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// isClosedErr reports whether err means the connection is gone for good
func isClosedErr(err error) bool {
	if errors.Is(err, ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return true
	}
	return false
}

// isTimeoutErr reports whether err is a read deadline expiry
func isTimeoutErr(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
