// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Conn is the byte stream a Transport runs on
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// ReadTimeouter is implemented by connections that can bound a single read.
// A read that times out either returns an error whose Timeout() is true or
// returns no data and no error.
type ReadTimeouter interface {
	SetReadTimeout(d time.Duration) error
}

// DialTimeout bounds TCP and WebSocket connection setup
const DialTimeout = 5 * time.Second

// NetConnection wraps a stream socket (TCP, or net.Pipe in tests)
type NetConnection struct {
	conn net.Conn
}

// NewNetConnection wraps an established net.Conn
func NewNetConnection(conn net.Conn) *NetConnection {
	return &NetConnection{conn: conn}
}

func (n *NetConnection) Read(p []byte) (int, error) {
	return n.conn.Read(p)
}

func (n *NetConnection) Write(p []byte) (int, error) {
	return n.conn.Write(p)
}

func (n *NetConnection) Close() error {
	return n.conn.Close()
}

// SetReadTimeout sets the deadline for the next read
func (n *NetConnection) SetReadTimeout(d time.Duration) error {
	return n.conn.SetReadDeadline(time.Now().Add(d))
}

// SerialConnection wraps a serial port (simulator chardev on a pty)
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// SetReadTimeout bounds each read; the port returns no data on expiry
func (s *SerialConnection) SetReadTimeout(d time.Duration) error {
	return s.port.SetReadTimeout(d)
}

// WebSocketConnection adapts a WebSocket to a byte stream. A pump goroutine
// reads messages so a read timeout does not poison the WebSocket.
type WebSocketConnection struct {
	conn      *websocket.Conn
	msgs      chan []byte
	errc      chan error
	done      chan struct{}
	stopped   chan struct{}
	buf       []byte
	bufOffset int
	timeout   time.Duration
	closeOnce sync.Once
}

func newWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:    conn,
		msgs:    make(chan []byte, 16),
		errc:    make(chan error, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.pump()
	return w
}

func (w *WebSocketConnection) pump() {
	defer close(w.stopped)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.errc <- err
			close(w.msgs)
			return
		}
		// Bridges may frame the text protocol either way
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		// Nobody may be reading any more once the receiver has given up
		select {
		case w.msgs <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	select {
	case <-w.done:
		return 0, ErrClosed
	default:
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	var timer <-chan time.Time
	if w.timeout > 0 {
		t := time.NewTimer(w.timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case data, ok := <-w.msgs:
		if !ok {
			err := <-w.errc
			w.errc <- err
			return 0, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	case <-w.done:
		return 0, ErrClosed
	case <-timer:
		return 0, os.ErrDeadlineExceeded
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
		<-w.stopped
	})
	return err
}

// SetReadTimeout bounds each read
func (w *WebSocketConnection) SetReadTimeout(d time.Duration) error {
	w.timeout = d
	return nil
}

// OpenTCP connects to the simulator's diagnostic socket
func OpenTCP(ctx context.Context, addr string) (*NetConnection, error) {
	dialer := net.Dialer{Timeout: DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	return NewNetConnection(conn), nil
}

// OpenSerial opens a serial device carrying the diagnostic protocol
func OpenSerial(portName string, baudRate int) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, &ConnectionError{Addr: portName, Err: err}
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocket connects to a WebSocket bridge with optional HTTP Basic auth
func OpenWebSocket(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*WebSocketConnection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, &ConnectionError{Addr: wsURL, Err: fmt.Errorf("invalid URL: %w", err)}
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, &ConnectionError{Addr: wsURL, Err: fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: DialTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*DialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, &ConnectionError{Addr: wsURL, Err: err}
	}

	return newWebSocketConnection(conn), nil
}
