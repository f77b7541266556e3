// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/wmsctl/pkg/engine"
	"github.com/Thermoquad/wmsctl/pkg/link"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// passwordEnv holds the WebSocket password when set
const passwordEnv = "WMS_PASSWORD"

// Connection kinds
const (
	kindTCP       = "tcp"
	kindSerial    = "serial"
	kindWebSocket = "websocket"
)

// target describes where the simulator is reached. It is resolved once so
// reconnects do not prompt again.
type target struct {
	kind       string
	addr       string
	port       string
	baud       int
	url        string
	username   string
	password   string
	skipVerify bool
}

// String returns a one-line description for headers
func (t target) String() string {
	switch t.kind {
	case kindSerial:
		return fmt.Sprintf("Serial: %s @ %d baud", t.port, t.baud)
	case kindWebSocket:
		return fmt.Sprintf("WebSocket: %s", t.url)
	default:
		return fmt.Sprintf("TCP: %s", t.addr)
	}
}

// selectTarget picks the connection mode from the flags. WebSocket wins over
// serial, serial over TCP.
func selectTarget() target {
	switch {
	case wsURL != "":
		return target{kind: kindWebSocket, url: wsURL, username: wsUsername, skipVerify: wsNoSSLVerify}
	case portName != "":
		return target{kind: kindSerial, port: portName, baud: baudRate}
	default:
		return target{kind: kindTCP, addr: simAddr}
	}
}

// resolveTarget selects the target and asks for credentials if needed
func resolveTarget() (target, error) {
	t := selectTarget()
	if t.kind == kindWebSocket && t.username != "" {
		password, err := GetPassword()
		if err != nil {
			return t, err
		}
		t.password = password
	}
	return t, nil
}

// open connects to the target
func (t target) open(ctx context.Context) (link.Conn, error) {
	switch t.kind {
	case kindWebSocket:
		conn, err := link.OpenWebSocket(ctx, t.url, t.username, t.password, t.skipVerify)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case kindSerial:
		conn, err := link.OpenSerial(t.port, t.baud)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		conn, err := link.OpenTCP(ctx, t.addr)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// engineConfig returns engine options from the flags
func engineConfig(logger *zerolog.Logger, pollStatus bool) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Link.ReadTimeout = readTimeout
	cfg.PollStatus = pollStatus
	cfg.Logger = logger
	return cfg
}

// startEngine connects to the target and starts an engine on it
func startEngine(ctx context.Context, t target, cfg engine.Config) (*engine.Engine, error) {
	conn, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	return engine.New(conn, cfg)
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if stdin is not a terminal
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}
