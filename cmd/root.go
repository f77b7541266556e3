// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// TCP connection flags
	simAddr string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Link flags
	readTimeout time.Duration

	// Logging flags
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "wmsctl",
	Short: "WMS Simulator Client",
	Long: `wmsctl - A CLI tool for driving the QEMU washing machine simulator.

Connects to the simulator's diagnostic port, keeps a model of the board
(LEDs, seven segment display, motor, buttons) in sync with the emulated
GPIO port and lets you press buttons and send raw commands.

Connection modes:
  TCP:       --addr localhost:8889 (default)
  Serial:    --port /dev/pts/3 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the WMS_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&simAddr, "addr", "a", fmt.Sprintf("%s:%d", wmsproto.DefaultHost, wmsproto.DefaultPort), "Simulator TCP address")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().DurationVar(&readTimeout, "read-timeout", 5*time.Second, "Receive timeout (three in a row drop the connection)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
}

// newLogger builds the logger selected by the logging flags. With quiet set
// and no log file, logs are discarded; the caller owns the terminal.
func newLogger(quiet bool) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return zerolog.New(f).Level(level).With().Timestamp().Logger(), f, nil
	}

	if quiet {
		return zerolog.Nop(), nil, nil
	}

	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil, nil
}

// ExitError carries a process exit status back to main, so commands return
// normally and their deferred cleanup runs
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
