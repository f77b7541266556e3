// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/wmsctl/pkg/board"
	"github.com/Thermoquad/wmsctl/pkg/link"
	"github.com/spf13/cobra"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the simulator answers and report the board",
	Long: `Connect to the simulator, read the GPIOD enable bit, MODER and IDR once and
print the resulting board state.

Examples:
  # Simulator on the default port
  wmsctl probe

  # Simulator chardev on a pty
  wmsctl probe --port /dev/pts/3

Exit codes:
  0 - Board state read
  1 - No reply, or GPIOD not enabled by the firmware
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 5, "Timeout in seconds")
}

func runProbe(cmd *cobra.Command, args []string) error {
	logger, closer, err := newLogger(false)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	t, err := resolveTarget()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), link.DialTimeout)
	eng, err := startEngine(ctx, t, engineConfig(&logger, false))
	cancel()
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("connection error: %w", err)}
	}

	fmt.Printf("wmsctl - Probe\n")
	fmt.Printf("Connection: %s\n", t)
	fmt.Printf("Timeout: %d seconds\n\n", probeTimeout)

	replied := false
	deadline := time.Now().Add(time.Duration(probeTimeout) * time.Second)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) && eng.Connected() {
		<-ticker.C
		events, _ := eng.Tick()
		for _, ev := range events {
			if !ev.IsWarning() {
				replied = true
			} else {
				fmt.Printf("Warning: %s\n", ev.Message)
			}
		}
		if s := eng.State(); s.Enabled && !s.NeedsResync {
			break
		}
	}

	state := eng.State()
	eng.Close()

	code, msg := probeOutcome(replied, state)
	if code != 0 {
		return &ExitError{Code: code, Err: errors.New(msg)}
	}
	fmt.Print(formatState(state))
	return nil
}

// probeOutcome turns what the probe saw into an exit code and message
func probeOutcome(replied bool, s board.State) (int, string) {
	switch {
	case !replied:
		return 1, "No reply from simulator"
	case !s.Enabled:
		return 1, "GPIOD is not enabled (firmware not running?)"
	case s.NeedsResync:
		return 1, "No register snapshot received"
	default:
		return 0, "ok"
	}
}

// formatState renders a board state as indented text
func formatState(s board.State) string {
	var b strings.Builder

	leds := make([]string, 4)
	for i := range leds {
		mark := "-"
		if s.LED(i) {
			mark = "*"
		}
		leds[i] = fmt.Sprintf("%c%s", 'A'+i, mark)
	}

	gpiod := "disabled"
	if s.Enabled {
		gpiod = "enabled"
	}
	fmt.Fprintf(&b, "GPIOD:    %s\n", gpiod)
	fmt.Fprintf(&b, "MODER:    0x%08X\n", s.Mode)
	fmt.Fprintf(&b, "IDR:      0x%08X\n", s.Input)
	fmt.Fprintf(&b, "LEDs:     %s\n", strings.Join(leds, " "))
	fmt.Fprintf(&b, "Display:  %c\n", s.SevenSegGlyph())
	fmt.Fprintf(&b, "Motor:    %s\n", motorText(s))
	fmt.Fprintf(&b, "Latch:    %s\n", onOff(s.Latch))
	if s.Status != 0 {
		fmt.Fprintf(&b, "USART SR: 0x%08X\n", s.Status)
	}

	var down []string
	for pin := 0; pin <= board.PinMotorSensor; pin++ {
		if s.Level(pin) == 1 {
			down = append(down, fmt.Sprintf("%d", pin))
		}
	}
	if len(down) == 0 {
		down = []string{"none"}
	}
	fmt.Fprintf(&b, "Inputs:   %s\n", strings.Join(down, " "))
	return b.String()
}
