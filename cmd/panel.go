// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/wmsctl/pkg/engine"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var panelPollStatus bool

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Interactive TUI for the washing machine board",
	Long: `Drive the simulated washing machine from an interactive terminal UI.

The panel shows the board as the simulator reports it: LEDs A-D, the seven
segment display, motor and direction, the key latch and the GPIOD registers.
Buttons are clicked with their key and held with the upper-case key.

Keys:
  1 2 3   program select PS1..PS3
  c a     cancel, accept
  d       door (each click toggles open/closed)
  m       motor speed sensor
  r       reset the target
  :       enter a raw simulator command
  h       halt the target and quit
  q       quit

The panel reconnects automatically when the connection is lost.`,
	RunE: runPanel,
}

func init() {
	rootCmd.AddCommand(panelCmd)
	panelCmd.Flags().BoolVar(&panelPollStatus, "poll-status", false, "Also poll the USART3 status register")
}

// Reconnect backoff bounds
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// connectionManager builds engines for the panel. A lost engine is never
// revived; a new one is started in its place.
type connectionManager struct {
	ctx    context.Context
	target target
	cfg    engine.Config
	log    zerolog.Logger
}

// connectedMsg carries a freshly started engine
type connectedMsg struct {
	eng *engine.Engine
}

// reconnectFailedMsg reports a failed attempt and the next delay
type reconnectFailedMsg struct {
	err     error
	backoff time.Duration
}

func (cm *connectionManager) connect() (*engine.Engine, error) {
	eng, err := startEngine(cm.ctx, cm.target, cm.cfg)
	if err != nil {
		return nil, err
	}
	if cm.ctx.Err() != nil {
		eng.Close()
		return nil, cm.ctx.Err()
	}
	cm.log.Info().Str("target", cm.target.String()).Msg("connected")
	return eng, nil
}

// reconnectCmd waits for backoff and makes one connection attempt
func (cm *connectionManager) reconnectCmd(backoff time.Duration) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-cm.ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		eng, err := cm.connect()
		if err != nil {
			cm.log.Debug().Err(err).Dur("backoff", backoff).Msg("reconnect failed")
			return reconnectFailedMsg{err: err, backoff: nextBackoff(backoff)}
		}
		return connectedMsg{eng: eng}
	}
}

// nextBackoff doubles d up to maxBackoff
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func runPanel(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("panel needs a terminal (use monitor for text output)")
	}

	// The TUI owns the terminal: log to file or nowhere
	logger, closer, err := newLogger(true)
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

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cm := &connectionManager{
		ctx:    ctx,
		target: t,
		cfg:    engineConfig(&logger, panelPollStatus),
		log:    logger.With().Str("component", "panel").Logger(),
	}

	// A failed first connection is fatal
	eng, err := cm.connect()
	if err != nil {
		return err
	}

	p := tea.NewProgram(newPanelModel(cm, eng), tea.WithAltScreen())
	final, err := p.Run()
	cancel()

	if m, ok := final.(panelModel); ok && m.eng != nil {
		m.eng.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
