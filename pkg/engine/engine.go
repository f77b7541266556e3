// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package engine is the caller-facing side of the simulator client.
//
// An Engine joins a link.Session, which owns the connection and its worker
// goroutines, with a board.Machine, which owns the board state. The caller
// drives it from one goroutine: Tick on a timer, Press and Release for user
// input, State for rendering. The engine never reconnects; after Connected
// turns false the caller closes it and builds a new one.
package engine

import (
	"context"
	"fmt"

	"github.com/Thermoquad/wmsctl/pkg/board"
	"github.com/Thermoquad/wmsctl/pkg/link"
	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
	"github.com/rs/zerolog"
)

// DefaultMaxEventsPerTick bounds the events applied by one DrainEvents call
const DefaultMaxEventsPerTick = 10

// Config holds engine options
type Config struct {
	MaxEventsPerTick int
	PollStatus       bool           // also read the USART3 status register each tick
	Buttons          []board.Button // nil selects board.DefaultButtons
	Link             link.Config
	Logger           *zerolog.Logger
}

// DefaultConfig returns the default engine options
func DefaultConfig() Config {
	return Config{
		MaxEventsPerTick: DefaultMaxEventsPerTick,
		Link:             link.DefaultConfig(),
	}
}

// Engine is a connected simulator client
type Engine struct {
	cfg     Config
	session *link.Session
	machine *board.Machine
	log     zerolog.Logger
}

// Dial connects to the simulator's TCP port and starts an engine on it
func Dial(ctx context.Context, addr string, cfg Config) (*Engine, error) {
	conn, err := link.OpenTCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	e, err := New(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return e, nil
}

// New starts an engine on an open connection. The engine owns conn from
// here on, also when an error is returned.
func New(conn link.Conn, cfg Config) (*Engine, error) {
	if cfg.MaxEventsPerTick <= 0 {
		cfg.MaxEventsPerTick = DefaultMaxEventsPerTick
	}
	buttons := cfg.Buttons
	if buttons == nil {
		buttons = board.DefaultButtons()
	}
	if cfg.Link.Logger == nil {
		cfg.Link.Logger = cfg.Logger
	}

	l := zerolog.Nop()
	if cfg.Logger != nil {
		l = *cfg.Logger
	}

	session := link.NewSession(link.NewTransport(conn, cfg.Link), cfg.Logger)
	machine, err := board.NewMachine(buttons, session, cfg.Logger)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("invalid board: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		session: session,
		machine: machine,
		log:     l.With().Str("component", "engine").Logger(),
	}
	for _, cmd := range wmsproto.StartupCommands() {
		session.Issue(cmd)
	}
	e.log.Debug().Msg("session started")
	return e, nil
}

// Tick runs one poll cycle: query the peripheral enable register while
// GPIOD is off, apply pending events, then refresh the register snapshot
// while it is on. It returns the events applied and what they changed.
func (e *Engine) Tick() ([]wmsproto.Event, board.Changes) {
	if !e.machine.State().Enabled {
		e.session.Issue(wmsproto.CmdReadAHB1ENR)
	}

	events, changes := e.DrainEvents()

	if e.machine.State().Enabled {
		for _, cmd := range wmsproto.ResyncCommands() {
			e.session.Issue(cmd)
		}
	}
	if e.cfg.PollStatus {
		e.session.Issue(wmsproto.CmdReadStatus)
	}
	changes |= e.machine.Animate()
	return events, changes
}

// DrainEvents applies up to MaxEventsPerTick queued events to the board and
// returns them. It never blocks.
func (e *Engine) DrainEvents() ([]wmsproto.Event, board.Changes) {
	events := e.session.Drain(e.cfg.MaxEventsPerTick)
	var changes board.Changes
	for _, ev := range events {
		if ev.IsWarning() {
			e.log.Debug().Str("warning", ev.Message).Msg("protocol warning")
			continue
		}
		changes |= e.machine.Apply(ev)
	}
	return events, changes
}

// Pending returns the number of events waiting to be drained
func (e *Engine) Pending() int {
	return e.session.Pending()
}

// IssueCommand sends raw protocol text. A missing terminator is added.
func (e *Engine) IssueCommand(cmd string) error {
	if !e.Connected() {
		return link.ErrNotConnected
	}
	if cmd = wmsproto.Terminate(cmd); cmd == "" {
		return nil
	}
	e.session.Issue(cmd)
	return nil
}

// Press pushes the named button down
func (e *Engine) Press(name string) (board.Changes, error) {
	b, err := e.button(name)
	if err != nil {
		return 0, err
	}
	return e.machine.Press(b), nil
}

// Release lets the named button go
func (e *Engine) Release(name string) (board.Changes, error) {
	b, err := e.button(name)
	if err != nil {
		return 0, err
	}
	return e.machine.Release(b), nil
}

// Click presses and releases the named button
func (e *Engine) Click(name string) (board.Changes, error) {
	changes, err := e.Press(name)
	if err != nil {
		return changes, err
	}
	more, err := e.Release(name)
	return changes | more, err
}

// Halt stops the simulated target
func (e *Engine) Halt() error {
	return e.IssueCommand(wmsproto.CmdHalt)
}

// State returns a snapshot of the board
func (e *Engine) State() board.State {
	return e.machine.State()
}

// Buttons returns the board's buttons
func (e *Engine) Buttons() []board.Button {
	return e.machine.Buttons()
}

// Connected reports whether the receiver is still running
func (e *Engine) Connected() bool {
	select {
	case <-e.session.Done():
		return false
	default:
		return true
	}
}

// Done is closed once the engine has lost its connection
func (e *Engine) Done() <-chan struct{} {
	return e.session.Done()
}

// Close shuts the connection down and waits for the workers
func (e *Engine) Close() error {
	e.log.Debug().Msg("closing")
	return e.session.Close()
}

func (e *Engine) button(name string) (board.Button, error) {
	b, ok := e.machine.Button(name)
	if !ok {
		return board.Button{}, &UnknownButtonError{Name: name}
	}
	if !e.Connected() {
		return board.Button{}, link.ErrNotConnected
	}
	return b, nil
}
