// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"

	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
	"github.com/rs/zerolog"
)

// Session runs the sender and receiver workers for one Transport. The caller
// enqueues commands and polls events; it never blocks on the connection.
type Session struct {
	transport    *Transport
	commands     *Queue[string]
	events       *Queue[wmsproto.Event]
	senderDone   chan struct{}
	receiverDone chan struct{}
	log          zerolog.Logger
}

// NewSession starts the workers on t
func NewSession(t *Transport, logger *zerolog.Logger) *Session {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	s := &Session{
		transport:    t,
		commands:     NewQueue[string](),
		events:       NewQueue[wmsproto.Event](),
		senderDone:   make(chan struct{}),
		receiverDone: make(chan struct{}),
		log:          l.With().Str("component", "session").Logger(),
	}
	go s.sendLoop()
	go s.receiveLoop()
	return s
}

// Issue enqueues a command for the sender worker
func (s *Session) Issue(cmd string) {
	if !s.commands.Put(cmd) {
		s.log.Debug().Str("command", cmd).Msg("dropped command after close")
	}
}

// Drain returns up to max queued events without blocking
func (s *Session) Drain(max int) []wmsproto.Event {
	var events []wmsproto.Event
	for len(events) < max {
		ev, ok := s.events.TryGet()
		if !ok {
			break
		}
		events = append(events, ev)
	}
	return events
}

// Pending returns the number of events waiting for the caller
func (s *Session) Pending() int {
	return s.events.Len()
}

// Done is closed when the receiver worker has stopped. The session is
// disconnected from then on.
func (s *Session) Done() <-chan struct{} {
	return s.receiverDone
}

// Close closes the connection and waits for both workers to exit
func (s *Session) Close() error {
	err := s.transport.Close()
	s.commands.Close()
	<-s.senderDone
	<-s.receiverDone
	return err
}

func (s *Session) sendLoop() {
	defer close(s.senderDone)
	s.log.Debug().Msg("sender started")
	defer s.log.Debug().Msg("sender stopped")

	for {
		cmd, ok := s.commands.Get()
		if !ok {
			return
		}
		if err := s.transport.Send(cmd); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			s.log.Warn().Err(err).Str("command", cmd).Msg("send failed")
			s.events.Put(wmsproto.WarningEvent("Warning: "+err.Error(), ""))
		}
	}
}

func (s *Session) receiveLoop() {
	defer close(s.receiverDone)
	s.log.Debug().Msg("receiver started")
	defer s.log.Debug().Msg("receiver stopped")

	for {
		text, err := s.transport.Receive()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				s.log.Warn().Err(err).Msg("receiver giving up")
				s.events.Put(wmsproto.WarningEvent("Warning: "+err.Error(), ""))
				return
			}
			// Connection gone: stop the sender too
			s.commands.Close()
			return
		}
		for _, ev := range wmsproto.Classify(text) {
			s.events.Put(ev)
		}
	}
}
