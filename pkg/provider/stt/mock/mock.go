// Package mock provides a scripted test double for transcription sessions.
package mock

import (
	"context"
	"sync"

	"github.com/auricle-audio/auricle/pkg/provider/stt"
)

// Compile-time assertion that Session satisfies stt.Session.
var _ stt.Session = (*Session)(nil)

// Session is a scripted stt.Session for tests. Events are emitted via Emit,
// sent audio is recorded for assertions, and errors can be injected on each
// interface method.
type Session struct {
	// StartErr is returned by Start when non-nil.
	StartErr error

	// SendErr is returned by SendAudio when non-nil.
	SendErr error

	mu      sync.Mutex
	state   stt.State
	sent    []string
	events  chan stt.Event
	started bool
	closed  bool
}

// NewSession returns an idle mock session with a buffered events channel.
func NewSession() *Session {
	return &Session{
		state:  stt.StateIdle,
		events: make(chan stt.Event, 64),
	}
}

// Start transitions to active unless StartErr is set, in which case the
// session closes like a real failed connect.
func (m *Session) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		m.state = stt.StateClosed
		if !m.closed {
			m.closed = true
			close(m.events)
		}
		return m.StartErr
	}
	m.started = true
	m.state = stt.StateActive
	return nil
}

// State reports the scripted state.
func (m *Session) State() stt.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetState overrides the state, for driving guard-condition tests.
func (m *Session) SetState(st stt.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
}

// SendAudio records the chunk and returns SendErr.
func (m *Session) SendAudio(audioB64 string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return stt.ErrClosed
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, audioB64)
	return nil
}

// Sent returns a copy of all audio chunks recorded so far.
func (m *Session) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

// Events returns the scripted event channel.
func (m *Session) Events() <-chan stt.Event { return m.events }

// Emit pushes one event to consumers. It panics if the session was closed,
// which surfaces test-ordering bugs immediately.
func (m *Session) Emit(ev stt.Event) {
	m.events <- ev
}

// EmitInterim is shorthand for Emit with an interim event.
func (m *Session) EmitInterim(text string) {
	m.Emit(stt.Event{Type: stt.EventInterim, Text: text})
}

// EmitCommitted is shorthand for Emit with a committed event.
func (m *Session) EmitCommitted(text string) {
	m.Emit(stt.Event{Type: stt.EventCommitted, Text: text})
}

// Close transitions to closed and closes the events channel. Idempotent.
func (m *Session) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = stt.StateClosed
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}
