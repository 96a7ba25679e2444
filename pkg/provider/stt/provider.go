// Package stt defines the transcription-session abstraction for Auricle.
//
// A [Session] is a live connection to a speech-to-text engine: audio frames
// go in, interim and committed transcript events come out. Two variants
// implement the interface — the stream subpackage speaks the persistent
// WebSocket protocol of the remote transcription service, and the whisper
// subpackage runs a local continuous recognizer as a fallback. Callers pick
// a variant by configuration; everything downstream is variant-agnostic.
//
// Implementations must be safe for concurrent use. The Events channel is
// goroutine-safe by construction and is closed when the session ends.
package stt

import (
	"context"
	"errors"
)

// State is the lifecycle state of a transcription session.
//
// Valid transitions: Idle → Connecting → Active → Closed, plus
// Connecting → Closed on connect failure and Active → Closed on error or
// explicit stop. There is no path out of Closed; a dropped session is
// restarted by creating a new one.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateClosed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventType classifies transcript events emitted by a [Session].
type EventType int

const (
	// EventInterim carries a tentative, revisable partial result. Each
	// interim event replaces the previous interim text wholesale.
	EventInterim EventType = iota

	// EventCommitted carries finalized transcript text. Committed text is
	// immutable once received.
	EventCommitted

	// EventError reports a session-fatal error. It is the last event before
	// the Events channel closes.
	EventError
)

// Event is a single message from the transcription engine, delivered in the
// order the engine produced it — no reordering or batching.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Config describes the recognition parameters for a new session.
type Config struct {
	// Model is the engine-specific model identifier.
	Model string

	// Language is the BCP-47 language code for recognition.
	Language string

	// SampleRate is the PCM input rate in Hz. Auricle always streams 16000.
	SampleRate int

	// CommitStrategy is the policy by which the engine finalizes partials
	// (e.g. "vad" for voice-activity detection).
	CommitStrategy string
}

// Session errors.
var (
	// ErrTokenUnavailable indicates the session token could not be obtained.
	// Fatal to session start.
	ErrTokenUnavailable = errors.New("stt: session token unavailable")

	// ErrNotReady is returned by SendAudio when the transport cannot accept
	// the frame right now. The frame is dropped; callers must not retry it.
	ErrNotReady = errors.New("stt: transport not ready")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("stt: session is closed")

	// ErrTransport wraps a connection-level failure on an active session.
	// Carried by the final error event before the events channel closes.
	ErrTransport = errors.New("stt: transport failure")
)

// Session is an open transcription session. Obtain one from a variant
// constructor, call Start once, stream audio, and consume Events until the
// channel closes.
type Session interface {
	// Start drives the session from Idle through Connecting to Active. It
	// blocks until the engine confirms the session (or fails), after which
	// audio may flow. A failed Start leaves the session Closed; there is no
	// automatic retry.
	Start(ctx context.Context) error

	// State reports the current lifecycle state.
	State() State

	// SendAudio delivers one base64-encoded 16 kHz mono PCM16 frame. It
	// never blocks: [ErrNotReady] means the frame was dropped, [ErrClosed]
	// that the session has ended.
	SendAudio(audioB64 string) error

	// Events returns the read-only stream of transcript events. Closed when
	// the session ends for any reason.
	Events() <-chan Event

	// Close stops the session and releases all resources. It does not touch
	// any transcript state held by consumers. Idempotent.
	Close() error
}
