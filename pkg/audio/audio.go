// Package audio defines the types and interfaces for live audio acquisition
// within Auricle.
//
// The two primary abstractions are:
//
//   - [Acquirer] — resolves a [SourceMode] into exactly one live audio stream.
//   - [Source] — an open capture stream delivering [Frame] values until it is
//     closed or the underlying device is revoked.
//
// Concrete implementations live in the capture subpackage. The interfaces are
// intentionally narrow so the recording pipeline stays decoupled from the
// capture backend.
package audio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SourceMode selects which live audio sources feed a recording session.
type SourceMode string

const (
	// SourceMicrophone captures the default microphone only.
	SourceMicrophone SourceMode = "microphone"

	// SourceComputer captures system (loopback) audio only. Requires
	// platform capability; never silently falls back to the microphone.
	SourceComputer SourceMode = "computer"

	// SourceBoth captures microphone and system audio and mixes them into a
	// single stream. Falls back to microphone-only (with a surfaced warning)
	// when system capture fails.
	SourceBoth SourceMode = "both"
)

// IsValid reports whether m is a recognised source mode.
func (m SourceMode) IsValid() bool {
	switch m {
	case SourceMicrophone, SourceComputer, SourceBoth:
		return true
	}
	return false
}

// Acquisition errors. Callers match with [errors.Is]; the wrapped message
// carries the human-readable reason.
var (
	// ErrPermissionDenied indicates the user (or OS) declined microphone access.
	ErrPermissionDenied = errors.New("audio: microphone access denied")

	// ErrNoAudioSource indicates no capture device is available.
	ErrNoAudioSource = errors.New("audio: no capture device available")

	// ErrSystemAudioUnavailable indicates system-audio capture is not possible
	// on this platform or was declined. Wrap with a reason via
	// [SystemAudioUnavailable].
	ErrSystemAudioUnavailable = errors.New("audio: system audio capture unavailable")
)

// SystemAudioUnavailable wraps [ErrSystemAudioUnavailable] with a reason.
func SystemAudioUnavailable(reason string) error {
	return fmt.Errorf("%w: %s", ErrSystemAudioUnavailable, reason)
}

// Frame is a single callback's worth of captured audio: float samples at the
// source's native rate. Frames are the atomic unit flowing from a [Source]
// into the PCM encoder.
type Frame struct {
	// Samples holds normalised samples in [-1.0, 1.0], interleaved when
	// Channels > 1. Values outside the range are clamped downstream.
	Samples []float32

	// SampleRate is the native capture rate in Hz.
	SampleRate int

	// Channels is the number of interleaved channels (1 = mono).
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Source is an open live audio stream.
//
// Implementations must be safe for concurrent use. The Frames channel is
// closed when the source ends for any reason.
type Source interface {
	// Frames returns the read-only stream of captured frames. The channel is
	// closed when the source stops, whether by Close or by external
	// revocation of the underlying device.
	Frames() <-chan Frame

	// Done is closed when the source has stopped for any reason, including
	// the user revoking a system-audio share. Watchers must treat this
	// exactly like an explicit stop and run the same teardown path.
	Done() <-chan struct{}

	// Close stops capture and releases all devices and mixing resources.
	// Idempotent; subsequent calls return nil.
	Close() error
}

// Capability describes what the capture backend can do on this platform.
// Computed from the environment at startup, not user-settable at runtime.
type Capability struct {
	// SystemAudio reports whether loopback (system audio) capture is supported.
	SystemAudio bool

	// Reason is a human-readable explanation when SystemAudio is false.
	Reason string
}

// Acquisition is the result of resolving a [SourceMode]: exactly one source,
// plus the effective mode and any non-fatal degradation notice.
type Acquisition struct {
	// Source is the single live stream feeding the encoder.
	Source Source

	// Mode is the effective mode after any degradation (e.g. "both" falling
	// back to microphone-only).
	Mode SourceMode

	// Warning carries a non-fatal degradation notice to surface to the user.
	// Empty when acquisition matched the requested mode exactly.
	Warning string
}

// Acquirer resolves a configured source mode into one live audio stream.
//
// Implementations must be safe for concurrent use.
type Acquirer interface {
	// Capability reports the platform's system-audio capture support.
	Capability() Capability

	// Acquire opens the source(s) for mode and returns a single stream.
	//
	// Failure modes follow the acquisition contract: [ErrPermissionDenied],
	// [ErrNoAudioSource], [ErrSystemAudioUnavailable]. For [SourceBoth], a
	// failed system share degrades to microphone-only and sets
	// [Acquisition.Warning] instead of failing.
	Acquire(ctx context.Context, mode SourceMode) (*Acquisition, error)
}
