// Package mock provides test doubles for audio acquisition.
package mock

import (
	"context"
	"sync"

	"github.com/auricle-audio/auricle/pkg/audio"
)

// Compile-time assertions.
var (
	_ audio.Source   = (*Source)(nil)
	_ audio.Acquirer = (*Acquirer)(nil)
)

// Source is a scripted audio.Source. Push frames with Push; Close (or a
// simulated revocation via Revoke) closes both channels like a real device
// teardown.
type Source struct {
	frames chan audio.Frame
	done   chan struct{}
	once   sync.Once
}

// NewSource returns an open source with a buffered frame channel.
func NewSource() *Source {
	return &Source{
		frames: make(chan audio.Frame, 16),
		done:   make(chan struct{}),
	}
}

// Frames returns the scripted frame channel.
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// Done is closed when the source stops.
func (s *Source) Done() <-chan struct{} { return s.done }

// Push delivers one frame to consumers. It panics if the source is closed.
func (s *Source) Push(f audio.Frame) {
	s.frames <- f
}

// Close stops the source. Idempotent.
func (s *Source) Close() error {
	s.once.Do(func() {
		close(s.done)
		close(s.frames)
	})
	return nil
}

// Revoke simulates the device being revoked externally (e.g. the user ends
// a system-audio share). Identical to Close from the consumer's view.
func (s *Source) Revoke() {
	_ = s.Close()
}

// Closed reports whether the source has stopped.
func (s *Source) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Acquirer is a scripted audio.Acquirer returning a fixed acquisition or
// error and recording the requested modes.
type Acquirer struct {
	// Acquisition is returned by Acquire when Err is nil.
	Acquisition *audio.Acquisition

	// Err is returned by Acquire when non-nil.
	Err error

	// Caps is returned by Capability.
	Caps audio.Capability

	mu    sync.Mutex
	modes []audio.SourceMode
}

// Capability returns the scripted capability.
func (a *Acquirer) Capability() audio.Capability { return a.Caps }

// Acquire records the requested mode and returns the scripted result.
func (a *Acquirer) Acquire(_ context.Context, mode audio.SourceMode) (*audio.Acquisition, error) {
	a.mu.Lock()
	a.modes = append(a.modes, mode)
	a.mu.Unlock()

	if a.Err != nil {
		return nil, a.Err
	}
	return a.Acquisition, nil
}

// Modes returns the modes requested so far.
func (a *Acquirer) Modes() []audio.SourceMode {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]audio.SourceMode, len(a.modes))
	copy(out, a.modes)
	return out
}
