package capture

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/auricle-audio/auricle/pkg/audio"
	"github.com/auricle-audio/auricle/pkg/audio/mixer"
)

// Compile-time interface assertions.
var (
	_ audio.Source = (*deviceSource)(nil)
	_ audio.Source = (*mixedSource)(nil)
)

// deviceSource adapts one miniaudio device to the [audio.Source] interface.
//
// The data callback runs on miniaudio's audio thread and must never block:
// frames the consumer cannot keep up with are dropped. The stop callback
// fires both on explicit Close and on external revocation (device removed,
// share ended), so both paths close Done identically.
type deviceSource struct {
	dev *malgo.Device

	frames chan audio.Frame
	done   chan struct{}

	stopOnce   sync.Once
	framesOnce sync.Once
	warnedFull sync.Once

	sampleRate int
	channels   int

	// samplesSent is touched only on the audio thread.
	samplesSent uint64
}

func newDeviceSource(sampleRate, channels int) *deviceSource {
	return &deviceSource{
		frames:     make(chan audio.Frame, 8),
		done:       make(chan struct{}),
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Frames implements [audio.Source].
func (s *deviceSource) Frames() <-chan audio.Frame { return s.frames }

// Done implements [audio.Source].
func (s *deviceSource) Done() <-chan struct{} { return s.done }

// Close implements [audio.Source]. It stops and releases the device, then
// closes the frame channel. Idempotent.
func (s *deviceSource) Close() error {
	s.stopOnce.Do(func() { close(s.done) })
	if s.dev != nil {
		// Uninit blocks until the audio thread has finished its callbacks,
		// so closing the frame channel afterwards is safe.
		s.dev.Uninit()
		s.dev = nil
	}
	s.framesOnce.Do(func() { close(s.frames) })
	return nil
}

// onData is the miniaudio data callback: float32 little-endian input bytes,
// frameCount frames of s.channels interleaved samples.
func (s *deviceSource) onData(_, input []byte, frameCount uint32) {
	select {
	case <-s.done:
		return
	default:
	}

	n := int(frameCount) * s.channels
	if len(input) < n*4 {
		n = len(input) / 4
	}
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[i*4:]))
	}

	ts := time.Duration(s.samplesSent) * time.Second / time.Duration(s.sampleRate*s.channels)
	s.samplesSent += uint64(n)

	select {
	case s.frames <- audio.Frame{
		Samples:    samples,
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		Timestamp:  ts,
	}:
	default:
		s.warnedFull.Do(func() {
			slog.Warn("capture: consumer not keeping up, dropping frames",
				"sample_rate", s.sampleRate)
		})
	}
}

// onStop fires when the device stops for any reason, including revocation.
func (s *deviceSource) onStop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// mixedSource sums a microphone and a loopback source into one stream.
// Both devices share a clock domain (same context, same rate and period),
// so frames pair one-to-one in the mixer.
type mixedSource struct {
	mic    *deviceSource
	sys    *deviceSource
	frames <-chan audio.Frame
	done   chan struct{}
	once   sync.Once
}

func newMixedSource(mic, sys *deviceSource) *mixedSource {
	m := &mixedSource{
		mic:    mic,
		sys:    sys,
		frames: mixer.Mix(mic.Frames(), sys.Frames()),
		done:   make(chan struct{}),
	}
	// Revocation of either device ends the mixed source.
	go func() {
		select {
		case <-mic.Done():
		case <-sys.Done():
		}
		m.once.Do(func() { close(m.done) })
	}()
	return m
}

// Frames implements [audio.Source].
func (m *mixedSource) Frames() <-chan audio.Frame { return m.frames }

// Done implements [audio.Source].
func (m *mixedSource) Done() <-chan struct{} { return m.done }

// Close implements [audio.Source]. Releases both devices and the mixing
// graph. Idempotent.
func (m *mixedSource) Close() error {
	m.once.Do(func() { close(m.done) })
	err1 := m.mic.Close()
	err2 := m.sys.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
