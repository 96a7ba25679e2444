// Package capture implements [audio.Acquirer] on top of the miniaudio
// bindings (github.com/gen2brain/malgo). The microphone maps to a capture
// device, system audio to a WASAPI loopback device, and "both" to the two
// devices summed through the mixer package.
//
// Loopback capture yields the audio stream only; no video is ever part of a
// miniaudio device, so the retain-audio-only invariant of system capture
// holds by construction.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"
	"golang.org/x/sync/errgroup"

	"github.com/auricle-audio/auricle/pkg/audio"
	"github.com/auricle-audio/auricle/pkg/audio/pcm"
)

const (
	defaultSampleRate = 48000
	defaultChannels   = 1
)

// Compile-time interface assertion.
var _ audio.Acquirer = (*Engine)(nil)

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithSampleRate sets the native capture rate in Hz requested from devices.
// Defaults to 48000.
func WithSampleRate(rate int) Option {
	return func(e *Engine) {
		if rate > 0 {
			e.sampleRate = rate
		}
	}
}

// Engine owns the miniaudio context and resolves source modes to live
// capture streams. Create one per process and call Close when done.
type Engine struct {
	mctx       *malgo.AllocatedContext
	sampleRate int
	capability audio.Capability

	// Device openers, indirected so acquisition paths can be exercised
	// without real devices. Nil means open the corresponding miniaudio
	// device.
	openMic  func() (*deviceSource, error)
	openLoop func() (*deviceSource, error)
}

// NewEngine initialises the miniaudio context and probes platform
// capability for system-audio (loopback) capture.
func NewEngine(opts ...Option) (*Engine, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "msg", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("capture: init audio context: %w", err)
	}

	e := &Engine{
		mctx:       mctx,
		sampleRate: defaultSampleRate,
		capability: probeCapability(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the miniaudio context. All sources acquired from this
// engine must be closed first.
func (e *Engine) Close() error {
	if e.mctx == nil {
		return nil
	}
	err := e.mctx.Uninit()
	e.mctx.Free()
	e.mctx = nil
	return err
}

// Capability implements [audio.Acquirer].
func (e *Engine) Capability() audio.Capability { return e.capability }

// Acquire implements [audio.Acquirer]. See the package documentation for
// how each mode maps onto miniaudio devices.
func (e *Engine) Acquire(ctx context.Context, mode audio.SourceMode) (*audio.Acquisition, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("capture: acquire: %w", err)
	}

	switch mode {
	case audio.SourceMicrophone:
		src, err := e.mic()
		if err != nil {
			return nil, err
		}
		return &audio.Acquisition{Source: src, Mode: audio.SourceMicrophone}, nil

	case audio.SourceComputer:
		src, err := e.loopback()
		if err != nil {
			return nil, err
		}
		return &audio.Acquisition{Source: src, Mode: audio.SourceComputer}, nil

	case audio.SourceBoth:
		return e.acquireBoth(ctx)

	default:
		return nil, fmt.Errorf("capture: unknown source mode %q", mode)
	}
}

// acquireBoth opens microphone and loopback concurrently. A loopback
// failure degrades to microphone-only with a surfaced warning; a microphone
// failure is fatal regardless of the loopback outcome.
func (e *Engine) acquireBoth(ctx context.Context) (*audio.Acquisition, error) {
	var (
		mic    *deviceSource
		sys    *deviceSource
		sysErr error
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mic, err = e.mic()
		return err
	})
	g.Go(func() error {
		// Loopback failure is non-fatal here; recorded for the warning.
		sys, sysErr = e.loopback()
		return nil
	})

	if err := g.Wait(); err != nil {
		if sys != nil {
			_ = sys.Close()
		}
		return nil, err
	}

	if sysErr != nil {
		slog.Warn("capture: system audio unavailable, proceeding microphone-only", "err", sysErr)
		return &audio.Acquisition{
			Source:  mic,
			Mode:    audio.SourceMicrophone,
			Warning: fmt.Sprintf("system audio unavailable, recording microphone only: %v", sysErr),
		}, nil
	}

	return &audio.Acquisition{
		Source: newMixedSource(mic, sys),
		Mode:   audio.SourceBoth,
	}, nil
}

func (e *Engine) mic() (*deviceSource, error) {
	if e.openMic != nil {
		return e.openMic()
	}
	return e.openMicrophone()
}

func (e *Engine) loopback() (*deviceSource, error) {
	if e.openLoop != nil {
		return e.openLoop()
	}
	return e.openLoopback()
}

// openMicrophone opens the default capture device. Failures map onto the
// acquisition error contract.
func (e *Engine) openMicrophone() (*deviceSource, error) {
	src, err := e.openDevice(malgo.Capture)
	if err != nil {
		return nil, classifyMicError(err)
	}
	return src, nil
}

// openLoopback opens the system-audio loopback device. Never falls back.
func (e *Engine) openLoopback() (*deviceSource, error) {
	if !e.capability.SystemAudio {
		return nil, audio.SystemAudioUnavailable(e.capability.Reason)
	}
	src, err := e.openDevice(malgo.Loopback)
	if err != nil {
		return nil, audio.SystemAudioUnavailable(err.Error())
	}
	return src, nil
}

// openDevice initialises and starts a miniaudio device of the given type,
// delivering float32 mono frames of [pcm.FrameSize] samples.
func (e *Engine) openDevice(deviceType malgo.DeviceType) (*deviceSource, error) {
	cfg := malgo.DefaultDeviceConfig(deviceType)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = defaultChannels
	cfg.SampleRate = uint32(e.sampleRate)
	cfg.PeriodSizeInFrames = pcm.FrameSize
	cfg.Alsa.NoMMap = 1

	src := newDeviceSource(e.sampleRate, defaultChannels)

	dev, err := malgo.InitDevice(e.mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: src.onData,
		Stop: src.onStop,
	})
	if err != nil {
		return nil, err
	}
	src.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, err
	}
	return src, nil
}

// probeCapability reports whether this platform supports loopback capture.
// miniaudio implements loopback on the WASAPI backend only.
func probeCapability() audio.Capability {
	if runtime.GOOS == "windows" {
		return audio.Capability{SystemAudio: true}
	}
	return audio.Capability{
		SystemAudio: false,
		Reason:      fmt.Sprintf("loopback capture requires the WASAPI backend; not available on %s", runtime.GOOS),
	}
}

// classifyMicError maps a miniaudio device error onto the acquisition
// error contract.
func classifyMicError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", audio.ErrNoAudioSource, err)
}
