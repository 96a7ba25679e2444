package capture

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/auricle-audio/auricle/pkg/audio"
)

func TestClassifyMicError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"access denied", errors.New("Access Denied"), audio.ErrPermissionDenied},
		{"permission", errors.New("operation not permitted: permission required"), audio.ErrPermissionDenied},
		{"no device", errors.New("no backend device found"), audio.ErrNoAudioSource},
		{"other", errors.New("failed to initialize device"), audio.ErrNoAudioSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyMicError(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyMicError(%v) = %v, want wrapped %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestAcquire_ComputerModeWithoutCapabilityFails(t *testing.T) {
	t.Parallel()

	// No capability: the computer mode must fail, never fall back.
	e := &Engine{
		sampleRate: defaultSampleRate,
		capability: audio.Capability{SystemAudio: false, Reason: "no loopback backend"},
	}

	_, err := e.Acquire(context.Background(), audio.SourceComputer)
	if !errors.Is(err, audio.ErrSystemAudioUnavailable) {
		t.Fatalf("got %v, want ErrSystemAudioUnavailable", err)
	}
}

func TestAcquire_UnknownMode(t *testing.T) {
	t.Parallel()

	e := &Engine{sampleRate: defaultSampleRate}
	if _, err := e.Acquire(context.Background(), audio.SourceMode("radio")); err == nil {
		t.Fatal("expected error for unknown source mode")
	}
}

func TestAcquireBoth_LoopbackFailureDegradesToMicrophone(t *testing.T) {
	t.Parallel()

	mic := newDeviceSource(defaultSampleRate, defaultChannels)
	e := &Engine{
		sampleRate: defaultSampleRate,
		openMic:    func() (*deviceSource, error) { return mic, nil },
		openLoop: func() (*deviceSource, error) {
			return nil, audio.SystemAudioUnavailable("no loopback backend")
		},
	}

	acq, err := e.Acquire(context.Background(), audio.SourceBoth)
	if err != nil {
		t.Fatalf("Acquire(both) error: %v", err)
	}
	defer acq.Source.Close()

	if acq.Mode != audio.SourceMicrophone {
		t.Errorf("Mode = %q, want microphone after loopback failure", acq.Mode)
	}
	if acq.Warning == "" || !strings.Contains(acq.Warning, "microphone only") {
		t.Errorf("Warning = %q, want a microphone-only degradation notice", acq.Warning)
	}
	if acq.Source != audio.Source(mic) {
		t.Error("expected the microphone source to be handed through unmixed")
	}
}

func TestAcquireBoth_MicrophoneFailureIsFatal(t *testing.T) {
	t.Parallel()

	sys := newDeviceSource(defaultSampleRate, defaultChannels)
	e := &Engine{
		sampleRate: defaultSampleRate,
		openMic:    func() (*deviceSource, error) { return nil, audio.ErrPermissionDenied },
		openLoop:   func() (*deviceSource, error) { return sys, nil },
	}

	if _, err := e.Acquire(context.Background(), audio.SourceBoth); !errors.Is(err, audio.ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}

	// The successfully opened loopback source must not leak.
	select {
	case <-sys.Done():
	default:
		t.Error("expected the loopback source to be closed on microphone failure")
	}
}

func TestAcquireBoth_Mixes(t *testing.T) {
	t.Parallel()

	mic := newDeviceSource(defaultSampleRate, defaultChannels)
	sys := newDeviceSource(defaultSampleRate, defaultChannels)
	e := &Engine{
		sampleRate: defaultSampleRate,
		openMic:    func() (*deviceSource, error) { return mic, nil },
		openLoop:   func() (*deviceSource, error) { return sys, nil },
	}

	acq, err := e.Acquire(context.Background(), audio.SourceBoth)
	if err != nil {
		t.Fatalf("Acquire(both) error: %v", err)
	}
	defer acq.Source.Close()

	if acq.Mode != audio.SourceBoth {
		t.Errorf("Mode = %q, want both", acq.Mode)
	}
	if acq.Warning != "" {
		t.Errorf("Warning = %q, want empty when both devices opened", acq.Warning)
	}
}

func TestMixedSource_RevocationClosesDone(t *testing.T) {
	t.Parallel()

	mic := newDeviceSource(48000, 1)
	sys := newDeviceSource(48000, 1)
	m := newMixedSource(mic, sys)

	// Simulate the user ending the system-audio share.
	sys.onStop()

	select {
	case <-m.Done():
	case <-mic.Done():
		t.Fatal("microphone done should not fire")
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Idempotent.
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
