package whisper

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/auricle-audio/auricle/pkg/provider/stt"
)

// Compile-time assertion that Session satisfies stt.Session.
var _ stt.Session = (*Session)(nil)

// Session is a live local transcription session. Audio arrives as base64
// PCM chunks, is segmented by silence, and each utterance is transcribed
// with a fresh whisper context. A failed inference is logged and the loop
// continues with the next utterance, so a single bad segment never ends
// the session.
type Session struct {
	engine *Engine

	language   string
	sampleRate int

	audioCh chan []byte
	events  chan stt.Event

	mu    sync.Mutex
	state stt.State

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSession creates a session from the shared engine. Zero fields of cfg
// fall back to the engine defaults.
func (e *Engine) NewSession(cfg stt.Config) *Session {
	lang := cfg.Language
	if lang == "" {
		lang = e.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = e.sampleRate
	}
	return &Session{
		engine:     e,
		language:   lang,
		sampleRate: sr,
		audioCh:    make(chan []byte, 256),
		events:     make(chan stt.Event, 64),
		state:      stt.StateIdle,
		done:       make(chan struct{}),
	}
}

// Start spawns the processing loop. Unlike the streaming variant there is no
// handshake to wait for, so the session transitions to active immediately.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stt.StateIdle {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("whisper: start from state %s: %w", st, stt.ErrClosed)
	}
	s.state = stt.StateActive
	s.mu.Unlock()

	s.wg.Add(1)
	go s.processLoop(ctx)
	return nil
}

// State reports the current lifecycle state.
func (s *Session) State() stt.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the channel of transcription events. It is closed when the
// session ends.
func (s *Session) Events() <-chan stt.Event { return s.events }

// SendAudio queues one base64-encoded chunk of 16-bit mono PCM. It never
// blocks; when the queue is full the chunk is dropped and ErrNotReady is
// returned so the caller can count the drop.
func (s *Session) SendAudio(audioB64 string) error {
	switch s.State() {
	case stt.StateClosed:
		return stt.ErrClosed
	case stt.StateActive:
	default:
		return stt.ErrNotReady
	}

	pcm, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		return fmt.Errorf("whisper: decode audio chunk: %w", err)
	}

	select {
	case s.audioCh <- pcm:
		return nil
	case <-s.done:
		return stt.ErrClosed
	default:
		return stt.ErrNotReady
	}
}

// Close flushes any pending speech, stops the processing loop, and closes
// the events channel. Safe to call multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = stt.StateClosed
		s.mu.Unlock()
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop owns all silence-detection and buffering state.
func (s *Session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
	)

	bytesPerMs := s.sampleRate * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBufferBytes := s.engine.maxBufferDurationMs * bytesPerMs

	doFlush := func() {
		if len(buffer) == 0 || !hadSpeech {
			buffer = nil
			hadSpeech = false
			silenceMs = 0
			return
		}

		pcm := buffer
		buffer = nil
		hadSpeech = false
		silenceMs = 0

		text, err := s.infer(pcm)
		if err != nil {
			slog.Error("whisper inference failed, continuing with next utterance", "error", err)
			return
		}
		if text == "" {
			return
		}

		s.emit(stt.Event{Type: stt.EventInterim, Text: text})
		s.emit(stt.Event{Type: stt.EventCommitted, Text: text})
	}

	for {
		select {
		case <-ctx.Done():
			doFlush()
			return

		case <-s.done:
			doFlush()
			return

		case chunk := <-s.audioCh:
			rms := computeRMS(chunk)
			chunkMs := chunkDurationMs(chunk, s.sampleRate)

			if rms < defaultRMSThreshold {
				if hadSpeech {
					silenceMs += chunkMs
					buffer = append(buffer, chunk...)
					if silenceMs >= s.engine.silenceThresholdMs {
						doFlush()
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, chunk...)
				if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
					doFlush()
				}
			}
		}
	}
}

// infer runs one batch inference over a buffered utterance using a fresh
// whisper context. Contexts are not thread-safe but the underlying model is
// shared safely across sessions.
func (s *Session) infer(pcm []byte) (string, error) {
	samples := pcmToFloat32(pcm)

	wctx, err := s.engine.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", s.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

func (s *Session) emit(ev stt.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}
