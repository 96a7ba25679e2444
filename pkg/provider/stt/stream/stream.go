// Package stream implements [stt.Session] over the transcription service's
// persistent WebSocket protocol.
//
// A session authenticates with a short-lived token fetched at connect time,
// streams base64-encoded PCM16 frames as input_audio_chunk messages, and
// receives session_started, partial_transcript, committed_transcript, and
// error events. There is no automatic reconnection: a dropped connection
// surfaces an error event and the caller decides whether to start a new
// session.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/auricle-audio/auricle/pkg/provider/stt"
	"github.com/auricle-audio/auricle/pkg/provider/token"
)

const (
	defaultModel          = "rt-general-1"
	defaultLanguage       = "en"
	defaultCommitStrategy = "vad"
	defaultSampleRate     = 16000

	// audioFormat is the only wire format the encoder produces.
	audioFormat = "pcm_16000"
)

// Compile-time interface assertion.
var _ stt.Session = (*Session)(nil)

// outboundMessage is the JSON frame carrying one chunk of encoded audio.
type outboundMessage struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
}

// inboundMessage is the JSON structure of every message the service sends.
type inboundMessage struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
	Error       string `json:"error"`
	Message     string `json:"message"`
}

// Session is a live streaming transcription session. Create with [New],
// drive with Start, and always Close.
type Session struct {
	endpoint string
	cfg      stt.Config
	tokens   token.Provider

	conn *websocket.Conn

	events  chan stt.Event
	audio   chan string
	started chan struct{}
	// connectErr carries a failure that happens before the session is
	// confirmed, so Start can surface it synchronously.
	connectErr chan error

	lifeCtx context.Context
	cancel  context.CancelFunc

	mu    sync.Mutex
	state stt.State

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	dropped atomic.Uint64
}

// New creates an idle session against the given WebSocket endpoint. Zero
// fields of cfg fall back to protocol defaults.
func New(endpoint string, tokens token.Provider, cfg stt.Config) *Session {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.CommitStrategy == "" {
		cfg.CommitStrategy = defaultCommitStrategy
	}

	return &Session{
		endpoint:   endpoint,
		cfg:        cfg,
		tokens:     tokens,
		events:     make(chan stt.Event, 64),
		audio:      make(chan string, 256),
		started:    make(chan struct{}),
		connectErr: make(chan error, 1),
		done:       make(chan struct{}),
		state:      stt.StateIdle,
	}
}

// Start implements [stt.Session]. It fetches a session token, dials the
// service, and blocks until the session_started confirmation arrives.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stt.StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("stream: start from state %q", state)
	}
	s.state = stt.StateConnecting
	s.mu.Unlock()

	tok, err := s.tokens.Token(ctx)
	if err != nil || tok == "" {
		s.setState(stt.StateClosed)
		close(s.events)
		return fmt.Errorf("stream: %w: %v", stt.ErrTokenUnavailable, err)
	}

	wsURL, err := s.buildURL(tok)
	if err != nil {
		s.setState(stt.StateClosed)
		close(s.events)
		return fmt.Errorf("stream: build URL: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		s.setState(stt.StateClosed)
		close(s.events)
		return fmt.Errorf("stream: dial: %w", err)
	}
	s.conn = conn
	s.lifeCtx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()

	select {
	case <-s.started:
		s.setState(stt.StateActive)
		return nil
	case err := <-s.connectErr:
		_ = s.Close()
		return fmt.Errorf("stream: connect: %w", err)
	case <-ctx.Done():
		_ = s.Close()
		return fmt.Errorf("stream: connect: %w", ctx.Err())
	}
}

// State implements [stt.Session].
func (s *Session) State() stt.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st stt.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// SendAudio implements [stt.Session]. Never blocks; a full outbound buffer
// drops the frame and reports [stt.ErrNotReady].
func (s *Session) SendAudio(audioB64 string) error {
	switch s.State() {
	case stt.StateClosed:
		return stt.ErrClosed
	case stt.StateActive:
	default:
		return stt.ErrNotReady
	}

	select {
	case s.audio <- audioB64:
		return nil
	default:
		s.dropped.Add(1)
		return stt.ErrNotReady
	}
}

// Dropped reports how many frames were dropped due to transport
// backpressure.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

// Events implements [stt.Session].
func (s *Session) Events() <-chan stt.Event { return s.events }

// Close implements [stt.Session]. Safe to call from any goroutine and
// more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setState(stt.StateClosed)
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
		if s.conn != nil {
			_ = s.conn.Close(websocket.StatusNormalClosure, "session closed")
			s.wg.Wait()
		}
	})
	return nil
}

// buildURL constructs the connect URL with the recognition parameters and
// the session token.
func (s *Session) buildURL(tok string) (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", s.cfg.Model)
	q.Set("sample_rate", strconv.Itoa(s.cfg.SampleRate))
	q.Set("audio_format", audioFormat)
	q.Set("language_code", s.cfg.Language)
	q.Set("commit_strategy", s.cfg.CommitStrategy)
	q.Set("token", tok)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// writeLoop sends queued audio chunks as input_audio_chunk messages.
func (s *Session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.audio:
			msg, err := json.Marshal(outboundMessage{
				MessageType: "input_audio_chunk",
				AudioBase64: chunk,
			})
			if err != nil {
				continue
			}
			if err := s.conn.Write(s.lifeCtx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// readLoop receives service messages and dispatches transcript events in
// arrival order. Any error-typed message or transport failure ends the
// session: the error is surfaced once and full teardown follows.
func (s *Session) readLoop() {
	defer s.wg.Done()
	defer close(s.events)

	for {
		_, data, err := s.conn.Read(s.lifeCtx)
		if err != nil {
			select {
			case <-s.done:
				// Explicit stop; not an error.
			default:
				s.fail(fmt.Errorf("%w: %w", stt.ErrTransport, err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Unparseable frames are ignored, matching the service's
			// keep-alive behaviour.
			continue
		}

		switch msg.MessageType {
		case "session_started":
			select {
			case <-s.started:
			default:
				close(s.started)
			}

		case "partial_transcript":
			s.emit(stt.Event{Type: stt.EventInterim, Text: msg.Text})

		case "committed_transcript":
			s.emit(stt.Event{Type: stt.EventCommitted, Text: msg.Text})

		default:
			if msg.Error != "" || msg.Message != "" {
				reason := msg.Error
				if reason == "" {
					reason = msg.Message
				}
				s.fail(errors.New(reason))
				return
			}
			// Unknown but non-error message types are ignored.
		}
	}
}

// emit delivers ev unless the session is shutting down.
func (s *Session) emit(ev stt.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// fail routes a session-fatal error: to Start when still connecting, to
// the Events channel once active. Teardown runs on a separate goroutine
// because Close waits for this loop to exit.
func (s *Session) fail(err error) {
	select {
	case <-s.started:
		s.emit(stt.Event{Type: stt.EventError, Err: err})
	default:
		select {
		case s.connectErr <- err:
		default:
		}
	}
	go s.Close()
}
