package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/auricle-audio/auricle/internal/config"
	"github.com/auricle-audio/auricle/internal/jargon"
	"github.com/auricle-audio/auricle/internal/moments"
	"github.com/auricle-audio/auricle/internal/observe"
	"github.com/auricle-audio/auricle/internal/transcript"
	"github.com/auricle-audio/auricle/pkg/audio"
	"github.com/auricle-audio/auricle/pkg/audio/pcm"
	"github.com/auricle-audio/auricle/pkg/provider/stt"
)

// captureStoreTimeout bounds the moment insert when a capture fires.
const captureStoreTimeout = 5 * time.Second

// SessionInfo holds metadata about an active listening session.
type SessionInfo struct {
	// StartedAt is when the session was started.
	StartedAt time.Time

	// Mode is the effective source mode after any degradation.
	Mode audio.SourceMode

	// Warning carries a non-fatal acquisition notice (e.g. "both" degraded
	// to microphone-only). Empty when acquisition matched the request.
	Warning string
}

// SessionManager owns the recording-session lifecycle: acquire audio →
// encode → transcribe → consume events → detect jargon. Only one session can
// be active at a time. Stop, a transport error, and source revocation all
// run the same teardown path.
//
// The rolling buffer and live transcript outlive individual sessions:
// stopping does not clear them, and the buffer is only emptied by a fired
// moment capture or an explicit Clear. The jargon word set and explanation
// cache reset at session start.
//
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu          sync.Mutex
	active      bool
	gen         uint64
	info        SessionInfo
	source      audio.Source
	session     stt.Session
	coordinator *jargon.Coordinator
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	capture        *time.Timer
	capturePending bool

	live   *transcript.Live
	buffer *transcript.RollingBuffer

	// Dependencies injected at construction.
	cfg        *config.Config
	acquirer   audio.Acquirer
	newSession SessionFactory
	provider   jargon.Provider
	store      moments.Store
	metrics    *observe.Metrics
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Config     *config.Config
	Acquirer   audio.Acquirer
	NewSession SessionFactory
	Provider   jargon.Provider
	Store      moments.Store
	Metrics    *observe.Metrics
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &SessionManager{
		cfg:        cfg.Config,
		acquirer:   cfg.Acquirer,
		newSession: cfg.NewSession,
		provider:   cfg.Provider,
		store:      cfg.Store,
		metrics:    m,
		live:       transcript.NewLive(),
		buffer:     transcript.NewRollingBuffer(cfg.Config.Buffer.Retention()),
	}
}

// Start begins a new listening session: it acquires the configured audio
// source, opens a transcription session, and starts the encoder pump, the
// event consumer, and the jargon detection loop.
//
// Acquisition and connection failures surface synchronously and leave
// nothing running. Returns an error if a session is already active.
func (sm *SessionManager) Start(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.active {
		return fmt.Errorf("app: a listening session is already active")
	}

	mode := sm.cfg.Audio.SourceMode
	if mode == "" {
		mode = audio.SourceMicrophone
	}

	acq, err := sm.acquirer.Acquire(ctx, mode)
	if err != nil {
		return fmt.Errorf("app: acquire audio source: %w", err)
	}
	if acq.Warning != "" {
		slog.Warn("audio acquisition degraded", "requested", mode, "effective", acq.Mode, "warning", acq.Warning)
	}

	sess, err := sm.newSession(sm.sttConfig())
	if err != nil {
		_ = acq.Source.Close()
		return fmt.Errorf("app: create transcription session: %w", err)
	}
	if err := sess.Start(ctx); err != nil {
		_ = sess.Close()
		_ = acq.Source.Close()
		return fmt.Errorf("app: start transcription session: %w", err)
	}

	sm.live.Reset()

	sessionCtx, cancel := context.WithCancel(context.Background())

	var coord *jargon.Coordinator
	if sm.provider != nil {
		coord = jargon.NewCoordinator(observeProvider(sm.provider, sm.metrics), sm.live.Text,
			jargon.WithInterval(sm.cfg.Jargon.Interval()))
		coord.OnDetected = func(newWords int) {
			if newWords > 0 {
				slog.Info("jargon detected", "new_words", newWords)
			}
		}
	}

	consumer := transcript.NewConsumer(sm.live, sm.buffer)
	consumer.OnInterim = func(string) {
		sm.metrics.RecordTranscriptEvent(sessionCtx, "interim")
	}
	consumer.OnCommitted = func(string) {
		sm.metrics.RecordTranscriptEvent(sessionCtx, "committed")
		if coord != nil {
			coord.Poke()
		}
	}
	consumer.OnError = func(error) {
		sm.metrics.RecordTranscriptEvent(sessionCtx, "error")
	}

	streamer := pcm.NewStreamer(sess)
	streamer.OnEncoded = func(bytes int) {
		sm.metrics.FramesEncoded.Add(sessionCtx, 1)
		sm.metrics.BytesStreamed.Add(sessionCtx, int64(bytes))
	}
	streamer.OnDropped = func() {
		sm.metrics.FramesDropped.Add(sessionCtx, 1)
	}

	sm.gen++
	gen := sm.gen

	sm.wg.Add(2)
	go func() {
		defer sm.wg.Done()
		streamer.Run(acq.Source.Frames())
	}()
	go func() {
		consumer.Run(sess.Events())
		sm.wg.Done()
		// The events channel closed: either an orderly Close or a
		// transport failure. Run the shared teardown; a no-op if Stop
		// already did.
		sm.stopGeneration(gen, "transcription session ended")
	}()

	// A revoked source (e.g. the user ends a system-audio share) is treated
	// exactly like an explicit stop.
	go func() {
		select {
		case <-acq.Source.Done():
			sm.stopGeneration(gen, "audio source ended")
		case <-sessionCtx.Done():
		}
	}()

	if coord != nil {
		coord.Start(sessionCtx)
	}

	sm.active = true
	sm.source = acq.Source
	sm.session = sess
	sm.coordinator = coord
	sm.cancel = cancel
	sm.info = SessionInfo{
		StartedAt: time.Now().UTC(),
		Mode:      acq.Mode,
		Warning:   acq.Warning,
	}

	sm.metrics.ActiveSessions.Add(sessionCtx, 1)
	slog.Info("listening session started", "mode", acq.Mode)

	return nil
}

// Stop ends the active listening session. The rolling buffer and live
// transcript are left intact; clearing is a separate, explicit operation.
//
// Returns an error if no session is active.
func (sm *SessionManager) Stop() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.active {
		return fmt.Errorf("app: no active session to stop")
	}
	sm.stopLocked("requested")
	return nil
}

// stopGeneration tears down the session identified by gen. A stale
// generation (the session already stopped or was replaced) is a no-op, so
// the revocation and session-end watchers cannot kill a newer session.
func (sm *SessionManager) stopGeneration(gen uint64, reason string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.active || sm.gen != gen {
		return
	}
	sm.stopLocked(reason)
}

// stopLocked runs the single teardown path. Callers hold sm.mu.
func (sm *SessionManager) stopLocked(reason string) {
	// Closers run in reverse acquisition order: detection loop first, then
	// the transcription session (closes the event stream), then the source
	// (closes the frame stream).
	if sm.coordinator != nil {
		sm.coordinator.Stop()
	}
	if err := sm.session.Close(); err != nil {
		slog.Warn("session close error", "err", err)
	}
	if err := sm.source.Close(); err != nil {
		slog.Warn("source close error", "err", err)
	}

	sm.wg.Wait()
	sm.cancel()

	sm.metrics.ActiveSessions.Add(context.Background(), -1)

	sm.active = false
	sm.source = nil
	sm.session = nil
	sm.cancel = nil
	// The coordinator stays readable: the word set and cache live until the
	// next session starts.

	slog.Info("listening session stopped", "reason", reason)
}

// ─── Moment capture ──────────────────────────────────────────────────────────

// CaptureMoment arms a one-shot capture: after the configured lead-out the
// buffered transcript window is saved as a moment and the buffer is cleared.
// The caller can cancel with [SessionManager.CancelCapture] before it fires.
//
// Returns an error if a capture is already pending.
func (sm *SessionManager) CaptureMoment() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.capturePending {
		return fmt.Errorf("app: a moment capture is already pending")
	}

	leadOut := sm.cfg.Buffer.CaptureLeadOut()
	window := sm.cfg.Buffer.Retention() + leadOut

	sm.capturePending = true
	sm.capture = time.AfterFunc(leadOut, func() {
		sm.finishCapture(window)
	})

	slog.Info("moment capture armed", "fires_in", leadOut)
	return nil
}

// CancelCapture stops a pending moment capture. Reports whether a capture
// was pending.
func (sm *SessionManager) CancelCapture() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.capturePending {
		return false
	}
	sm.capture.Stop()
	sm.capture = nil
	sm.capturePending = false
	slog.Info("moment capture cancelled")
	return true
}

// finishCapture saves the buffered window as a moment. The buffer is only
// cleared after a successful insert, so a failed save can be retried.
func (sm *SessionManager) finishCapture(window time.Duration) {
	sm.mu.Lock()
	sm.capture = nil
	sm.capturePending = false
	text := sm.buffer.Query(window)
	sm.mu.Unlock()

	if text == "" {
		slog.Info("moment capture fired with no transcript, nothing saved")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), captureStoreTimeout)
	defer cancel()

	m := &moments.Moment{
		Transcript:      text,
		DurationSeconds: int(window.Seconds()),
	}
	if err := sm.store.InsertMoment(ctx, m); err != nil {
		slog.Error("moment capture save failed, buffer retained", "err", err)
		return
	}

	sm.buffer.Clear()
	slog.Info("moment captured", "id", m.ID, "duration_s", m.DurationSeconds)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// IsActive reports whether a listening session is currently running.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.active
}

// CapturePending reports whether a moment capture is armed.
func (sm *SessionManager) CapturePending() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.capturePending
}

// Info returns metadata about the active session. Zero value when no session
// is active.
func (sm *SessionManager) Info() SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.info
}

// LiveText returns the current live transcript (committed plus interim).
func (sm *SessionManager) LiveText() string {
	return sm.live.Text()
}

// Buffer returns the rolling transcript buffer.
func (sm *SessionManager) Buffer() *transcript.RollingBuffer {
	return sm.buffer
}

// Words returns the jargon words detected so far, sorted. Nil when no
// detection has run.
func (sm *SessionManager) Words() []string {
	sm.mu.Lock()
	coord := sm.coordinator
	sm.mu.Unlock()

	if coord == nil {
		return nil
	}
	return coord.Words()
}

// Explain resolves a word explanation via the jargon coordinator, using the
// recent buffered transcript as context. Never returns an error; a missing
// provider or a failed lookup yields the not-jargon default.
func (sm *SessionManager) Explain(ctx context.Context, word string) jargon.Detection {
	sm.mu.Lock()
	coord := sm.coordinator
	sm.mu.Unlock()

	if coord == nil {
		return jargon.Detection{}
	}
	return coord.ExplainWord(ctx, word, sm.buffer.Query(sm.cfg.Buffer.Retention()))
}

// sttConfig builds the session parameters from config, applying defaults.
func (sm *SessionManager) sttConfig() stt.Config {
	tc := sm.cfg.Transcription
	language := tc.Language
	if language == "" {
		language = "en"
	}
	strategy := tc.CommitStrategy
	if strategy == "" {
		strategy = "vad"
	}
	return stt.Config{
		Model:          tc.Model,
		Language:       language,
		SampleRate:     16000,
		CommitStrategy: strategy,
	}
}
