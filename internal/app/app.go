// Package app wires all Auricle subsystems into a running application.
//
// The App struct owns process-lifetime resources: New creates the audio
// capture engine, the transcription-session factory, the jargon provider and
// the moments store from config, and Shutdown tears everything down in
// reverse order. The per-recording lifecycle (acquire → encode → transcribe
// → detect) is owned by [SessionManager].
//
// For testing, inject mock implementations via functional options
// (WithAcquirer, WithStore, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/auricle-audio/auricle/internal/config"
	"github.com/auricle-audio/auricle/internal/jargon"
	jargonanyllm "github.com/auricle-audio/auricle/internal/jargon/anyllm"
	jargonopenai "github.com/auricle-audio/auricle/internal/jargon/openai"
	"github.com/auricle-audio/auricle/internal/moments"
	momentspg "github.com/auricle-audio/auricle/internal/moments/postgres"
	"github.com/auricle-audio/auricle/internal/observe"
	"github.com/auricle-audio/auricle/internal/resilience"
	"github.com/auricle-audio/auricle/pkg/audio"
	"github.com/auricle-audio/auricle/pkg/audio/capture"
	"github.com/auricle-audio/auricle/pkg/provider/stt"
	"github.com/auricle-audio/auricle/pkg/provider/stt/stream"
	"github.com/auricle-audio/auricle/pkg/provider/stt/whisper"
	"github.com/auricle-audio/auricle/pkg/provider/token"
)

// SessionFactory creates one transcription session per recording. Sessions
// are single-use; a new recording gets a new session.
type SessionFactory func(cfg stt.Config) (stt.Session, error)

// App owns all process-lifetime subsystems.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	acquirer   audio.Acquirer
	store      moments.Store
	provider   jargon.Provider
	newSession SessionFactory

	manager *SessionManager

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithAcquirer injects an audio acquirer instead of opening capture devices.
func WithAcquirer(a audio.Acquirer) Option {
	return func(app *App) { app.acquirer = a }
}

// WithStore injects a moments store instead of creating one from config.
func WithStore(s moments.Store) Option {
	return func(app *App) { app.store = s }
}

// WithJargonProvider injects a jargon provider instead of creating one from
// config.
func WithJargonProvider(p jargon.Provider) Option {
	return func(app *App) { app.provider = p }
}

// WithSessionFactory injects a transcription-session factory instead of
// building the configured variant.
func WithSessionFactory(f SessionFactory) Option {
	return func(app *App) { app.newSession = f }
}

// WithMetrics injects a metrics set instead of using the default.
func WithMetrics(m *observe.Metrics) Option {
	return func(app *App) { app.metrics = m }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: capture-capability probing,
// store connection and schema bootstrap, and provider construction. It does
// not start listening; call Manager().Start for that.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	if err := a.initJargon(); err != nil {
		return nil, fmt.Errorf("app: init jargon provider: %w", err)
	}

	if err := a.initSessionFactory(); err != nil {
		return nil, fmt.Errorf("app: init transcription: %w", err)
	}

	if err := a.initAcquirer(); err != nil {
		return nil, fmt.Errorf("app: init audio capture: %w", err)
	}

	a.manager = NewSessionManager(SessionManagerConfig{
		Config:     cfg,
		Acquirer:   a.acquirer,
		NewSession: a.newSession,
		Provider:   a.provider,
		Store:      a.store,
		Metrics:    a.metrics,
	})

	return a, nil
}

// Manager returns the recording-session manager.
func (a *App) Manager() *SessionManager { return a.manager }

// Store returns the moments store.
func (a *App) Store() moments.Store { return a.store }

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore sets up the PostgreSQL store, or an in-memory store when no DSN
// is configured.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		slog.Info("no postgres_dsn configured, captured moments are kept in memory")
		a.store = moments.NewMemStore()
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}

	store := momentspg.New(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("migrate schema: %w", err)
	}

	a.store = store
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return nil
}

// initJargon builds the configured jargon provider. An empty provider name
// disables detection entirely.
func (a *App) initJargon() error {
	if a.provider != nil {
		return nil
	}

	jc := a.cfg.Jargon
	var p jargon.Provider
	switch jc.Provider {
	case "":
		slog.Warn("no jargon provider configured, detection disabled")
		return nil

	case "openai":
		var opts []jargonopenai.Option
		if jc.BaseURL != "" {
			opts = append(opts, jargonopenai.WithBaseURL(jc.BaseURL))
		}
		prov, err := jargonopenai.New(jc.APIKey, jc.Model, opts...)
		if err != nil {
			return err
		}
		p = prov

	case "anyllm":
		var opts []anyllmlib.Option
		if jc.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(jc.APIKey))
		}
		if jc.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(jc.BaseURL))
		}
		prov, err := jargonanyllm.New(jc.Backend, jc.Model, opts...)
		if err != nil {
			return err
		}
		p = prov

	default:
		return fmt.Errorf("unknown jargon provider %q", jc.Provider)
	}

	// The breaker keeps a failing backend from being hammered every tick;
	// the coordinator treats an open circuit like any other failed round
	// and retries once it half-opens.
	a.provider = resilience.NewJargonFallback(p, jc.Provider, resilience.FallbackConfig{})
	return nil
}

// initSessionFactory builds the session factory for the configured
// transcription variant.
func (a *App) initSessionFactory() error {
	if a.newSession != nil {
		return nil
	}

	tc := a.cfg.Transcription
	switch tc.Variant {
	case config.VariantStream, "":
		tokens, err := token.NewClient(tc.Token.Endpoint, tc.Token.APIKey)
		if err != nil {
			return fmt.Errorf("create token client: %w", err)
		}
		a.newSession = func(cfg stt.Config) (stt.Session, error) {
			return stream.New(tc.Endpoint, tokens, cfg), nil
		}
		return nil

	case config.VariantWhisper:
		var opts []whisper.Option
		if tc.Language != "" {
			opts = append(opts, whisper.WithLanguage(tc.Language))
		}
		if tc.Whisper.SilenceThresholdMs > 0 {
			opts = append(opts, whisper.WithSilenceThresholdMs(tc.Whisper.SilenceThresholdMs))
		}
		if tc.Whisper.MaxBufferDurationMs > 0 {
			opts = append(opts, whisper.WithMaxBufferDurationMs(tc.Whisper.MaxBufferDurationMs))
		}
		eng, err := whisper.NewEngine(tc.Whisper.ModelPath, opts...)
		if err != nil {
			return fmt.Errorf("load whisper model: %w", err)
		}
		a.closers = append(a.closers, eng.Close)
		a.newSession = func(cfg stt.Config) (stt.Session, error) {
			return eng.NewSession(cfg), nil
		}
		return nil

	default:
		return fmt.Errorf("unknown transcription variant %q", tc.Variant)
	}
}

// initAcquirer opens the capture backend and logs the platform capability.
func (a *App) initAcquirer() error {
	if a.acquirer != nil {
		return nil
	}

	eng, err := capture.NewEngine()
	if err != nil {
		return err
	}
	a.acquirer = eng
	a.closers = append(a.closers, eng.Close)

	if c := eng.Capability(); !c.SystemAudio {
		slog.Info("system audio capture unavailable on this platform", "reason", c.Reason)
	}
	return nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops any active recording session and tears down all subsystems
// in reverse-init order. It respects the context deadline: if ctx expires
// before all closers finish, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.manager != nil && a.manager.IsActive() {
			if err := a.manager.Stop(); err != nil {
				slog.Warn("session stop error during shutdown", "err", err)
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
