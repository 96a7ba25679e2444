package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/auricle-audio/auricle/internal/app"
	"github.com/auricle-audio/auricle/internal/config"
	"github.com/auricle-audio/auricle/internal/moments"
	"github.com/auricle-audio/auricle/pkg/audio"
	audiomock "github.com/auricle-audio/auricle/pkg/audio/mock"
	"github.com/auricle-audio/auricle/pkg/provider/stt"
	sttmock "github.com/auricle-audio/auricle/pkg/provider/stt/mock"
)

// newTestApp builds an App with all external subsystems mocked out.
func newTestApp(t *testing.T, cfg *config.Config) (*app.App, *audiomock.Source, *sttmock.Session) {
	t.Helper()

	src := audiomock.NewSource()
	acq := &audiomock.Acquirer{
		Acquisition: &audio.Acquisition{Source: src, Mode: audio.SourceMicrophone},
	}
	sess := sttmock.NewSession()

	a, err := app.New(context.Background(), cfg,
		app.WithAcquirer(acq),
		app.WithStore(moments.NewMemStore()),
		app.WithSessionFactory(func(stt.Config) (stt.Session, error) { return sess, nil }),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return a, src, sess
}

func TestNew_WiresInjectedSubsystems(t *testing.T) {
	t.Parallel()

	a, _, _ := newTestApp(t, &config.Config{})
	if a.Manager() == nil {
		t.Fatal("expected a session manager")
	}
	if a.Store() == nil {
		t.Fatal("expected a moments store")
	}
}

func TestNew_MemStoreWithoutDSN(t *testing.T) {
	t.Parallel()

	src := audiomock.NewSource()
	acq := &audiomock.Acquirer{
		Acquisition: &audio.Acquisition{Source: src, Mode: audio.SourceMicrophone},
	}
	a, err := app.New(context.Background(), &config.Config{},
		app.WithAcquirer(acq),
		app.WithSessionFactory(func(stt.Config) (stt.Session, error) {
			return sttmock.NewSession(), nil
		}),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, ok := a.Store().(*moments.MemStore); !ok {
		t.Errorf("Store() = %T, want *moments.MemStore when no DSN is configured", a.Store())
	}
}

func TestNew_UnknownJargonProvider(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Jargon: config.JargonConfig{Provider: "psychic", Model: "m"},
	}
	src := audiomock.NewSource()
	acq := &audiomock.Acquirer{
		Acquisition: &audio.Acquisition{Source: src, Mode: audio.SourceMicrophone},
	}
	_, err := app.New(context.Background(), cfg,
		app.WithAcquirer(acq),
		app.WithStore(moments.NewMemStore()),
		app.WithSessionFactory(func(stt.Config) (stt.Session, error) {
			return sttmock.NewSession(), nil
		}),
	)
	if err == nil {
		t.Fatal("expected error for unknown jargon provider")
	}
}

func TestApp_ShutdownStopsActiveSession(t *testing.T) {
	t.Parallel()

	a, src, _ := newTestApp(t, &config.Config{})
	if err := a.Manager().Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	if a.Manager().IsActive() {
		t.Error("expected no active session after Shutdown")
	}
	if !src.Closed() {
		t.Error("expected source released after Shutdown")
	}

	// Shutdown is idempotent.
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error: %v", err)
	}
}
