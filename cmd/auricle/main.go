// Command auricle is a live-transcription tool: it listens to the
// microphone and/or system audio, streams it to a transcription engine,
// surfaces jargon with AI-generated explanations, and can capture the last
// minute of conversation as a saved moment.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auricle-audio/auricle/internal/app"
	"github.com/auricle-audio/auricle/internal/config"
	"github.com/auricle-audio/auricle/internal/health"
	"github.com/auricle-audio/auricle/internal/moments"
	"github.com/auricle-audio/auricle/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "auricle: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "auricle: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Logging.Level))
	slog.SetDefault(newLogger(cfg.Logging.Format, levelVar))

	slog.Info("auricle starting",
		"config", *configPath,
		"source_mode", cfg.Audio.SourceMode,
		"variant", cfg.Transcription.Variant,
		"log_level", cfg.Logging.Level,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry := func(context.Context) error { return nil }
	if cfg.Metrics.ListenAddr != "" {
		shutdownTelemetry, err = observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName: "auricle",
		})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Metrics / health endpoint ─────────────────────────────────────────────
	var metricsSrv *http.Server
	if cfg.Metrics.ListenAddr != "" {
		metricsSrv = newMetricsServer(cfg.Metrics.ListenAddr, application)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
		slog.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.Empty() {
			return
		}
		if d.LogLevelChanged {
			levelVar.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.JargonIntervalChanged {
			slog.Info("jargon interval changed, applies to the next session",
				"interval", d.NewJargonInterval)
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable, hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)

	// ── Interactive loop ──────────────────────────────────────────────────────
	console(ctx, application)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Console ───────────────────────────────────────────────────────────────────

const consoleHelp = `commands:
  start            begin listening
  stop             stop listening (transcript is kept)
  live             print the live transcript
  words            list detected jargon words
  explain <word>   explain a word (cached or AI lookup)
  save <word>      explain a word and save it as a term
  capture          save the last minute as a moment (fires after the lead-out)
  cancel           cancel a pending capture
  moments          list captured moments
  terms            list saved terms
  status           show session status
  quit             exit`

// console reads commands from stdin until EOF, "quit", or ctx cancellation.
func console(ctx context.Context, application *app.App) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Println("auricle ready — type 'help' for commands")

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := dispatch(ctx, application, line); quit {
				return
			}
		}
	}
}

// dispatch runs one console command. Reports whether the loop should exit.
func dispatch(ctx context.Context, application *app.App, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]
	sm := application.Manager()

	switch cmd {
	case "help":
		fmt.Println(consoleHelp)

	case "start":
		if err := sm.Start(ctx); err != nil {
			fmt.Println("error:", err)
			break
		}
		info := sm.Info()
		fmt.Printf("listening (%s)\n", info.Mode)
		if info.Warning != "" {
			fmt.Println("warning:", info.Warning)
		}

	case "stop":
		if err := sm.Stop(); err != nil {
			fmt.Println("error:", err)
			break
		}
		fmt.Println("stopped")

	case "live":
		text := sm.LiveText()
		if text == "" {
			fmt.Println("(no transcript yet)")
			break
		}
		fmt.Println(text)

	case "words":
		words := sm.Words()
		if len(words) == 0 {
			fmt.Println("(no jargon detected yet)")
			break
		}
		for _, w := range words {
			fmt.Println(" ", w)
		}

	case "explain":
		if len(args) != 1 {
			fmt.Println("usage: explain <word>")
			break
		}
		d := sm.Explain(ctx, args[0])
		if !d.IsJargon {
			fmt.Printf("%q does not look like jargon\n", args[0])
			break
		}
		fmt.Printf("%s: %s\n", args[0], d.Explanation)

	case "save":
		if len(args) != 1 {
			fmt.Println("usage: save <word>")
			break
		}
		d := sm.Explain(ctx, args[0])
		if !d.IsJargon {
			fmt.Printf("%q does not look like jargon, nothing saved\n", args[0])
			break
		}
		term := &moments.Term{Word: strings.ToLower(args[0]), Explanation: d.Explanation}
		if err := application.Store().InsertTerm(ctx, term); err != nil {
			fmt.Println("error:", err)
			break
		}
		fmt.Printf("saved %q\n", term.Word)

	case "capture":
		if err := sm.CaptureMoment(); err != nil {
			fmt.Println("error:", err)
			break
		}
		fmt.Println("capture armed")

	case "cancel":
		if sm.CancelCapture() {
			fmt.Println("capture cancelled")
		} else {
			fmt.Println("no pending capture")
		}

	case "moments":
		ms, err := application.Store().ListMoments(ctx)
		if err != nil {
			fmt.Println("error:", err)
			break
		}
		if len(ms) == 0 {
			fmt.Println("(no captured moments)")
			break
		}
		for _, m := range ms {
			fmt.Printf("  %s  %s  %s\n", m.ID, m.CreatedAt.Format(time.RFC3339), truncate(m.Transcript, 60))
		}

	case "terms":
		ts, err := application.Store().ListTerms(ctx)
		if err != nil {
			fmt.Println("error:", err)
			break
		}
		if len(ts) == 0 {
			fmt.Println("(no saved terms)")
			break
		}
		for _, term := range ts {
			fmt.Printf("  %s: %s\n", term.Word, truncate(term.Explanation, 70))
		}

	case "status":
		if !sm.IsActive() {
			fmt.Println("idle")
			break
		}
		info := sm.Info()
		fmt.Printf("listening (%s) since %s\n", info.Mode, info.StartedAt.Format(time.RFC3339))
		if sm.CapturePending() {
			fmt.Println("capture pending")
		}

	case "quit", "exit":
		return true

	default:
		fmt.Printf("unknown command %q — type 'help'\n", cmd)
	}
	return false
}

// truncate shortens s for single-line display.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// ── Metrics server ────────────────────────────────────────────────────────────

// newMetricsServer serves /metrics (Prometheus), /healthz, and /readyz.
func newMetricsServer(addr string, application *app.App) *http.Server {
	h := health.New()
	h.AddProbe("store", func(ctx context.Context) error {
		_, err := application.Store().ListTerms(ctx)
		return err
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/readyz", h.Readyz)

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Auricle — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Source mode", sourceModeOrDefault(cfg))
	printField("Variant", variantOrDefault(cfg))
	printField("Jargon", jargonSummary(cfg))
	printField("Storage", storageSummary(cfg))
	printField("Metrics", orDisabled(cfg.Metrics.ListenAddr))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", name, value)
}

func sourceModeOrDefault(cfg *config.Config) string {
	if cfg.Audio.SourceMode == "" {
		return "microphone"
	}
	return string(cfg.Audio.SourceMode)
}

func variantOrDefault(cfg *config.Config) string {
	if cfg.Transcription.Variant == "" {
		return string(config.VariantStream)
	}
	return string(cfg.Transcription.Variant)
}

func jargonSummary(cfg *config.Config) string {
	if cfg.Jargon.Provider == "" {
		return "(disabled)"
	}
	return cfg.Jargon.Provider + " / " + cfg.Jargon.Model
}

func storageSummary(cfg *config.Config) string {
	if cfg.Storage.PostgresDSN == "" {
		return "in-memory"
	}
	return "postgres"
}

func orDisabled(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
