package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidJargonProviders lists the known jargon provider names. Used by
// [Validate] to warn about unrecognised names.
var ValidJargonProviders = []string{"openai", "anyllm"}

// ValidAnyLLMBackends lists the any-llm-go backends supported by the anyllm
// jargon provider.
var ValidAnyLLMBackends = []string{"openai", "anthropic", "gemini", "ollama"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Logging
	if cfg.Logging.Level != "" && !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "" && cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q is invalid; valid values: text, json", cfg.Logging.Format))
	}

	// Audio
	if cfg.Audio.SourceMode != "" && !cfg.Audio.SourceMode.IsValid() {
		errs = append(errs, fmt.Errorf("audio.source_mode %q is invalid; valid values: microphone, computer, both", cfg.Audio.SourceMode))
	}

	// Transcription
	if cfg.Transcription.Variant != "" && !cfg.Transcription.Variant.IsValid() {
		errs = append(errs, fmt.Errorf("transcription.variant %q is invalid; valid values: stream, whisper", cfg.Transcription.Variant))
	}
	switch cfg.Transcription.Variant {
	case VariantStream, "":
		if cfg.Transcription.Endpoint == "" {
			errs = append(errs, errors.New("transcription.endpoint is required for the stream variant"))
		}
		if cfg.Transcription.Token.Endpoint == "" {
			errs = append(errs, errors.New("transcription.token.endpoint is required for the stream variant"))
		}
	case VariantWhisper:
		if cfg.Transcription.Whisper.ModelPath == "" {
			errs = append(errs, errors.New("transcription.whisper.model_path is required for the whisper variant"))
		}
	}

	// Buffer
	if cfg.Buffer.RetentionSeconds < 0 {
		errs = append(errs, fmt.Errorf("buffer.retention_seconds %d must not be negative", cfg.Buffer.RetentionSeconds))
	}
	if cfg.Buffer.CaptureLeadOutSeconds < 0 {
		errs = append(errs, fmt.Errorf("buffer.capture_lead_out_seconds %d must not be negative", cfg.Buffer.CaptureLeadOutSeconds))
	}

	// Jargon
	if cfg.Jargon.Provider != "" {
		if !slices.Contains(ValidJargonProviders, cfg.Jargon.Provider) {
			errs = append(errs, fmt.Errorf("jargon.provider %q is invalid; valid values: %v", cfg.Jargon.Provider, ValidJargonProviders))
		}
		if cfg.Jargon.Model == "" {
			errs = append(errs, errors.New("jargon.model is required when jargon.provider is set"))
		}
		if cfg.Jargon.Provider == "anyllm" && cfg.Jargon.Backend != "" && !slices.Contains(ValidAnyLLMBackends, cfg.Jargon.Backend) {
			errs = append(errs, fmt.Errorf("jargon.backend %q is invalid; valid values: %v", cfg.Jargon.Backend, ValidAnyLLMBackends))
		}
	} else {
		slog.Warn("jargon.provider is empty; jargon detection and word explanations are disabled")
	}
	if cfg.Jargon.IntervalMs < 0 {
		errs = append(errs, fmt.Errorf("jargon.interval_ms %d must not be negative", cfg.Jargon.IntervalMs))
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; captured moments are kept in memory only")
	}

	return errors.Join(errs...)
}
