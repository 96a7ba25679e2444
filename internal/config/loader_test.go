package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/auricle-audio/auricle/internal/config"
	"github.com/auricle-audio/auricle/pkg/audio"
)

const validYAML = `
logging:
  level: debug
  format: json
audio:
  source_mode: both
transcription:
  variant: stream
  endpoint: "wss://stt.example.com/v1/listen"
  model: rt-general-1
  language: en
  token:
    endpoint: "https://api.example.com/token"
    api_key: "sk-test"
buffer:
  retention_seconds: 60
  capture_lead_out_seconds: 15
jargon:
  provider: openai
  model: gpt-4o-mini
  api_key: "sk-test"
  interval_ms: 5000
storage:
  postgres_dsn: "postgres://localhost/auricle"
metrics:
  listen_addr: ":9464"
`

const streamSection = `
transcription:
  variant: stream
  endpoint: "wss://stt.example.com/v1/listen"
  token:
    endpoint: "https://api.example.com/token"
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logging.Level != config.LogDebug {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
	if cfg.Audio.SourceMode != audio.SourceBoth {
		t.Errorf("audio.source_mode = %q", cfg.Audio.SourceMode)
	}
	if cfg.Transcription.Variant != config.VariantStream {
		t.Errorf("transcription.variant = %q", cfg.Transcription.Variant)
	}
	if cfg.Transcription.Endpoint != "wss://stt.example.com/v1/listen" {
		t.Errorf("transcription.endpoint = %q", cfg.Transcription.Endpoint)
	}
	if got := cfg.Buffer.Retention(); got != 60*time.Second {
		t.Errorf("buffer retention = %v", got)
	}
	if got := cfg.Jargon.Interval(); got != 5*time.Second {
		t.Errorf("jargon interval = %v", got)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("bogus_section:\n  foo: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad log level",
			yaml:    "logging:\n  level: loud\n" + streamSection,
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			yaml:    "logging:\n  format: xml\n" + streamSection,
			wantErr: "logging.format",
		},
		{
			name:    "bad source mode",
			yaml:    "audio:\n  source_mode: telepathy\n" + streamSection,
			wantErr: "audio.source_mode",
		},
		{
			name:    "bad variant",
			yaml:    "transcription:\n  variant: morse\n",
			wantErr: "transcription.variant",
		},
		{
			name:    "stream without endpoint",
			yaml:    "transcription:\n  variant: stream\n  token:\n    endpoint: \"https://t\"\n",
			wantErr: "transcription.endpoint",
		},
		{
			name:    "stream without token endpoint",
			yaml:    "transcription:\n  variant: stream\n  endpoint: \"wss://s\"\n",
			wantErr: "transcription.token.endpoint",
		},
		{
			name:    "whisper without model path",
			yaml:    "transcription:\n  variant: whisper\n",
			wantErr: "transcription.whisper.model_path",
		},
		{
			name:    "bad jargon provider",
			yaml:    streamSection + "jargon:\n  provider: psychic\n  model: m\n",
			wantErr: "jargon.provider",
		},
		{
			name:    "jargon provider without model",
			yaml:    streamSection + "jargon:\n  provider: openai\n",
			wantErr: "jargon.model",
		},
		{
			name:    "bad anyllm backend",
			yaml:    streamSection + "jargon:\n  provider: anyllm\n  backend: skynet\n  model: m\n",
			wantErr: "jargon.backend",
		},
		{
			name:    "negative retention",
			yaml:    streamSection + "buffer:\n  retention_seconds: -1\n",
			wantErr: "buffer.retention_seconds",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()

	bad := `
logging:
  level: loud
audio:
  source_mode: telepathy
transcription:
  variant: stream
  endpoint: "wss://s"
  token:
    endpoint: "https://t"
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"logging.level", "audio.source_mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q missing %q", err, want)
		}
	}
}

func TestBufferConfig_Defaults(t *testing.T) {
	t.Parallel()

	var b config.BufferConfig
	if got := b.Retention(); got != 60*time.Second {
		t.Errorf("default retention = %v, want 60s", got)
	}
	if got := b.CaptureLeadOut(); got != 15*time.Second {
		t.Errorf("default lead-out = %v, want 15s", got)
	}
}

func TestJargonConfig_DefaultInterval(t *testing.T) {
	t.Parallel()

	var j config.JargonConfig
	if got := j.Interval(); got != 5*time.Second {
		t.Errorf("default interval = %v, want 5s", got)
	}
}
