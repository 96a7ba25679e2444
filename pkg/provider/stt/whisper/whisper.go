// Package whisper provides a local whisper.cpp-backed transcription session.
//
// It is the offline fallback to the streaming service: incoming base64 PCM
// chunks are buffered, an energy-based silence detector segments utterances,
// and each completed utterance is run through the whisper.cpp CGO bindings as
// a batch inference. Because whisper.cpp is not a streaming engine there are
// no true low-latency interims; an interim carrying the utterance text is
// emitted immediately before its committed event so downstream display logic
// behaves the same for both session variants.
//
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	// bitsPerSample is fixed at 16 for the signed little-endian PCM audio
	// that whisper.cpp expects.
	bitsPerSample = 16

	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit
	// PCM units) below which a chunk is considered silent. The maximum for
	// 16-bit audio is 32 767; 300 corresponds to near-silence.
	defaultRMSThreshold = 300.0

	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10_000
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "en",
// "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// WithSampleRate sets the PCM sample rate in Hz. This must match the actual
// rate of the audio delivered via SendAudio. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(e *Engine) { e.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (ms) that
// triggers a flush of the accumulated speech buffer. Defaults to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(e *Engine) { e.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs sets the maximum buffered audio duration (ms)
// before a forced flush during continuous speech. Defaults to 10 s.
func WithMaxBufferDurationMs(ms int) Option {
	return func(e *Engine) { e.maxBufferDurationMs = ms }
}

// Engine loads a whisper.cpp model once and shares it across sessions. Each
// session creates its own inference context, so sessions may run
// concurrently. The caller must Close the engine when done.
type Engine struct {
	model    whisperlib.Model
	language string

	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
}

// NewEngine loads the whisper.cpp model from the given file path.
func NewEngine(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &Engine{
		model:               model,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// computeRMS returns the root-mean-square energy of 16-bit little-endian PCM.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// chunkDurationMs returns the duration of a mono PCM chunk in milliseconds.
func chunkDurationMs(chunk []byte, sampleRate int) int {
	if sampleRate <= 0 {
		return 0
	}
	bytesPerSec := sampleRate * (bitsPerSample / 8)
	return len(chunk) * 1000 / bytesPerSec
}

// pcmToFloat32 converts 16-bit little-endian PCM to normalized float32
// samples in [-1, 1), the input format whisper.cpp inference expects.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:i*2+2]))) / 32768.0
	}
	return out
}
