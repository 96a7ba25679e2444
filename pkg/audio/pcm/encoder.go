// Package pcm converts captured float audio at an arbitrary native sample
// rate into 16 kHz mono 16-bit signed PCM, framed per capture callback and
// base64-encoded for transport to the transcription service.
//
// The conversion is a pure per-frame transform: nearest/floor decimation
// (no interpolation), clamp to [-1.0, 1.0], and asymmetric int16 scaling.
// It performs no buffering of its own and never blocks — frames the
// transport cannot accept are dropped, not retried.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"log/slog"
	"sync"

	"github.com/auricle-audio/auricle/pkg/audio"
)

const (
	// TargetSampleRate is the fixed output rate expected by the
	// transcription service.
	TargetSampleRate = 16000

	// FrameSize is the fixed number of native-rate samples delivered per
	// capture callback.
	FrameSize = 4096
)

// Downmix averages interleaved multi-channel samples into mono. Mono input
// is returned unchanged.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Resample decimates mono samples from nativeRate to [TargetSampleRate] by
// floor index selection: output sample i is the source sample at
// floor(i * nativeRate/16000). No interpolation is applied. Rates at or
// below the target are returned unchanged.
func Resample(samples []float32, nativeRate int) []float32 {
	if nativeRate <= TargetSampleRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(nativeRate) / float64(TargetSampleRate)
	n := int(float64(len(samples)) / ratio)
	out := make([]float32, n)
	for i := range out {
		out[i] = samples[int(float64(i)*ratio)]
	}
	return out
}

// Encode16 converts normalised float samples to little-endian int16 PCM.
// Each sample is clamped to [-1.0, 1.0] then scaled asymmetrically:
// non-negative values by 0x7FFF, negative values by 0x8000, so both ends of
// the float range map onto the full int16 range.
func Encode16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// EncodeFrame runs the full per-frame transform: downmix to mono, floor
// resample to 16 kHz, convert to int16 PCM, and base64-encode the result.
func EncodeFrame(f audio.Frame) string {
	mono := Downmix(f.Samples, f.Channels)
	pcm := Encode16(Resample(mono, f.SampleRate))
	return base64.StdEncoding.EncodeToString(pcm)
}

// Sink accepts encoded frames for transport. [SendAudio] must not block:
// implementations signal backpressure by returning an error, in which case
// the frame is dropped.
type Sink interface {
	SendAudio(audioB64 string) error
}

// Streamer pumps frames from a capture source through [EncodeFrame] into a
// [Sink], dropping frames the sink cannot accept. Create one per session;
// Run is the only method and is called from a single goroutine.
type Streamer struct {
	sink Sink

	// OnEncoded, if set, is called once per frame delivered to the sink with
	// the encoded payload size in bytes. Used for metrics.
	OnEncoded func(bytes int)

	// OnDropped, if set, is called once per frame the sink refused.
	OnDropped func()

	warnedDrop sync.Once
}

// NewStreamer creates a Streamer delivering encoded frames to sink.
func NewStreamer(sink Sink) *Streamer {
	return &Streamer{sink: sink}
}

// Run consumes frames until in closes. Frames refused by the sink are
// dropped and counted; capture continues uninterrupted.
func (s *Streamer) Run(in <-chan audio.Frame) {
	for f := range in {
		encoded := EncodeFrame(f)
		if err := s.sink.SendAudio(encoded); err != nil {
			s.warnedDrop.Do(func() {
				slog.Warn("pcm streamer: transport not ready, dropping frames", "err", err)
			})
			if s.OnDropped != nil {
				s.OnDropped()
			}
			continue
		}
		if s.OnEncoded != nil {
			s.OnEncoded(len(encoded))
		}
	}
}
