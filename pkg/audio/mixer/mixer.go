// Package mixer combines two live audio streams into one by summing sample
// values, the audio-graph equivalent of routing both sources into a shared
// destination node.
//
// Both inputs are expected to share a device clock domain (same sample rate
// and period size), so no resampling or drift compensation happens here —
// the downstream encoder handles arbitrary native rates.
package mixer

import "github.com/auricle-audio/auricle/pkg/audio"

// Mix returns a channel that delivers the sample-wise sum of frames from a
// and b, clamped to [-1.0, 1.0]. Frames are paired one-to-one in arrival
// order. When one input closes, the remaining input is passed through
// unchanged; the output closes when both inputs are closed.
//
// The output channel's buffer matches the larger of the two input buffers.
func Mix(a, b <-chan audio.Frame) <-chan audio.Frame {
	buf := cap(a)
	if cap(b) > buf {
		buf = cap(b)
	}
	out := make(chan audio.Frame, buf)

	go func() {
		defer close(out)
		for {
			fa, okA := <-a
			if !okA {
				passthrough(b, out)
				return
			}
			fb, okB := <-b
			if !okB {
				out <- fa
				passthrough(a, out)
				return
			}
			out <- sum(fa, fb)
		}
	}()

	return out
}

// passthrough forwards the remaining frames of in to out.
func passthrough(in <-chan audio.Frame, out chan<- audio.Frame) {
	for f := range in {
		out <- f
	}
}

// sum adds b's samples onto a's, clamping each result to [-1.0, 1.0].
// The shorter frame bounds the summed region; trailing samples of the longer
// frame pass through unchanged. Metadata (rate, channels, timestamp) comes
// from a.
func sum(a, b audio.Frame) audio.Frame {
	n := len(a.Samples)
	if len(b.Samples) > n {
		n = len(b.Samples)
	}

	mixed := make([]float32, n)
	for i := range mixed {
		var v float32
		if i < len(a.Samples) {
			v += a.Samples[i]
		}
		if i < len(b.Samples) {
			v += b.Samples[i]
		}
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		mixed[i] = v
	}

	return audio.Frame{
		Samples:    mixed,
		SampleRate: a.SampleRate,
		Channels:   a.Channels,
		Timestamp:  a.Timestamp,
	}
}
