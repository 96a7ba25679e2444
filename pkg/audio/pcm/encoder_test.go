package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/auricle-audio/auricle/pkg/audio"
)

func TestResample_FloorDecimation(t *testing.T) {
	t.Parallel()

	// 48 kHz → 16 kHz is a ratio of exactly 3: every third sample survives.
	src := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8}
	got := Resample(src, 48000)

	want := []float32{0, 3, 6}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestResample_NonIntegerRatio(t *testing.T) {
	t.Parallel()

	// 44.1 kHz → 16 kHz, ratio 2.75625. Output index i selects source
	// index floor(i * 2.75625): 0, 2, 5, 8, ...
	src := make([]float32, 12)
	for i := range src {
		src[i] = float32(i)
	}
	got := Resample(src, 44100)

	if got[0] != 0 || got[1] != 2 || got[2] != 5 || got[3] != 8 {
		t.Errorf("floor selection wrong: got %v", got[:4])
	}
}

func TestResample_TargetRatePassthrough(t *testing.T) {
	t.Parallel()

	src := []float32{0.1, 0.2}
	got := Resample(src, 16000)
	if len(got) != 2 || got[0] != 0.1 {
		t.Errorf("16 kHz input should pass through unchanged, got %v", got)
	}
}

func TestEncode16_ScalingAndClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"silence", 0, 0},
		{"full positive", 1.0, 0x7FFF},
		{"full negative", -1.0, -0x8000},
		{"clamp above", 1.5, 0x7FFF},
		{"clamp below", -1.5, -0x8000},
		{"half positive", 0.5, 0x7FFF / 2},
		{"half negative", -0.5, -0x8000 / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Encode16([]float32{tt.in})
			got := int16(binary.LittleEndian.Uint16(out))
			if got != tt.want {
				t.Errorf("Encode16(%f) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestDownmix_StereoAverage(t *testing.T) {
	t.Parallel()

	got := Downmix([]float32{0.2, 0.4, -0.5, 0.5}, 2)
	if len(got) != 2 {
		t.Fatalf("got %d samples, want 2", len(got))
	}
	if diff := got[0] - 0.3; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("first sample: got %f, want 0.3", got[0])
	}
	if got[1] != 0 {
		t.Errorf("second sample: got %f, want 0", got[1])
	}
}

func TestEncodeFrame_Base64PCM(t *testing.T) {
	t.Parallel()

	f := audio.Frame{
		Samples:    []float32{0, 0.5, -0.5, 1.0, -1.0, 0},
		SampleRate: 48000,
		Channels:   1,
	}
	encoded := EncodeFrame(f)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("output is not valid base64: %v", err)
	}
	// 6 samples at ratio 3 → 2 output samples → 4 bytes.
	if len(raw) != 4 {
		t.Fatalf("got %d PCM bytes, want 4", len(raw))
	}
	if got := int16(binary.LittleEndian.Uint16(raw)); got != 0 {
		t.Errorf("first sample: got %d, want 0", got)
	}
	if got := int16(binary.LittleEndian.Uint16(raw[2:])); got != 0x7FFF {
		t.Errorf("second sample: got %d, want %d", got, 0x7FFF)
	}
}

// refusingSink refuses every other frame to exercise the drop path.
type refusingSink struct {
	sent    int
	refused int
}

func (s *refusingSink) SendAudio(string) error {
	if (s.sent+s.refused)%2 == 1 {
		s.refused++
		return errors.New("transport busy")
	}
	s.sent++
	return nil
}

func TestStreamer_DropsRefusedFrames(t *testing.T) {
	t.Parallel()

	sink := &refusingSink{}
	s := NewStreamer(sink)

	var dropped, encoded int
	s.OnDropped = func() { dropped++ }
	s.OnEncoded = func(int) { encoded++ }

	in := make(chan audio.Frame, 4)
	for range 4 {
		in <- audio.Frame{Samples: []float32{0.1}, SampleRate: 16000, Channels: 1}
	}
	close(in)

	s.Run(in)

	if sink.sent != 2 || sink.refused != 2 {
		t.Errorf("sink saw sent=%d refused=%d, want 2/2", sink.sent, sink.refused)
	}
	if dropped != 2 || encoded != 2 {
		t.Errorf("callbacks saw dropped=%d encoded=%d, want 2/2", dropped, encoded)
	}
}
