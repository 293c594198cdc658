package audio

import (
	"math"
	"testing"
)

func TestSamplesFromPCM(t *testing.T) {
	pcm := []int16{0, 16384, -16384, 32767, -32768}
	samples := SamplesFromPCM(pcm)

	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1.0}
	for i := range want {
		if math.Abs(float64(samples[i]-want[i])) > 1e-7 {
			t.Errorf("sample %d = %v, want %v", i, samples[i], want[i])
		}
	}
}

func TestDownmix(t *testing.T) {
	stereo := []float32{1.0, 0.0, 0.5, 0.5, -1.0, 1.0}
	mono, err := Downmix(stereo, 2)
	if err != nil {
		t.Fatalf("Downmix: %v", err)
	}

	want := []float32{0.5, 0.5, 0}
	if len(mono) != len(want) {
		t.Fatalf("mono length = %d, want %d", len(mono), len(want))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("mono[%d] = %v, want %v", i, mono[i], want[i])
		}
	}

	// Mono input passes through unchanged
	same, err := Downmix(stereo, 1)
	if err != nil {
		t.Fatalf("Downmix mono: %v", err)
	}
	if len(same) != len(stereo) {
		t.Errorf("mono passthrough changed length: %d", len(same))
	}

	// Mismatched frame count
	if _, err := Downmix([]float32{1, 2, 3}, 2); err == nil {
		t.Error("expected error for non-multiple sample count")
	}
}

func TestResample(t *testing.T) {
	// Downsampling a constant signal preserves it
	constant := make([]float32, 441)
	for i := range constant {
		constant[i] = 0.25
	}
	out, err := Resample(constant, 44100, 16000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	wantLen := int(float64(len(constant)) * 16000 / 44100)
	if len(out) != wantLen {
		t.Errorf("resampled length = %d, want %d", len(out), wantLen)
	}
	for i, v := range out {
		if math.Abs(float64(v-0.25)) > 1e-6 {
			t.Fatalf("resampled[%d] = %v, want 0.25", i, v)
		}
	}

	// Same rate passes through
	same, err := Resample(constant, 16000, 16000)
	if err != nil {
		t.Fatalf("Resample same rate: %v", err)
	}
	if len(same) != len(constant) {
		t.Errorf("same-rate resample changed length: %d", len(same))
	}

	if _, err := Resample(constant, 0, 16000); err == nil {
		t.Error("expected error for zero source rate")
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{name: "empty", samples: nil, want: 0},
		{name: "silence", samples: make([]float32, 100), want: 0},
		{name: "constant", samples: []float32{0.5, 0.5, 0.5, 0.5}, want: 0.5},
		{name: "alternating", samples: []float32{1, -1, 1, -1}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.samples); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS = %v, want %v", got, tt.want)
			}
		})
	}
}
