package audio

import (
	"math"
	"strings"
	"testing"
)

func TestEncodeDecodeWAVRoundTrip(t *testing.T) {
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(i%200 - 100)
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	decoded, sampleRate, channels, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}

	if sampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", sampleRate)
	}
	if channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(samples))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, decoded[i], samples[i])
		}
	}
}

func TestDecodeWAVStereo(t *testing.T) {
	// Build a stereo file by patching the channel fields of a mono header
	interleaved := []int16{100, -100, 200, -200, 300, -300}
	data, err := EncodeWAV(interleaved, 8000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	data[22] = 2                    // NumChannels
	data[32] = 4                    // BlockAlign = channels * 2
	data[28], data[29] = 0x00, 0x7d // ByteRate = 8000 * 2 * 2 = 32000

	decoded, sampleRate, channels, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV stereo: %v", err)
	}
	if channels != 2 {
		t.Errorf("channels = %d, want 2", channels)
	}
	if sampleRate != 8000 {
		t.Errorf("sample rate = %d, want 8000", sampleRate)
	}
	if len(decoded) != len(interleaved) {
		t.Errorf("decoded %d samples, want %d interleaved", len(decoded), len(interleaved))
	}
}

func TestDecodeWAVErrors(t *testing.T) {
	valid, err := EncodeWAV([]int16{1, 2, 3, 4}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	tests := []struct {
		name     string
		mutate   func([]byte) []byte
		errorMsg string
	}{
		{
			name:     "truncated data",
			mutate:   func(d []byte) []byte { return d[:20] },
			errorMsg: "too short",
		},
		{
			name: "missing RIFF marker",
			mutate: func(d []byte) []byte {
				d[0] = 'X'
				return d
			},
			errorMsg: "RIFF",
		},
		{
			name: "non-PCM format",
			mutate: func(d []byte) []byte {
				d[20] = 3 // IEEE float
				return d
			},
			errorMsg: "audio format",
		},
		{
			name: "unsupported bit depth",
			mutate: func(d []byte) []byte {
				d[34] = 8
				return d
			},
			errorMsg: "bit depth",
		},
		{
			name: "too many channels",
			mutate: func(d []byte) []byte {
				d[22] = 6
				return d
			},
			errorMsg: "channel count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, len(valid))
			copy(data, valid)

			_, _, _, err := DecodeWAV(tt.mutate(data))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestGetWAVDuration(t *testing.T) {
	samples := make([]int16, 16000) // exactly one second at 16 kHz
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	duration, err := GetWAVDuration(data)
	if err != nil {
		t.Fatalf("GetWAVDuration: %v", err)
	}
	if math.Abs(duration-1.0) > 1e-9 {
		t.Errorf("duration = %v, want 1.0", duration)
	}
}
