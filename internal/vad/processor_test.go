package vad

import (
	"testing"
)

func TestNewGateValidation(t *testing.T) {
	tests := []struct {
		name        string
		threshold   float64
		expectError bool
	}{
		{name: "typical threshold", threshold: 0.001, expectError: false},
		{name: "zero threshold", threshold: 0, expectError: false},
		{name: "max threshold", threshold: 1, expectError: false},
		{name: "negative threshold", threshold: -0.1, expectError: true},
		{name: "above one", threshold: 1.5, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGate(tt.threshold)
			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGateCheck(t *testing.T) {
	gate, err := NewGate(0.01)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	// Silence
	result := gate.Check(make([]float32, 1000), 1000)
	if !result.IsSilent {
		t.Errorf("all-zero window not flagged silent (rms=%v)", result.RMS)
	}

	// Clear signal
	loud := make([]float32, 1000)
	for i := range loud {
		loud[i] = 0.5
	}
	result = gate.Check(loud, 1000)
	if result.IsSilent {
		t.Errorf("loud window flagged silent (rms=%v)", result.RMS)
	}

	// RMS must only cover the true samples, not the zero padding
	padded := make([]float32, 1000)
	for i := 0; i < 100; i++ {
		padded[i] = 0.5
	}
	result = gate.Check(padded, 100)
	if result.IsSilent {
		t.Errorf("padded window judged over padding, not true samples (rms=%v)", result.RMS)
	}
}

func TestGateStats(t *testing.T) {
	gate, err := NewGate(0.01)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	loud := make([]float32, 100)
	for i := range loud {
		loud[i] = 0.5
	}

	gate.Check(make([]float32, 100), 100)
	gate.Check(make([]float32, 100), 100)
	gate.Check(loud, 100)
	gate.Check(loud, 100)

	stats := gate.GetStats()
	if stats.TotalWindows != 4 {
		t.Errorf("TotalWindows = %d, want 4", stats.TotalWindows)
	}
	if stats.SilentWindows != 2 {
		t.Errorf("SilentWindows = %d, want 2", stats.SilentWindows)
	}
	if stats.SilentPercentage != 50 {
		t.Errorf("SilentPercentage = %v, want 50", stats.SilentPercentage)
	}
}
