package audio

import (
	"testing"
	"time"
)

func TestBufferWindows(t *testing.T) {
	tests := []struct {
		name        string
		samples     int
		chunkSize   int
		wantWindows int
	}{
		{name: "empty signal", samples: 0, chunkSize: 100, wantWindows: 0},
		{name: "exact multiple", samples: 300, chunkSize: 100, wantWindows: 3},
		{name: "partial final window", samples: 250, chunkSize: 100, wantWindows: 3},
		{name: "single short window", samples: 10, chunkSize: 100, wantWindows: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := NewBuffer(make([]float32, tt.samples), 16000, tt.chunkSize)
			if err != nil {
				t.Fatalf("NewBuffer: %v", err)
			}
			if got := buf.NumWindows(); got != tt.wantWindows {
				t.Errorf("NumWindows() = %d, want %d", got, tt.wantWindows)
			}
		})
	}
}

func TestBufferWindowPadding(t *testing.T) {
	samples := make([]float32, 250)
	for i := range samples {
		samples[i] = 1.0
	}

	buf, err := NewBuffer(samples, 16000, 100)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	// Full window
	window, trueLen, err := buf.Window(0)
	if err != nil {
		t.Fatalf("Window(0): %v", err)
	}
	if len(window) != 100 || trueLen != 100 {
		t.Errorf("Window(0): len=%d trueLen=%d, want 100/100", len(window), trueLen)
	}

	// Partial final window: 50 true samples, 50 zero-padded
	window, trueLen, err = buf.Window(2)
	if err != nil {
		t.Fatalf("Window(2): %v", err)
	}
	if trueLen != 50 {
		t.Errorf("Window(2) trueLen = %d, want 50", trueLen)
	}
	for i := 0; i < 50; i++ {
		if window[i] != 1.0 {
			t.Fatalf("Window(2)[%d] = %v, want 1.0", i, window[i])
		}
	}
	for i := 50; i < 100; i++ {
		if window[i] != 0 {
			t.Fatalf("Window(2)[%d] = %v, want zero padding", i, window[i])
		}
	}
}

func TestBufferWindowOutOfRange(t *testing.T) {
	buf, err := NewBuffer(make([]float32, 100), 16000, 100)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if _, _, err := buf.Window(1); err == nil {
		t.Error("Window(1) on a single-window buffer should fail")
	}
	if _, _, err := buf.Window(-1); err == nil {
		t.Error("Window(-1) should fail")
	}
}

func TestBufferWindowIsCopy(t *testing.T) {
	buf, err := NewBuffer([]float32{1, 2, 3, 4}, 16000, 4)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	window, _, err := buf.Window(0)
	if err != nil {
		t.Fatalf("Window(0): %v", err)
	}
	window[0] = 99

	again, _, err := buf.Window(0)
	if err != nil {
		t.Fatalf("Window(0) again: %v", err)
	}
	if again[0] != 1 {
		t.Errorf("buffer mutated through window copy: got %v", again[0])
	}
}

func TestBufferDuration(t *testing.T) {
	buf, err := NewBuffer(make([]float32, 48000), 16000, 16000)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if got := buf.Duration(); got != 3*time.Second {
		t.Errorf("Duration() = %v, want 3s", got)
	}
}
