package vad

import (
	"fmt"
	"sync"
	"time"

	"github.com/skypro1111/whisper-onnx-service/internal/audio"
)

// Gate decides whether a window of audio carries enough energy to be
// worth running through inference. Windows below the RMS threshold are
// treated as silence and skipped by the scheduler.
type Gate struct {
	threshold float64

	// Statistics
	totalWindows  uint64
	silentWindows uint64
	lastProcessed time.Time

	mu sync.RWMutex
}

// Result represents a single gate decision
type Result struct {
	RMS      float64 `json:"rms"`
	IsSilent bool    `json:"is_silent"`
}

// GateStats represents gate statistics for monitoring
type GateStats struct {
	Threshold        float64   `json:"threshold"`
	TotalWindows     uint64    `json:"total_windows"`
	SilentWindows    uint64    `json:"silent_windows"`
	SilentPercentage float64   `json:"silent_percentage"`
	LastProcessed    time.Time `json:"last_processed"`
}

// NewGate creates a silence gate with the given RMS threshold
func NewGate(threshold float64) (*Gate, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	return &Gate{threshold: threshold}, nil
}

// Check computes the RMS energy over the true (unpadded) samples of a
// window and reports whether the window is silent
func (g *Gate) Check(samples []float32, trueLen int) Result {
	if trueLen > len(samples) {
		trueLen = len(samples)
	}

	rms := audio.RMS(samples[:trueLen])
	silent := rms < g.threshold

	g.mu.Lock()
	g.totalWindows++
	if silent {
		g.silentWindows++
	}
	g.lastProcessed = time.Now()
	g.mu.Unlock()

	return Result{RMS: rms, IsSilent: silent}
}

// GetStats returns current gate statistics
func (g *Gate) GetStats() GateStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	silentPct := float64(0)
	if g.totalWindows > 0 {
		silentPct = float64(g.silentWindows) / float64(g.totalWindows) * 100
	}

	return GateStats{
		Threshold:        g.threshold,
		TotalWindows:     g.totalWindows,
		SilentWindows:    g.silentWindows,
		SilentPercentage: silentPct,
		LastProcessed:    g.lastProcessed,
	}
}
