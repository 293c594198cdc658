package audio

import (
	"fmt"
	"time"
)

// Buffer holds a complete mono audio signal and hands out fixed-size
// windows for chunked processing. Windows never overlap; the final
// partial window is zero-padded to the full chunk size. The buffer is
// read-only after construction and safe for concurrent readers.
type Buffer struct {
	samples    []float32
	sampleRate int
	chunkSize  int
}

// NewBuffer creates a buffer over the given mono samples
func NewBuffer(samples []float32, sampleRate, chunkSize int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	return &Buffer{
		samples:    samples,
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
	}, nil
}

// NumWindows returns the number of chunk windows covering the signal
func (b *Buffer) NumWindows() int {
	if len(b.samples) == 0 {
		return 0
	}
	return (len(b.samples) + b.chunkSize - 1) / b.chunkSize
}

// TotalSamples returns the number of samples in the signal
func (b *Buffer) TotalSamples() int {
	return len(b.samples)
}

// SampleRate returns the buffer's sample rate
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// ChunkSize returns the window size in samples
func (b *Buffer) ChunkSize() int {
	return b.chunkSize
}

// Duration returns the total signal duration
func (b *Buffer) Duration() time.Duration {
	return time.Duration(float64(len(b.samples)) / float64(b.sampleRate) * float64(time.Second))
}

// Window returns the i-th chunk window, always chunkSize samples long,
// along with the number of true (unpadded) samples it contains. The
// padded region is silence. The returned slice is freshly allocated;
// callers may mutate it.
func (b *Buffer) Window(i int) ([]float32, int, error) {
	if i < 0 || i >= b.NumWindows() {
		return nil, 0, fmt.Errorf("window index %d out of range [0, %d)", i, b.NumWindows())
	}

	start := i * b.chunkSize
	end := start + b.chunkSize
	trueLen := b.chunkSize
	if end > len(b.samples) {
		trueLen = len(b.samples) - start
		end = len(b.samples)
	}

	window := make([]float32, b.chunkSize)
	copy(window, b.samples[start:end])

	return window, trueLen, nil
}
