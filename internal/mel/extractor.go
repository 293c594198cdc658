package mel

import (
	"math"
	"runtime"
	"sync"

	"github.com/madelynnblue/go-dsp/fft"
)

const (
	// energyFloor is the minimum energy before log scaling
	energyFloor = 1e-10
	// dynamicRange is the clamp span below the global maximum, in log10 units
	dynamicRange = 8.0
)

// silenceFloor is the log10 value produced by zero energy
var silenceFloor = math.Log10(energyFloor)

// Spectrogram is a (batch=1, mel bands, frames) tensor of normalized
// log-mel values. Data is laid out band-major: Data[band*Frames+frame].
type Spectrogram struct {
	Data   []float32
	Bands  int
	Frames int
}

// Shape returns the tensor dimensions (1, bands, frames)
func (s *Spectrogram) Shape() []int64 {
	return []int64{1, int64(s.Bands), int64(s.Frames)}
}

// Max returns the largest value in the spectrogram
func (s *Spectrogram) Max() float32 {
	max := float32(math.Inf(-1))
	for _, v := range s.Data {
		if v > max {
			max = v
		}
	}
	return max
}

// Min returns the smallest value in the spectrogram
func (s *Spectrogram) Min() float32 {
	min := float32(math.Inf(1))
	for _, v := range s.Data {
		if v < min {
			min = v
		}
	}
	return min
}

// HasNonFinite reports whether the spectrogram contains NaN or Inf values
func (s *Spectrogram) HasNonFinite() bool {
	for _, v := range s.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// Extractor computes log-mel spectrograms using a prebuilt FilterBank.
// It is stateless beyond the shared read-only tables and safe for
// concurrent use.
type Extractor struct {
	fb      *FilterBank
	workers int
}

// NewExtractor creates an extractor over the given filterbank
func NewExtractor(fb *FilterBank) *Extractor {
	return &Extractor{
		fb:      fb,
		workers: runtime.NumCPU(),
	}
}

// LogMel converts a fixed-length audio buffer into a normalized log-mel
// spectrogram. The computation is pure given the filterbank; frame-level
// DFT work runs in parallel, and the final dynamic range clamp is the
// synchronization barrier.
func (e *Extractor) LogMel(samples []float32) *Spectrogram {
	cfg := e.fb.config
	n := cfg.WindowLength
	pad := n / 2

	padded := reflectPad(samples, pad)

	// Frame count per the reference convention: the last frame is dropped
	numFrames := (len(padded)-n)/cfg.HopLength + 1 - 1
	if numFrames < 0 {
		numFrames = 0
	}
	if numFrames > cfg.TargetFrames {
		numFrames = cfg.TargetFrames
	}

	bands := cfg.MelBands
	frames := cfg.TargetFrames
	out := make([]float64, bands*frames)

	// Frames beyond the true count carry the silence floor
	for i := range out {
		out[i] = silenceFloor
	}

	e.computeFrames(padded, numFrames, frames, out)

	// Dynamic range clamp over the whole spectrogram, then normalize
	globalMax := math.Inf(-1)
	for _, v := range out {
		if v > globalMax {
			globalMax = v
		}
	}
	floor := globalMax - dynamicRange

	data := make([]float32, len(out))
	for i, v := range out {
		if v < floor {
			v = floor
		}
		data[i] = float32((v + 4.0) / 4.0)
	}

	return &Spectrogram{Data: data, Bands: bands, Frames: frames}
}

// computeFrames fills out[band*totalFrames+frame] with log-mel energies
// for the first numFrames frames, distributing frame work across workers
func (e *Extractor) computeFrames(padded []float64, numFrames, totalFrames int, out []float64) {
	if numFrames == 0 {
		return
	}

	cfg := e.fb.config
	workers := e.workers
	if workers > numFrames {
		workers = numFrames
	}

	var wg sync.WaitGroup
	frameCh := make(chan int, numFrames)
	for f := 0; f < numFrames; f++ {
		frameCh <- f
	}
	close(frameCh)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			n := cfg.WindowLength
			nBins := n/2 + 1
			windowed := make([]float64, n)
			power := make([]float64, nBins)

			for f := range frameCh {
				start := f * cfg.HopLength
				for i := 0; i < n; i++ {
					windowed[i] = padded[start+i] * e.fb.window[i]
				}

				// Exact N-point DFT; zero-padding to a power of two would
				// shift bin frequencies and break the filterbank alignment
				spectrum := fft.FFTReal(windowed)
				for k := 0; k < nBins; k++ {
					re := real(spectrum[k])
					im := imag(spectrum[k])
					power[k] = re*re + im*im
				}

				for band := 0; band < cfg.MelBands; band++ {
					var energy float64
					row := e.fb.weights[band]
					for k := 0; k < nBins; k++ {
						energy += row[k] * power[k]
					}
					if energy < energyFloor {
						energy = energyFloor
					}
					out[band*totalFrames+f] = math.Log10(energy)
				}
			}
		}()
	}

	wg.Wait()
}

// reflectPad mirrors the signal around its first and last samples by pad
// samples on each side. Reflections past the signal bounds are silence.
func reflectPad(samples []float32, pad int) []float64 {
	padded := make([]float64, len(samples)+2*pad)

	for i := 0; i < pad; i++ {
		src := pad - i
		if src < len(samples) {
			padded[i] = float64(samples[src])
		}
	}

	for i, s := range samples {
		padded[pad+i] = float64(s)
	}

	last := len(samples) - 1
	for i := 0; i < pad; i++ {
		src := last - 1 - i
		if src >= 0 && src < len(samples) {
			padded[pad+len(samples)+i] = float64(samples[src])
		}
	}

	return padded
}
