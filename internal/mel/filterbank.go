package mel

import (
	"fmt"
	"math"
)

// Config contains the spectral extraction parameters. It is an immutable
// value object; derived tables are built once per config by NewFilterBank.
type Config struct {
	SampleRate   int // audio sample rate in Hz
	WindowLength int // FFT window size in samples
	HopLength    int // frame advance in samples
	MelBands     int // number of mel filterbank bands
	ChunkSamples int // nominal chunk length in samples
	TargetFrames int // frame count expected by the encoder
}

// DefaultConfig returns the reference Whisper front-end parameters:
// 16 kHz audio, 25 ms windows with 10 ms hop, 80 mel bands, 30 s chunks.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		WindowLength: 400,
		HopLength:    160,
		MelBands:     80,
		ChunkSamples: 480000,
		TargetFrames: 3000,
	}
}

// Validate checks the configuration for internal consistency
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.WindowLength < 16 {
		return fmt.Errorf("window length must be at least 16 samples, got %d", c.WindowLength)
	}
	if c.HopLength < 1 || c.HopLength > c.WindowLength {
		return fmt.Errorf("hop length must be between 1 and window length (%d), got %d", c.WindowLength, c.HopLength)
	}
	if c.MelBands < 1 {
		return fmt.Errorf("mel band count must be at least 1, got %d", c.MelBands)
	}
	if c.ChunkSamples < c.WindowLength {
		return fmt.Errorf("chunk length (%d) must cover at least one window (%d)", c.ChunkSamples, c.WindowLength)
	}
	if c.TargetFrames < 1 {
		return fmt.Errorf("target frame count must be at least 1, got %d", c.TargetFrames)
	}
	return nil
}

// FilterBank holds the derived tables for one Config: the mel projection
// weights (band x frequency bin) and the periodic Hann analysis window.
// It is read-only after construction and safe to share across concurrent
// extractions.
type FilterBank struct {
	config  Config
	weights [][]float64 // [MelBands][WindowLength/2+1]
	window  []float64   // [WindowLength]
}

// Slaney mel scale: linear below 1000 Hz, logarithmic above
const (
	melLinearStep  = 200.0 / 3.0 // Hz per mel in the linear region
	melBreakHz     = 1000.0
	melBreakPoint  = melBreakHz / melLinearStep
	melHighFreqOct = 6.4 // frequency ratio covered by 27 log-spaced mels
	melLogSteps    = 27.0
)

func hzToMel(hz float64) float64 {
	if hz < melBreakHz {
		return hz / melLinearStep
	}
	return melBreakPoint + math.Log(hz/melBreakHz)/(math.Log(melHighFreqOct)/melLogSteps)
}

func melToHz(mel float64) float64 {
	if mel < melBreakPoint {
		return mel * melLinearStep
	}
	return melBreakHz * math.Exp(math.Log(melHighFreqOct)/melLogSteps*(mel-melBreakPoint))
}

// NewFilterBank builds the mel projection weights and analysis window
// for the given configuration
func NewFilterBank(config Config) (*FilterBank, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spectral config: %w", err)
	}

	fb := &FilterBank{config: config}
	fb.buildWindow()
	fb.buildWeights()

	return fb, nil
}

// Config returns the configuration the filterbank was built from
func (fb *FilterBank) Config() Config {
	return fb.config
}

// Window returns the cached analysis window. Callers must not mutate it.
func (fb *FilterBank) Window() []float64 {
	return fb.window
}

// Weights returns the mel projection table. Callers must not mutate it.
func (fb *FilterBank) Weights() [][]float64 {
	return fb.weights
}

// buildWindow fills the periodic Hann window 0.5*(1-cos(2*pi*i/N))
func (fb *FilterBank) buildWindow() {
	n := fb.config.WindowLength
	fb.window = make([]float64, n)
	for i := 0; i < n; i++ {
		fb.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
}

// buildWeights constructs triangular filters spanning three consecutive
// mel-to-Hz boundary points, each normalized by 2/bandwidth
func (fb *FilterBank) buildWeights() {
	nBands := fb.config.MelBands
	nBins := fb.config.WindowLength/2 + 1
	maxHz := float64(fb.config.SampleRate) / 2

	// nBands+2 boundary points equally spaced on the mel scale
	maxMel := hzToMel(maxHz)
	boundaries := make([]float64, nBands+2)
	for i := range boundaries {
		boundaries[i] = melToHz(maxMel * float64(i) / float64(nBands+1))
	}

	binHz := make([]float64, nBins)
	for k := range binHz {
		binHz[k] = float64(k) * float64(fb.config.SampleRate) / float64(fb.config.WindowLength)
	}

	fb.weights = make([][]float64, nBands)
	for band := 0; band < nBands; band++ {
		lo, mid, hi := boundaries[band], boundaries[band+1], boundaries[band+2]
		norm := 2.0 / (hi - lo)

		row := make([]float64, nBins)
		for k, f := range binHz {
			rising := (f - lo) / (mid - lo)
			falling := (hi - f) / (hi - mid)

			w := math.Min(rising, falling)
			if w > 0 {
				row[k] = w * norm
			}
		}
		fb.weights[band] = row
	}
}
