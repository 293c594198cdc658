package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Audio    AudioConfig    `yaml:"audio"`
	Spectral SpectralConfig `yaml:"spectral"`
	Decode   DecodeConfig   `yaml:"decode"`
	Silence  SilenceConfig  `yaml:"silence"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ModelConfig contains paths to the ONNX model artifacts and the decoder
// architecture details needed to shape empty cache tensors
type ModelConfig struct {
	EncoderPath    string `yaml:"encoder_path"`
	DecoderPath    string `yaml:"decoder_path"`
	VocabPath      string `yaml:"vocab_path"`
	RuntimeLibrary string `yaml:"runtime_library"` // optional onnxruntime shared library path
	NumHeads       int    `yaml:"num_heads"`
	HeadDim        int    `yaml:"head_dim"`
	IntraOpThreads int    `yaml:"intra_op_threads"`
}

// AudioConfig contains audio input parameters
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
}

// SpectralConfig contains log-mel extraction parameters
type SpectralConfig struct {
	WindowLength int     `yaml:"window_length"` // FFT window size in samples
	HopLength    int     `yaml:"hop_length"`
	MelBands     int     `yaml:"mel_bands"`
	ChunkSeconds float64 `yaml:"chunk_seconds"`
	TargetFrames int     `yaml:"target_frames"`
}

// DecodeConfig contains token selection policy parameters.
// These are empirically tuned and intentionally configurable.
type DecodeConfig struct {
	Language             string  `yaml:"language"`
	Translate            bool    `yaml:"translate"`
	Timestamps           bool    `yaml:"timestamps"`
	MaxTokens            int     `yaml:"max_tokens"`
	RepetitionPenalty    float64 `yaml:"repetition_penalty"`
	RecentWindow         int     `yaml:"recent_window"`
	TopK                 int     `yaml:"top_k"`
	QualityFilterSize    int     `yaml:"quality_filter_size"`
	QualityFilterCap     int     `yaml:"quality_filter_cap"`
	InitialSamplingSteps int     `yaml:"initial_sampling_steps"`
	Temperature          float64 `yaml:"temperature"`
	MinContentTokens     int     `yaml:"min_content_tokens"`
}

// SilenceConfig contains the RMS silence gate configuration
type SilenceConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// HTTPConfig contains the monitoring HTTP server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration with the reference Whisper parameters.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			EncoderPath:    "models/encoder_model.onnx",
			DecoderPath:    "models/decoder_model_merged.onnx",
			VocabPath:      "models/vocab.json",
			NumHeads:       6,
			HeadDim:        64,
			IntraOpThreads: 0,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
		},
		Spectral: SpectralConfig{
			WindowLength: 400,
			HopLength:    160,
			MelBands:     80,
			ChunkSeconds: 30,
			TargetFrames: 3000,
		},
		Decode: DecodeConfig{
			Language:             "en",
			MaxTokens:            224,
			RepetitionPenalty:    1.4,
			RecentWindow:         30,
			TopK:                 5,
			QualityFilterSize:    10,
			QualityFilterCap:     4,
			InitialSamplingSteps: 2,
			Temperature:          0.8,
			MinContentTokens:     2,
		},
		Silence: SilenceConfig{
			Threshold: 0.001,
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "127.0.0.1",
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file, filling unset fields
// with reference defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Spectral.Validate(); err != nil {
		return fmt.Errorf("spectral config: %w", err)
	}

	if err := c.Decode.Validate(); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	if err := c.Silence.Validate(); err != nil {
		return fmt.Errorf("silence config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates model configuration
func (m *ModelConfig) Validate() error {
	if m.EncoderPath == "" {
		return fmt.Errorf("encoder_path cannot be empty")
	}

	if m.DecoderPath == "" {
		return fmt.Errorf("decoder_path cannot be empty")
	}

	if m.VocabPath == "" {
		return fmt.Errorf("vocab_path cannot be empty")
	}

	if m.NumHeads < 1 {
		return fmt.Errorf("num_heads must be at least 1, got %d", m.NumHeads)
	}

	if m.HeadDim < 1 {
		return fmt.Errorf("head_dim must be at least 1, got %d", m.HeadDim)
	}

	if m.IntraOpThreads < 0 {
		return fmt.Errorf("intra_op_threads cannot be negative, got %d", m.IntraOpThreads)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz for the reference models, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	return nil
}

// Validate validates spectral configuration
func (s *SpectralConfig) Validate() error {
	if s.WindowLength < 16 {
		return fmt.Errorf("window_length must be at least 16 samples, got %d", s.WindowLength)
	}

	if s.HopLength < 1 || s.HopLength > s.WindowLength {
		return fmt.Errorf("hop_length must be between 1 and window_length (%d), got %d", s.WindowLength, s.HopLength)
	}

	if s.MelBands < 1 {
		return fmt.Errorf("mel_bands must be at least 1, got %d", s.MelBands)
	}

	if s.ChunkSeconds <= 0 {
		return fmt.Errorf("chunk_seconds must be positive, got %f", s.ChunkSeconds)
	}

	if s.TargetFrames < 1 {
		return fmt.Errorf("target_frames must be at least 1, got %d", s.TargetFrames)
	}

	return nil
}

// Validate validates decode policy configuration
func (d *DecodeConfig) Validate() error {
	if d.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	if d.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", d.MaxTokens)
	}

	if d.RepetitionPenalty < 1 {
		return fmt.Errorf("repetition_penalty must be at least 1, got %f", d.RepetitionPenalty)
	}

	if d.RecentWindow < 1 {
		return fmt.Errorf("recent_window must be at least 1, got %d", d.RecentWindow)
	}

	if d.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1, got %d", d.TopK)
	}

	if d.QualityFilterSize < d.TopK {
		return fmt.Errorf("quality_filter_size (%d) must be at least top_k (%d)", d.QualityFilterSize, d.TopK)
	}

	if d.QualityFilterCap < 0 || d.QualityFilterCap > d.QualityFilterSize {
		return fmt.Errorf("quality_filter_cap must be between 0 and quality_filter_size (%d), got %d",
			d.QualityFilterSize, d.QualityFilterCap)
	}

	if d.InitialSamplingSteps < 0 {
		return fmt.Errorf("initial_sampling_steps cannot be negative, got %d", d.InitialSamplingSteps)
	}

	if d.Temperature <= 0 {
		return fmt.Errorf("temperature must be positive, got %f", d.Temperature)
	}

	if d.MinContentTokens < 0 {
		return fmt.Errorf("min_content_tokens cannot be negative, got %d", d.MinContentTokens)
	}

	return nil
}

// Validate validates silence gate configuration
func (s *SilenceConfig) Validate() error {
	if s.Threshold < 0 || s.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", s.Threshold)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// ChunkSamples returns the chunk length in samples at the given sample rate
func (s *SpectralConfig) ChunkSamples(sampleRate int) int {
	return int(s.ChunkSeconds * float64(sampleRate))
}

// ChunkDuration returns the chunk length as a time.Duration
func (s *SpectralConfig) ChunkDuration() time.Duration {
	return time.Duration(s.ChunkSeconds * float64(time.Second))
}
