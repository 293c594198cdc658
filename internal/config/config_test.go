package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid defaults",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "empty encoder path",
			mutate:      func(c *Config) { c.Model.EncoderPath = "" },
			expectError: true,
			errorMsg:    "encoder_path",
		},
		{
			name:        "empty decoder path",
			mutate:      func(c *Config) { c.Model.DecoderPath = "" },
			expectError: true,
			errorMsg:    "decoder_path",
		},
		{
			name:        "empty vocab path",
			mutate:      func(c *Config) { c.Model.VocabPath = "" },
			expectError: true,
			errorMsg:    "vocab_path",
		},
		{
			name:        "zero attention heads",
			mutate:      func(c *Config) { c.Model.NumHeads = 0 },
			expectError: true,
			errorMsg:    "num_heads",
		},
		{
			name:        "negative intra-op threads",
			mutate:      func(c *Config) { c.Model.IntraOpThreads = -1 },
			expectError: true,
			errorMsg:    "intra_op_threads",
		},
		{
			name:        "unsupported sample rate",
			mutate:      func(c *Config) { c.Audio.SampleRate = 44100 },
			expectError: true,
			errorMsg:    "sample_rate",
		},
		{
			name:        "stereo input",
			mutate:      func(c *Config) { c.Audio.Channels = 2 },
			expectError: true,
			errorMsg:    "channels",
		},
		{
			name:        "hop longer than window",
			mutate:      func(c *Config) { c.Spectral.HopLength = 500 },
			expectError: true,
			errorMsg:    "hop_length",
		},
		{
			name:        "zero mel bands",
			mutate:      func(c *Config) { c.Spectral.MelBands = 0 },
			expectError: true,
			errorMsg:    "mel_bands",
		},
		{
			name:        "negative chunk seconds",
			mutate:      func(c *Config) { c.Spectral.ChunkSeconds = -1 },
			expectError: true,
			errorMsg:    "chunk_seconds",
		},
		{
			name:        "empty language",
			mutate:      func(c *Config) { c.Decode.Language = "" },
			expectError: true,
			errorMsg:    "language",
		},
		{
			name:        "repetition penalty below one",
			mutate:      func(c *Config) { c.Decode.RepetitionPenalty = 0.5 },
			expectError: true,
			errorMsg:    "repetition_penalty",
		},
		{
			name:        "quality filter smaller than top-k",
			mutate:      func(c *Config) { c.Decode.QualityFilterSize = 2 },
			expectError: true,
			errorMsg:    "quality_filter_size",
		},
		{
			name:        "quality filter cap above size",
			mutate:      func(c *Config) { c.Decode.QualityFilterCap = 100 },
			expectError: true,
			errorMsg:    "quality_filter_cap",
		},
		{
			name:        "zero temperature",
			mutate:      func(c *Config) { c.Decode.Temperature = 0 },
			expectError: true,
			errorMsg:    "temperature",
		},
		{
			name:        "silence threshold above one",
			mutate:      func(c *Config) { c.Silence.Threshold = 1.5 },
			expectError: true,
			errorMsg:    "threshold",
		},
		{
			name: "invalid http port when enabled",
			mutate: func(c *Config) {
				c.HTTP.Enabled = true
				c.HTTP.Port = 0
			},
			expectError: true,
			errorMsg:    "port",
		},
		{
			name:        "invalid http port ignored when disabled",
			mutate:      func(c *Config) { c.HTTP.Port = 0 },
			expectError: false,
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "level",
		},
		{
			name:        "invalid log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: true,
			errorMsg:    "format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("error %q does not mention %q", err.Error(), tt.errorMsg)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	content := `
model:
  num_heads: 8
  head_dim: 96
decode:
  language: uk
  max_tokens: 128
http:
  enabled: true
  port: 9090
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Model.NumHeads != 8 || cfg.Model.HeadDim != 96 {
		t.Errorf("model geometry = %d/%d, want 8/96", cfg.Model.NumHeads, cfg.Model.HeadDim)
	}
	if cfg.Decode.Language != "uk" {
		t.Errorf("language = %s, want uk", cfg.Decode.Language)
	}
	if cfg.Decode.MaxTokens != 128 {
		t.Errorf("max_tokens = %d, want 128", cfg.Decode.MaxTokens)
	}
	if !cfg.HTTP.Enabled || cfg.HTTP.Port != 9090 {
		t.Errorf("http = %+v, want enabled on port 9090", cfg.HTTP)
	}

	// Unset sections keep their defaults
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample_rate = %d, want default 16000", cfg.Audio.SampleRate)
	}
	if cfg.Spectral.MelBands != 80 {
		t.Errorf("mel_bands = %d, want default 80", cfg.Spectral.MelBands)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("model: [not a mapping"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("audio:\n  sample_rate: 8000\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "sample_rate") {
		t.Errorf("error %q does not mention sample_rate", err.Error())
	}
}

func TestSpectralChunkHelpers(t *testing.T) {
	cfg := Default()

	if got := cfg.Spectral.ChunkSamples(16000); got != 480000 {
		t.Errorf("ChunkSamples = %d, want 480000", got)
	}
	if got := cfg.Spectral.ChunkDuration().Seconds(); got != 30 {
		t.Errorf("ChunkDuration = %vs, want 30s", got)
	}
}
