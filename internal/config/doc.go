// Package config provides configuration loading and validation for the offline
// transcription service. It handles YAML-based configuration with struct validation
// covering model paths, spectral extraction, decode policy, and operational settings.
package config
