// Package vad provides energy-based voice activity detection.
// It implements an RMS silence gate with a configurable threshold and
// tracks per-run statistics for monitoring.
package vad
