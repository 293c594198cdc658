// Package audio handles WAV decoding, sample conversion, and buffering.
// It turns PCM input into mono float32 samples at the configured rate
// and hands out fixed-size zero-padded windows for chunked inference.
package audio
