package transcribe

import (
	"fmt"

	"github.com/skypro1111/whisper-onnx-service/internal/audio"
)

// PrepareBuffer conforms decoded audio to the pipeline's expected
// format: downmix to mono, resample to the target rate, and wrap the
// result in a chunked buffer. This is the one place a resample or
// downmix is triggered; the pipeline itself assumes conforming input.
func PrepareBuffer(samples []float32, sampleRate, channels, targetRate, chunkSize int) (*audio.Buffer, error) {
	var err error
	if channels > 1 {
		samples, err = audio.Downmix(samples, channels)
		if err != nil {
			return nil, fmt.Errorf("downmix: %w", err)
		}
	}
	if sampleRate != targetRate {
		samples, err = audio.Resample(samples, sampleRate, targetRate)
		if err != nil {
			return nil, fmt.Errorf("resample: %w", err)
		}
	}
	return audio.NewBuffer(samples, targetRate, chunkSize)
}
