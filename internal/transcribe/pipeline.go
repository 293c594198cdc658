package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skypro1111/whisper-onnx-service/internal/audio"
	"github.com/skypro1111/whisper-onnx-service/internal/decode"
	"github.com/skypro1111/whisper-onnx-service/internal/engine"
	"github.com/skypro1111/whisper-onnx-service/internal/mel"
	"github.com/skypro1111/whisper-onnx-service/internal/metrics"
	"github.com/skypro1111/whisper-onnx-service/internal/vad"
)

// Fragment is one emitted piece of decoded text, tagged with the chunk
// it came from. Fragments arrive in strict chunk order and, within a
// chunk, in token-generation order.
type Fragment struct {
	Chunk int    `json:"chunk"`
	Text  string `json:"text"`
}

// Pipeline runs the full chunk-by-chunk transcription pass: silence
// gating, spectrogram extraction, one encoder call per chunk, then the
// autoregressive decode loop. The encoder and decoder sessions are
// non-reentrant, so the pipeline serializes runs internally.
type Pipeline struct {
	extractor *mel.Extractor
	gate      *vad.Gate
	encoder   *engine.Encoder
	loop      *decode.Loop
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// one inference pass at a time
	mu sync.Mutex
}

// NewPipeline assembles the transcription pipeline. metrics may be nil.
func NewPipeline(extractor *mel.Extractor, gate *vad.Gate, encoder *engine.Encoder, loop *decode.Loop, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {
	if extractor == nil || gate == nil || encoder == nil || loop == nil {
		return nil, fmt.Errorf("pipeline requires extractor, gate, encoder and decode loop")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		extractor: extractor,
		gate:      gate,
		encoder:   encoder,
		loop:      loop,
		metrics:   m,
		logger:    logger,
	}, nil
}

// GateStats returns the silence gate's accumulated statistics
func (p *Pipeline) GateStats() vad.GateStats {
	return p.gate.GetStats()
}

// Run transcribes the whole buffer chunk by chunk. emit is called for
// every text fragment in order; onProgress (optional) receives
// min(position,total)/total after every processed or skipped chunk.
// Cancellation is checked between chunks and inside the decode loop;
// it stops production cleanly without an error.
func (p *Pipeline) Run(ctx context.Context, buffer *audio.Buffer, opts decode.Options, emit func(Fragment), onProgress func(float64)) error {
	if buffer == nil {
		return fmt.Errorf("pipeline requires an audio buffer")
	}

	// Fail fast on a bad language code before any inference work
	if _, err := p.loop.Prompt(opts); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	total := buffer.TotalSamples()
	chunkSize := buffer.ChunkSize()
	numWindows := buffer.NumWindows()

	p.logger.Info("Transcription pass started",
		slog.Int("windows", numWindows),
		slog.Float64("duration_seconds", buffer.Duration().Seconds()),
		slog.String("language", opts.Language),
		slog.Bool("translate", opts.Translate),
	)

	reportProgress := func(windowIndex int) {
		if onProgress == nil || total == 0 {
			return
		}
		position := (windowIndex + 1) * chunkSize
		if position > total {
			position = total
		}
		onProgress(float64(position) / float64(total))
	}

	for i := 0; i < numWindows; i++ {
		if ctx.Err() != nil {
			p.logger.Info("Transcription cancelled",
				slog.Int("window_index", i))
			return nil
		}

		window, trueLen, err := buffer.Window(i)
		if err != nil {
			return fmt.Errorf("read audio window %d: %w", i, err)
		}

		if result := p.gate.Check(window, trueLen); result.IsSilent {
			p.skipChunk(i, "silence",
				slog.Float64("rms", result.RMS))
			reportProgress(i)
			continue
		}

		chunkStart := time.Now()
		spec, err := p.extractSpectrogram(window)
		if err != nil {
			p.skipChunk(i, "degenerate_spectrogram",
				slog.String("error", err.Error()))
			reportProgress(i)
			continue
		}

		hidden, err := p.encoder.Encode(spec.Data, spec.Shape())
		if err != nil {
			if p.metrics != nil {
				p.metrics.RecordEngineFailure("encoder")
			}
			p.skipChunk(i, "encoder_error",
				slog.String("error", err.Error()))
			reportProgress(i)
			continue
		}

		fragments := 0
		err = p.loop.Run(ctx, hidden, opts, func(text string) {
			fragments++
			if p.metrics != nil {
				p.metrics.RecordFragment()
			}
			emit(Fragment{Chunk: i, Text: text})
		})
		if err != nil {
			return fmt.Errorf("decode chunk %d: %w", i, err)
		}

		if p.metrics != nil {
			p.metrics.RecordChunkProcessed(time.Since(chunkStart).Seconds())
		}
		p.logger.Debug("Chunk decoded",
			slog.Int("window_index", i),
			slog.Int("fragments", fragments),
			slog.Float64("duration", time.Since(chunkStart).Seconds()),
		)
		reportProgress(i)
	}

	p.logger.Info("Transcription pass finished",
		slog.Int("windows", numWindows))
	return nil
}

// extractSpectrogram computes the chunk's log-mel tensor and rejects
// degenerate results (non-finite values, collapsed dynamic range).
func (p *Pipeline) extractSpectrogram(window []float32) (*mel.Spectrogram, error) {
	start := time.Now()
	spec := p.extractor.LogMel(window)
	if p.metrics != nil {
		p.metrics.RecordMelExtraction(time.Since(start).Seconds())
	}

	if spec.HasNonFinite() {
		return nil, fmt.Errorf("spectrogram contains non-finite values")
	}
	if spec.Max() == spec.Min() {
		return nil, fmt.Errorf("spectrogram is degenerate (max equals min)")
	}
	return spec, nil
}

func (p *Pipeline) skipChunk(windowIndex int, reason string, attrs ...any) {
	if p.metrics != nil {
		p.metrics.RecordChunkSkipped(reason)
	}
	args := append([]any{
		slog.Int("window_index", windowIndex),
		slog.String("reason", reason),
	}, attrs...)
	p.logger.Info("Chunk skipped", args...)
}
