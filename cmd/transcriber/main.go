package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skypro1111/whisper-onnx-service/internal/audio"
	"github.com/skypro1111/whisper-onnx-service/internal/config"
	"github.com/skypro1111/whisper-onnx-service/internal/decode"
	"github.com/skypro1111/whisper-onnx-service/internal/engine"
	"github.com/skypro1111/whisper-onnx-service/internal/mel"
	"github.com/skypro1111/whisper-onnx-service/internal/metrics"
	"github.com/skypro1111/whisper-onnx-service/internal/server"
	"github.com/skypro1111/whisper-onnx-service/internal/tokenizer"
	"github.com/skypro1111/whisper-onnx-service/internal/transcribe"
	"github.com/skypro1111/whisper-onnx-service/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "whisper-onnx-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	language := flag.String("language", "", "Override transcription language code")
	translate := flag.Bool("translate", false, "Translate to English instead of transcribing")
	timestamps := flag.Bool("timestamps", false, "Request timestamp tokens from the decoder")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <audio.wav> [audio2.wav ...]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("encoder_path", cfg.Model.EncoderPath),
		slog.String("decoder_path", cfg.Model.DecoderPath),
		slog.String("vocab_path", cfg.Model.VocabPath),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("chunk_seconds", cfg.Spectral.ChunkSeconds),
		slog.Float64("silence_threshold", cfg.Silence.Threshold),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Decode options: config defaults, CLI overrides
	opts := decode.Options{
		Language:   cfg.Decode.Language,
		Translate:  cfg.Decode.Translate,
		Timestamps: cfg.Decode.Timestamps,
	}
	if *language != "" {
		opts.Language = *language
	}
	if *translate {
		opts.Translate = true
	}
	if *timestamps {
		opts.Timestamps = true
	}

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	manager, cleanup, err := buildManager(cfg, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to initialize transcription stack", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	// Start HTTP monitoring server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, manager, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Cancel running jobs on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	interrupted := make(chan struct{})
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		close(interrupted)
		manager.Stop()
	}()

	exitCode := 0
	for _, path := range flag.Args() {
		select {
		case <-interrupted:
			exitCode = 1
		default:
		}
		if exitCode != 0 {
			break
		}

		if err := transcribeFile(manager, cfg, opts, path, logger); err != nil {
			logger.Error("Transcription failed",
				slog.String("file", path),
				slog.String("error", err.Error()),
			)
			exitCode = 1
		}
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	select {
	case <-interrupted:
	default:
		manager.Stop()
	}

	logger.Info("Service stopped")
	os.Exit(exitCode)
}

// buildManager assembles the full inference stack from configuration.
// The returned cleanup releases the ONNX sessions.
func buildManager(cfg *config.Config, logger *slog.Logger, appMetrics *metrics.Metrics) (*transcribe.Manager, func(), error) {
	melConfig := mel.Config{
		SampleRate:   cfg.Audio.SampleRate,
		WindowLength: cfg.Spectral.WindowLength,
		HopLength:    cfg.Spectral.HopLength,
		MelBands:     cfg.Spectral.MelBands,
		ChunkSamples: cfg.Spectral.ChunkSamples(cfg.Audio.SampleRate),
		TargetFrames: cfg.Spectral.TargetFrames,
	}
	filterBank, err := mel.NewFilterBank(melConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("build filterbank: %w", err)
	}
	extractor := mel.NewExtractor(filterBank)

	gate, err := vad.NewGate(cfg.Silence.Threshold)
	if err != nil {
		return nil, nil, fmt.Errorf("build silence gate: %w", err)
	}

	vocab, err := tokenizer.NewVocabFromFile(cfg.Model.VocabPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load vocabulary: %w", err)
	}
	tokenMap := tokenizer.DefaultTokenMap()

	if cfg.Model.RuntimeLibrary != "" {
		engine.SetRuntimeLibrary(cfg.Model.RuntimeLibrary)
	}

	encoderSession, err := engine.NewONNXSession(cfg.Model.EncoderPath, cfg.Model.IntraOpThreads)
	if err != nil {
		return nil, nil, fmt.Errorf("open encoder session: %w", err)
	}
	decoderSession, err := engine.NewONNXSession(cfg.Model.DecoderPath, cfg.Model.IntraOpThreads)
	if err != nil {
		encoderSession.Close()
		return nil, nil, fmt.Errorf("open decoder session: %w", err)
	}
	cleanup := func() {
		if err := decoderSession.Close(); err != nil {
			logger.Warn("Error closing decoder session", slog.String("error", err.Error()))
		}
		if err := encoderSession.Close(); err != nil {
			logger.Warn("Error closing encoder session", slog.String("error", err.Error()))
		}
	}

	encoder, err := engine.NewEncoder(encoderSession)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wrap encoder session: %w", err)
	}
	decoder, err := engine.NewDecoder(decoderSession, cfg.Model.NumHeads, cfg.Model.HeadDim)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wrap decoder session: %w", err)
	}
	logger.Info("ONNX sessions initialized",
		slog.Int("cache_slots", len(decoder.Schema().Slots)),
		slog.Int("num_heads", cfg.Model.NumHeads),
		slog.Int("head_dim", cfg.Model.HeadDim),
	)

	policyConfig := decode.PolicyConfig{
		RepetitionPenalty:    float32(cfg.Decode.RepetitionPenalty),
		RecentWindow:         cfg.Decode.RecentWindow,
		TopK:                 cfg.Decode.TopK,
		QualityFilterSize:    cfg.Decode.QualityFilterSize,
		QualityFilterCap:     cfg.Decode.QualityFilterCap,
		InitialSamplingSteps: cfg.Decode.InitialSamplingSteps,
		Temperature:          float32(cfg.Decode.Temperature),
		MinContentTokens:     cfg.Decode.MinContentTokens,
		MaxTokens:            cfg.Decode.MaxTokens,
	}
	policy, err := decode.NewPolicy(policyConfig, vocab, tokenMap.EndOfTranscript, nil)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build token policy: %w", err)
	}
	loop, err := decode.NewLoop(decoder, policy, vocab, *tokenMap, policyConfig, logger, appMetrics)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build decode loop: %w", err)
	}

	pipeline, err := transcribe.NewPipeline(extractor, gate, encoder, loop, appMetrics, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}

	manager, err := transcribe.NewManager(pipeline, transcribe.ManagerConfig{
		Retention:         10 * time.Minute,
		MaxTokensPerChunk: cfg.Decode.MaxTokens,
	}, logger, appMetrics)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build job manager: %w", err)
	}

	return manager, cleanup, nil
}

// transcribeFile loads one WAV file, runs it through a job and streams
// the fragments to stdout as they arrive.
func transcribeFile(manager *transcribe.Manager, cfg *config.Config, opts decode.Options, path string, logger *slog.Logger) error {
	buffer, err := loadAudio(path, cfg)
	if err != nil {
		return err
	}

	logger.Info("Audio loaded",
		slog.String("file", path),
		slog.Float64("duration_seconds", buffer.Duration().Seconds()),
		slog.Int("windows", buffer.NumWindows()),
	)

	job, err := manager.Start(buffer, opts)
	if err != nil {
		return err
	}

	fmt.Printf("== %s\n", path)
	for fragment := range job.Fragments() {
		fmt.Print(fragment.Text)
	}
	fmt.Println()

	if err := job.Err(); err != nil {
		return err
	}
	logger.Info("File transcribed",
		slog.String("file", path),
		slog.String("job_id", job.ID),
		slog.String("state", string(job.State())),
	)
	return nil
}

// loadAudio reads a WAV file and hands it to the scheduler for format
// conversion; conforming the samples is the scheduler's job.
func loadAudio(path string, cfg *config.Config) (*audio.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	pcm, sampleRate, channels, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("decode WAV: %w", err)
	}

	return transcribe.PrepareBuffer(audio.SamplesFromPCM(pcm), sampleRate, channels,
		cfg.Audio.SampleRate, cfg.Spectral.ChunkSamples(cfg.Audio.SampleRate))
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
