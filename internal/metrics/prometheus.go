package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription service
type Metrics struct {
	// Job metrics
	ActiveJobs    prometheus.Gauge
	JobsStarted   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsCancelled prometheus.Counter
	JobsFailed    prometheus.Counter
	JobDuration   prometheus.Histogram

	// Chunk metrics
	ChunksProcessed prometheus.Counter
	ChunksSkipped   *prometheus.CounterVec
	ChunkDuration   prometheus.Histogram

	// Spectral front end metrics
	MelExtractions    prometheus.Counter
	MelExtractionTime prometheus.Histogram

	// Decode metrics
	DecodeSteps      prometheus.Counter
	FragmentsEmitted prometheus.Counter
	LoopsDetected    prometheus.Counter
	EngineFailures   *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Job metrics
		ActiveJobs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "whisper_active_jobs",
			Help: "Current number of active transcription jobs",
		}),
		JobsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_jobs_started_total",
			Help: "Total number of transcription jobs started",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_jobs_completed_total",
			Help: "Total number of transcription jobs completed",
		}),
		JobsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_jobs_cancelled_total",
			Help: "Total number of transcription jobs cancelled",
		}),
		JobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_jobs_failed_total",
			Help: "Total number of transcription jobs that ended in an error",
		}),
		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_job_duration_seconds",
			Help:    "Wall-clock duration of transcription jobs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		// Chunk metrics
		ChunksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_chunks_processed_total",
			Help: "Total number of audio chunks run through encode+decode",
		}),
		ChunksSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_chunks_skipped_total",
			Help: "Total number of audio chunks skipped before inference",
		}, []string{"reason"}),
		ChunkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_chunk_processing_duration_seconds",
			Help:    "Time spent on one chunk's encode+decode pass",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Spectral front end metrics
		MelExtractions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_mel_extractions_total",
			Help: "Total number of log-mel spectrograms computed",
		}),
		MelExtractionTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_mel_extraction_duration_seconds",
			Help:    "Time spent computing log-mel spectrograms",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		}),

		// Decode metrics
		DecodeSteps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_decode_steps_total",
			Help: "Total number of autoregressive decoder calls",
		}),
		FragmentsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_fragments_emitted_total",
			Help: "Total number of text fragments emitted",
		}),
		LoopsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_decode_loops_detected_total",
			Help: "Total number of chunks ended by repeating n-gram detection",
		}),
		EngineFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_engine_failures_total",
			Help: "Total number of inference engine call failures",
		}, []string{"stage"}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "whisper_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordJobStarted increments started jobs and the active gauge
func (m *Metrics) RecordJobStarted() {
	m.JobsStarted.Inc()
	m.ActiveJobs.Inc()
}

// RecordJobCompleted records a finished job with its duration
func (m *Metrics) RecordJobCompleted(durationSeconds float64) {
	m.JobsCompleted.Inc()
	m.ActiveJobs.Dec()
	m.JobDuration.Observe(durationSeconds)
}

// RecordJobCancelled records a cancelled job with its duration
func (m *Metrics) RecordJobCancelled(durationSeconds float64) {
	m.JobsCancelled.Inc()
	m.ActiveJobs.Dec()
	m.JobDuration.Observe(durationSeconds)
}

// RecordJobFailed records a job that ended in an error with its duration
func (m *Metrics) RecordJobFailed(durationSeconds float64) {
	m.JobsFailed.Inc()
	m.ActiveJobs.Dec()
	m.JobDuration.Observe(durationSeconds)
}

// RecordChunkProcessed records one chunk's encode+decode pass
func (m *Metrics) RecordChunkProcessed(durationSeconds float64) {
	m.ChunksProcessed.Inc()
	m.ChunkDuration.Observe(durationSeconds)
}

// RecordChunkSkipped records a chunk skipped before inference
func (m *Metrics) RecordChunkSkipped(reason string) {
	m.ChunksSkipped.WithLabelValues(reason).Inc()
}

// RecordMelExtraction records one spectrogram computation
func (m *Metrics) RecordMelExtraction(durationSeconds float64) {
	m.MelExtractions.Inc()
	m.MelExtractionTime.Observe(durationSeconds)
}

// RecordDecodeStep increments the decoder call counter
func (m *Metrics) RecordDecodeStep() {
	m.DecodeSteps.Inc()
}

// RecordFragment increments the emitted fragment counter
func (m *Metrics) RecordFragment() {
	m.FragmentsEmitted.Inc()
}

// RecordLoopDetected increments the n-gram loop counter
func (m *Metrics) RecordLoopDetected() {
	m.LoopsDetected.Inc()
}

// RecordEngineFailure records an encoder or decoder call failure
func (m *Metrics) RecordEngineFailure(stage string) {
	m.EngineFailures.WithLabelValues(stage).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
