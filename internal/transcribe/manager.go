package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skypro1111/whisper-onnx-service/internal/audio"
	"github.com/skypro1111/whisper-onnx-service/internal/decode"
	"github.com/skypro1111/whisper-onnx-service/internal/metrics"
	"github.com/skypro1111/whisper-onnx-service/internal/vad"
)

// JobState tracks where a transcription job is in its lifecycle.
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobCancelled JobState = "cancelled"
	JobFailed    JobState = "failed"
)

// Job is one transcription request: an audio buffer being worked
// through the pipeline, with observable progress and a forward-only
// fragment stream.
type Job struct {
	ID        string
	StartTime time.Time
	Options   decode.Options

	fragments chan Fragment
	cancel    context.CancelFunc

	mu         sync.RWMutex
	state      JobState
	collected  []Fragment
	progress   float64
	inProgress bool
	finishedAt time.Time
	err        error
}

// Fragments returns the job's fragment stream. It is closed when the
// job ends; fragments arrive in chunk order, then token order.
func (j *Job) Fragments() <-chan Fragment {
	return j.fragments
}

// Collect drains the fragment stream and returns the joined text.
// It blocks until the job ends.
func (j *Job) Collect() string {
	var sb strings.Builder
	for f := range j.fragments {
		sb.WriteString(f.Text)
	}
	return sb.String()
}

// Progress returns the current fraction in [0,1]; ok is false once the
// job is no longer running (idle has no progress value).
func (j *Job) Progress() (float64, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress, j.inProgress
}

// State returns the job's lifecycle state.
func (j *Job) State() JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Err returns the job's terminal error, if any.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Cancel requests a clean early stop at the next chunk or decode-step
// boundary.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) setProgress(fraction float64) {
	j.mu.Lock()
	j.progress = fraction
	j.inProgress = true
	j.mu.Unlock()
}

func (j *Job) finish(state JobState, err error) {
	j.mu.Lock()
	j.state = state
	j.err = err
	j.progress = 0
	j.inProgress = false
	j.finishedAt = time.Now()
	j.mu.Unlock()
}

// JobInfo is a point-in-time snapshot of a job for monitoring APIs.
type JobInfo struct {
	ID        string        `json:"id"`
	State     JobState      `json:"state"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Language  string        `json:"language"`
	Translate bool          `json:"translate"`
	Progress  *float64      `json:"progress,omitempty"`
	Fragments int           `json:"fragments"`
	Error     string        `json:"error,omitempty"`
}

// Info returns a snapshot of the job.
func (j *Job) Info() JobInfo {
	j.mu.RLock()
	defer j.mu.RUnlock()

	info := JobInfo{
		ID:        j.ID,
		State:     j.state,
		StartTime: j.StartTime,
		Duration:  time.Since(j.StartTime),
		Language:  j.Options.Language,
		Translate: j.Options.Translate,
		Fragments: len(j.collected),
	}
	if !j.finishedAt.IsZero() {
		info.Duration = j.finishedAt.Sub(j.StartTime)
	}
	if j.inProgress {
		p := j.progress
		info.Progress = &p
	}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	return info
}

// Text returns the text collected so far, joined in order.
func (j *Job) Text() string {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var sb strings.Builder
	for _, f := range j.collected {
		sb.WriteString(f.Text)
	}
	return sb.String()
}

// ManagerConfig tunes the job manager.
type ManagerConfig struct {
	// Finished jobs are kept around for monitoring queries this long
	// before the cleanup routine drops them.
	Retention time.Duration

	// Upper bound on fragments per chunk; sizes the fragment channel
	// so an unconsumed stream never blocks the pipeline.
	MaxTokensPerChunk int
}

// Manager owns transcription jobs: it starts them against the shared
// pipeline, tracks their lifecycle, and cleans up finished ones.
type Manager struct {
	pipeline *Pipeline
	logger   *slog.Logger
	metrics  *metrics.Metrics
	config   ManagerConfig

	jobs    map[string]*Job
	mu      sync.RWMutex
	counter uint64

	ctx     context.Context
	cancelF context.CancelFunc
	cleanup chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a job manager and starts its cleanup routine.
func NewManager(pipeline *Pipeline, config ManagerConfig, logger *slog.Logger, m *metrics.Metrics) (*Manager, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("manager requires a pipeline")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Retention <= 0 {
		config.Retention = 10 * time.Minute
	}
	if config.MaxTokensPerChunk <= 0 {
		config.MaxTokensPerChunk = 224
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		pipeline: pipeline,
		logger:   logger,
		metrics:  m,
		config:   config,
		jobs:     make(map[string]*Job),
		ctx:      ctx,
		cancelF:  cancel,
		cleanup:  make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr, nil
}

// Start begins transcribing the buffer asynchronously and returns the
// job handle immediately. Fragments stream on the job's channel as
// they are produced.
func (m *Manager) Start(buffer *audio.Buffer, opts decode.Options) (*Job, error) {
	if buffer == nil {
		return nil, fmt.Errorf("start requires an audio buffer")
	}

	jobCtx, jobCancel := context.WithCancel(m.ctx)

	m.mu.Lock()
	m.counter++
	id := fmt.Sprintf("job_%d_%d", time.Now().UnixNano(), m.counter)

	job := &Job{
		ID:        id,
		StartTime: time.Now(),
		Options:   opts,
		fragments: make(chan Fragment, buffer.NumWindows()*m.config.MaxTokensPerChunk),
		cancel:    jobCancel,
		state:     JobRunning,
	}
	m.jobs[id] = job
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordJobStarted()
	}
	m.logger.Info("Transcription job started",
		slog.String("job_id", id),
		slog.Float64("audio_seconds", buffer.Duration().Seconds()),
		slog.String("language", opts.Language),
	)

	m.wg.Add(1)
	go m.run(jobCtx, job, buffer)

	return job, nil
}

func (m *Manager) run(ctx context.Context, job *Job, buffer *audio.Buffer) {
	defer m.wg.Done()
	defer close(job.fragments)

	emit := func(f Fragment) {
		job.mu.Lock()
		job.collected = append(job.collected, f)
		job.mu.Unlock()

		select {
		case job.fragments <- f:
		default:
			// Channel sized for the worst case; a full channel means a
			// stale consumer, drop the stream copy and keep the record.
		}
	}

	err := m.pipeline.Run(ctx, buffer, job.Options, emit, job.setProgress)
	elapsed := time.Since(job.StartTime).Seconds()

	switch {
	case err != nil:
		job.finish(JobFailed, err)
		if m.metrics != nil {
			m.metrics.RecordJobFailed(elapsed)
		}
		m.logger.Error("Transcription job failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	case ctx.Err() != nil:
		job.finish(JobCancelled, nil)
		if m.metrics != nil {
			m.metrics.RecordJobCancelled(elapsed)
		}
		m.logger.Info("Transcription job cancelled",
			slog.String("job_id", job.ID),
			slog.Float64("duration", elapsed),
		)
	default:
		job.finish(JobCompleted, nil)
		if m.metrics != nil {
			m.metrics.RecordJobCompleted(elapsed)
		}
		m.logger.Info("Transcription job completed",
			slog.String("job_id", job.ID),
			slog.Float64("duration", elapsed),
			slog.Int("fragments", len(job.collected)),
		)
	}
}

// GetJob retrieves a job by id.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

// CancelJob requests cancellation of a running job.
func (m *Manager) CancelJob(id string) bool {
	job, ok := m.GetJob(id)
	if !ok {
		return false
	}
	job.Cancel()
	return true
}

// GetAllJobs returns snapshots of every tracked job.
func (m *Manager) GetAllJobs() []JobInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]JobInfo, 0, len(m.jobs))
	for _, job := range m.jobs {
		infos = append(infos, job.Info())
	}
	return infos
}

// ActiveJobCount returns how many jobs are still running.
func (m *Manager) ActiveJobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, job := range m.jobs {
		if job.State() == JobRunning {
			count++
		}
	}
	return count
}

// GateStats returns the pipeline's silence gate statistics.
func (m *Manager) GateStats() vad.GateStats {
	return m.pipeline.GateStats()
}

// Stop cancels all running jobs and waits for them to wind down.
func (m *Manager) Stop() {
	m.logger.Info("Stopping transcription manager...")

	m.cancelF()
	m.wg.Wait()
	<-m.cleanup

	m.logger.Info("Transcription manager stopped",
		slog.Int("tracked_jobs", len(m.GetAllJobs())),
	)
}

// startCleanupRoutine drops finished jobs once their retention window
// has passed.
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupFinishedJobs()
		}
	}
}

func (m *Manager) cleanupFinishedJobs() {
	now := time.Now()
	expired := make([]string, 0)

	m.mu.RLock()
	for id, job := range m.jobs {
		job.mu.RLock()
		terminal := job.state != JobRunning
		finishedAt := job.finishedAt
		job.mu.RUnlock()

		if terminal && now.Sub(finishedAt) > m.config.Retention {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	m.mu.Lock()
	for _, id := range expired {
		delete(m.jobs, id)
	}
	m.mu.Unlock()

	m.logger.Debug("Cleaned up finished jobs",
		slog.Int("removed", len(expired)),
	)
}
