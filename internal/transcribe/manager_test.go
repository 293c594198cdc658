package transcribe

import (
	"testing"
	"time"

	"github.com/skypro1111/whisper-onnx-service/internal/decode"
)

func newTestManager(t *testing.T, pipeline *Pipeline) *Manager {
	t.Helper()
	manager, err := NewManager(pipeline, ManagerConfig{}, quietLogger(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return manager
}

func waitForTerminal(t *testing.T, job *Job) JobState {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		if state := job.State(); state != JobRunning {
			return state
		}
		select {
		case <-deadline:
			t.Fatal("job did not reach a terminal state")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestManagerCompletesJob(t *testing.T) {
	enc := &encoderSession{}
	dec := &decoderSession{steps: []map[int64]float32{
		{100: 10},
		{eotID(): 10},
	}}
	manager := newTestManager(t, newTestPipeline(t, enc, dec))
	defer manager.Stop()

	job, err := manager.Start(toneBuffer(t, 1), decode.Options{Language: "en"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	text := job.Collect()
	if text != " the" {
		t.Errorf("collected text = %q, want %q", text, " the")
	}

	if state := waitForTerminal(t, job); state != JobCompleted {
		t.Errorf("job state = %s, want %s", state, JobCompleted)
	}
	if job.Text() != " the" {
		t.Errorf("Text() = %q, want %q", job.Text(), " the")
	}
	if _, ok := job.Progress(); ok {
		t.Error("finished job should report no progress value")
	}
	if job.Err() != nil {
		t.Errorf("unexpected job error: %v", job.Err())
	}

	fetched, ok := manager.GetJob(job.ID)
	if !ok || fetched != job {
		t.Error("GetJob should return the tracked job")
	}
	info := job.Info()
	if info.Fragments != 1 || info.State != JobCompleted {
		t.Errorf("info = %+v, want 1 fragment in completed state", info)
	}
}

func TestManagerCompletesSilentJob(t *testing.T) {
	enc := &encoderSession{}
	dec := &decoderSession{steps: []map[int64]float32{{eotID(): 10}}}
	manager := newTestManager(t, newTestPipeline(t, enc, dec))
	defer manager.Stop()

	job, err := manager.Start(silentBuffer(t, 2), decode.Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if text := job.Collect(); text != "" {
		t.Errorf("collected text = %q, want empty for silence", text)
	}
	if state := waitForTerminal(t, job); state != JobCompleted {
		t.Errorf("job state = %s, want %s", state, JobCompleted)
	}
}

func TestManagerFailsJobOnUnknownLanguage(t *testing.T) {
	enc := &encoderSession{}
	dec := &decoderSession{steps: []map[int64]float32{{eotID(): 10}}}
	manager := newTestManager(t, newTestPipeline(t, enc, dec))
	defer manager.Stop()

	job, err := manager.Start(toneBuffer(t, 1), decode.Options{Language: "zz"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if state := waitForTerminal(t, job); state != JobFailed {
		t.Errorf("job state = %s, want %s", state, JobFailed)
	}
	if job.Err() == nil {
		t.Error("failed job should report its error")
	}
	if text := job.Collect(); text != "" {
		t.Errorf("collected text = %q, want empty for failed job", text)
	}
}

func TestManagerCancelsJob(t *testing.T) {
	enc := &encoderSession{}
	dec := &decoderSession{
		steps: []map[int64]float32{{100: 10}},
		gate:  make(chan struct{}, 1),
	}
	manager := newTestManager(t, newTestPipeline(t, enc, dec))
	defer manager.Stop()

	job, err := manager.Start(toneBuffer(t, 1), decode.Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The decoder is parked on its gate; cancel first, then let the
	// in-flight step finish so the loop can observe the cancellation.
	if !manager.CancelJob(job.ID) {
		t.Fatal("CancelJob should find the running job")
	}
	dec.gate <- struct{}{}

	if state := waitForTerminal(t, job); state != JobCancelled {
		t.Errorf("job state = %s, want %s", state, JobCancelled)
	}
}

func TestManagerCancelUnknownJob(t *testing.T) {
	enc := &encoderSession{}
	dec := &decoderSession{steps: []map[int64]float32{{eotID(): 10}}}
	manager := newTestManager(t, newTestPipeline(t, enc, dec))
	defer manager.Stop()

	if manager.CancelJob("job_0_0") {
		t.Error("cancelling an unknown job should report false")
	}
}

func TestManagerStopWindsDownJobs(t *testing.T) {
	enc := &encoderSession{}
	dec := &decoderSession{steps: []map[int64]float32{
		{100: 10},
		{eotID(): 10},
	}}
	manager := newTestManager(t, newTestPipeline(t, enc, dec))

	job, err := manager.Start(silentBuffer(t, 1), decode.Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	manager.Stop()

	if state := job.State(); state == JobRunning {
		t.Error("job still running after Stop")
	}
	if manager.ActiveJobCount() != 0 {
		t.Errorf("active jobs = %d, want 0", manager.ActiveJobCount())
	}
	if len(manager.GetAllJobs()) != 1 {
		t.Errorf("tracked jobs = %d, want 1", len(manager.GetAllJobs()))
	}
}
