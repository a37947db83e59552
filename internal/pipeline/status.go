package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrRunInProgress is returned by Start while this process is running.
var ErrRunInProgress = errors.New("a run is already in progress")

type RunStatus struct {
	Running    bool        `json:"running"`
	CurrentRun string      `json:"current_run,omitempty"`
	LastRunAt  time.Time   `json:"last_run_at,omitempty"`
	LastOkAt   time.Time   `json:"last_ok_at,omitempty"`
	LastError  string      `json:"last_error,omitempty"`
	Last       *RunSummary `json:"last,omitempty"`
}

type statusTracker struct {
	mu      sync.Mutex
	running int
	pending bool // reserved by Start, not yet running
	st      RunStatus
}

func (t *statusTracker) reserve() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running > 0 || t.pending {
		return false
	}
	t.pending = true
	return true
}

func (t *statusTracker) start(sum RunSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running++
	t.pending = false
	t.st.Running = true
	t.st.CurrentRun = sum.RunID
	t.st.LastRunAt = sum.StartedAt
}

func (t *statusTracker) finish(sum RunSummary, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running--
	t.st.Running = t.running > 0
	if !t.st.Running {
		t.st.CurrentRun = ""
	}
	t.st.Last = &sum
	if err != nil {
		t.st.LastError = err.Error()
		return
	}
	t.st.LastError = ""
	t.st.LastOkAt = sum.FinishedAt
}

func (t *statusTracker) get() RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st
}

func (t *statusTracker) busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running > 0 || t.pending
}

func (o *Orchestrator) Status() RunStatus { return o.status.get() }

// Busy reports whether a run is in flight or about to start.
func (o *Orchestrator) Busy() bool { return o.status.busy() }

// Start launches a run in the background unless one is already running
// in this process. The run outlives the caller's ctx but keeps its values.
func (o *Orchestrator) Start(ctx context.Context, opts RunOptions) error {
	if _, err := NormalizeStages(opts.Stages); err != nil {
		return err
	}
	if !o.status.reserve() {
		return ErrRunInProgress
	}
	go func() {
		if _, err := o.Run(context.WithoutCancel(ctx), opts); err != nil {
			o.log.Warnw("background run failed", "err", err)
		}
	}()
	return nil
}

// TryRun runs synchronously unless a run is already in flight in this
// process, in which case it returns ErrRunInProgress.
func (o *Orchestrator) TryRun(ctx context.Context, opts RunOptions) (RunSummary, error) {
	if _, err := NormalizeStages(opts.Stages); err != nil {
		return RunSummary{}, err
	}
	if !o.status.reserve() {
		return RunSummary{}, ErrRunInProgress
	}
	return o.Run(ctx, opts)
}
